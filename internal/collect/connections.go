package collect

import (
	"context"
	"errors"

	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/mention"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// DefaultContentWindow is how many recent posts the detector scans.
const DefaultContentWindow = 500

// Connections derives mutual-mention connections. A connection with another
// user exists when each has mentioned the other at least once; its strength
// is the smaller of the two mention counts. The first unit of each
// connection bills the first-connection weight and every further unit the
// repeat weight.
type Connections struct {
	Src    store.Source
	Window int
}

func (Connections) Category() scoring.Category            { return scoring.CategoryConnections }
func (Connections) Weight(w scoring.WeightConfig) float64 { return w.ConnectionFirst }

// item is one piece of text attributed to an author.
type item struct {
	ID     string
	Author string
	Text   string
}

func (c Connections) window() int {
	if c.Window <= 0 {
		return DefaultContentWindow
	}
	return c.Window
}

func (c Connections) Collect(ctx context.Context, sub Subject) (scoring.CategoryResult, error) {
	w := sub.Weights
	if sub.Profile == nil {
		return connectionResult(0, 0, 0, w), nil
	}
	me := mention.NewMatcher(sub.Profile.Username, sub.Profile.NumericID)
	if me.Empty() {
		return connectionResult(0, 0, 0, w), nil
	}

	recent, err := c.recentPosts(ctx)
	if err != nil {
		return scoring.CategoryResult{}, err
	}
	bios, err := c.recentBios(ctx)
	if err != nil {
		return scoring.CategoryResult{}, err
	}

	// Both directions are scanned over one window.
	var own []item
	theirs := map[string]map[string]bool{}
	for _, it := range append(recent, bios...) {
		if it.Author == sub.UserID {
			own = append(own, it)
			continue
		}
		if it.Author == "" || !me.Match(it.Text) {
			continue
		}
		if theirs[it.Author] == nil {
			theirs[it.Author] = map[string]bool{}
		}
		theirs[it.Author][it.ID] = true
	}
	if len(theirs) == 0 || len(own) == 0 {
		return connectionResult(0, 0, 0, w), nil
	}

	handles, err := c.handles(ctx, keys(theirs))
	if err != nil {
		return scoring.CategoryResult{}, err
	}

	// Where I mention each of them.
	mine := map[string]map[string]bool{}
	for author, m := range handles {
		for _, it := range own {
			if m.Match(it.Text) {
				if mine[author] == nil {
					mine[author] = map[string]bool{}
				}
				mine[author][it.ID] = true
			}
		}
	}

	var first, repeat, users int64
	for author, in := range theirs {
		units := MutualUnits(len(in), len(mine[author]))
		if units == 0 {
			continue
		}
		users++
		first++
		repeat += units - 1
	}
	return connectionResult(first, repeat, users, w), nil
}

// MutualUnits is the connection strength between two users given how many
// items each used to mention the other.
func MutualUnits(theirMentions, myMentions int) int64 {
	return int64(min(theirMentions, myMentions))
}

func connectionResult(first, repeat, users int64, w scoring.WeightConfig) scoring.CategoryResult {
	return scoring.CategoryResult{
		Points: float64(first)*w.ConnectionFirst + float64(repeat)*w.ConnectionRepeat,
		Count:  first + repeat,
		Weight: w.ConnectionFirst,
		Details: map[string]float64{
			"firstUnits":     float64(first),
			"repeatUnits":    float64(repeat),
			"repeatWeight":   w.ConnectionRepeat,
			"connectedUsers": float64(users),
		},
	}
}

// recentPosts returns the newest posts in the window.
func (c Connections) recentPosts(ctx context.Context) ([]item, error) {
	type shape struct{ author, content string }
	var shapes []shape
	for _, a := range authorColumns {
		for _, t := range contentColumns {
			shapes = append(shapes, shape{a, t})
		}
	}
	var used shape
	rows, err := withFallback(shapes, func(s shape) ([]store.Row, error) {
		q := store.Query{
			Table:   TablePosts,
			Columns: []string{"id", s.author, s.content},
			OrderBy: "created_at",
			Desc:    true,
			Limit:   c.window(),
		}
		used = s
		return c.Src.Rows(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	items := make([]item, 0, len(rows))
	for _, r := range rows {
		items = append(items, item{ID: "post:" + r.String("id"), Author: r.String(used.author), Text: r.String(used.content)})
	}
	return items, nil
}

// recentBios returns bios of the newest profiles in the window. A profiles
// table without a bio column yields no bios.
func (c Connections) recentBios(ctx context.Context) ([]item, error) {
	rows, err := c.Src.Rows(ctx, store.Query{
		Table:   TableProfiles,
		Columns: []string{"id", "bio"},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   c.window(),
	})
	if errors.Is(err, store.ErrSchemaDrift) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items := make([]item, 0, len(rows))
	for _, r := range rows {
		if bio := r.String("bio"); bio != "" {
			items = append(items, item{ID: "bio:" + r.String("id"), Author: r.String("id"), Text: bio})
		}
	}
	return items, nil
}

// handles resolves matchers for the given users. Users without a handle are
// left out.
func (c Connections) handles(ctx context.Context, ids []string) (map[string]*mention.Matcher, error) {
	rows, err := c.Src.Rows(ctx, store.Query{
		Table:   TableProfiles,
		Columns: []string{"id", "username", "numeric_id"},
		Where:   []store.Cond{store.In("id", ids)},
	})
	if errors.Is(err, store.ErrSchemaDrift) {
		rows, err = c.Src.Rows(ctx, store.Query{
			Table:   TableProfiles,
			Columns: []string{"id", "username"},
			Where:   []store.Cond{store.In("id", ids)},
		})
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]*mention.Matcher, len(rows))
	for _, r := range rows {
		m := mention.NewMatcher(r.String("username"), r.String("numeric_id"))
		if !m.Empty() {
			out[r.String("id")] = m
		}
	}
	return out, nil
}

func keys(m map[string]map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
