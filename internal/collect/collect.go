// Package collect gathers the activity signals that feed the Social Weight
// score. Each Collector reads one category through a store.Source and falls
// back to alternate column names when the expected one is missing. The
// Runner fans collectors out and turns tolerated failures into skipped
// categories.
package collect

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// Tables read by the collectors.
const (
	TableProfiles    = "profiles"
	TableGrowth      = "growth_ledger"
	TableFollows     = "follows"
	TablePosts       = "posts"
	TableComments    = "comments"
	TableReactions   = "reactions"
	TableInvites     = "invites"
	TableAdjustments = "admin_adjustments"
)

// Column aliases, preferred name first.
var (
	authorColumns   = []string{"author_id", "user_id"}
	followeeColumns = []string{"following_id", "followee_id"}
	inviterColumns  = []string{"inviter_id", "invited_by"}
	pointsColumns   = []string{"points", "amount"}
	nameColumns     = []string{"full_name", "display_name"}
	avatarColumns   = []string{"avatar_url", "avatar"}
	contentColumns  = []string{"content", "body"}
)

// InviteAccepted is the status of an accepted invite.
const InviteAccepted = "accepted"

// Profile is the subset of a user profile the engine scores.
type Profile struct {
	ID        string
	Username  string
	FullName  string
	Bio       string
	Country   string
	Avatar    string
	NumericID string
	CreatedAt time.Time
}

// Completeness returns how many of the scored profile fields are filled.
func (p *Profile) Completeness() (filled, total int) {
	fields := []string{p.Username, p.FullName, p.Bio, p.Country, p.Avatar}
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			filled++
		}
	}
	return filled, len(fields)
}

// LoadProfile reads a user's profile. A missing profile returns (nil, nil).
func LoadProfile(ctx context.Context, src store.Source, userID string) (*Profile, error) {
	row, err := src.Row(ctx, TableProfiles, "id", userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profileFromRow(row), nil
}

func profileFromRow(row store.Row) *Profile {
	return &Profile{
		ID:        row.String("id"),
		Username:  row.String("username"),
		FullName:  firstOf(row, nameColumns),
		Bio:       row.String("bio"),
		Country:   row.String("country"),
		Avatar:    firstOf(row, avatarColumns),
		NumericID: row.String("numeric_id"),
		CreatedAt: row.Time("created_at"),
	}
}

// firstOf returns the first non-empty aliased column of a full-row read.
func firstOf(row store.Row, columns []string) string {
	for _, c := range columns {
		if v := row.String(c); v != "" {
			return v
		}
	}
	return ""
}

// Subject is the user being scored plus the per-request context collectors
// need.
type Subject struct {
	UserID   string
	Elevated bool
	Profile  *Profile
	// ProfileSkip is set when the profile could not be read and the failure
	// was tolerated; profile-based categories report it as their skip reason.
	ProfileSkip string
	Weights     scoring.WeightConfig
}

// Collector produces the result for one signal category.
type Collector interface {
	Category() scoring.Category
	// Weight returns the weight the category bills, for reporting skips.
	Weight(w scoring.WeightConfig) float64
	Collect(ctx context.Context, sub Subject) (scoring.CategoryResult, error)
}

// withFallback calls fn with each alternative in turn while the failure is
// schema drift, and returns the first non-drift outcome.
func withFallback[K, T any](options []K, fn func(K) (T, error)) (T, error) {
	var zero T
	var err error
	for _, o := range options {
		var v T
		v, err = fn(o)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, store.ErrSchemaDrift) {
			return zero, err
		}
	}
	return zero, err
}

// countBy counts rows of table whose user column equals userID.
func countBy(ctx context.Context, src store.Source, table string, userColumns []string, userID string, extra ...store.Cond) (int64, error) {
	return withFallback(userColumns, func(col string) (int64, error) {
		return src.Count(ctx, store.Query{
			Table: table,
			Where: append([]store.Cond{store.Eq(col, userID)}, extra...),
		})
	})
}
