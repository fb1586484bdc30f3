package collect

import (
	"context"

	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// Posts credits each post the user authored.
type Posts struct {
	Src store.Source
}

func (Posts) Category() scoring.Category            { return scoring.CategoryPosts }
func (Posts) Weight(w scoring.WeightConfig) float64 { return w.Post }

func (p Posts) Collect(ctx context.Context, sub Subject) (scoring.CategoryResult, error) {
	n, err := countBy(ctx, p.Src, TablePosts, authorColumns, sub.UserID)
	if err != nil {
		return scoring.CategoryResult{}, err
	}
	return scoring.Weighted(n, sub.Weights.Post), nil
}

// Comments credits each comment the user authored.
type Comments struct {
	Src store.Source
}

func (Comments) Category() scoring.Category            { return scoring.CategoryComments }
func (Comments) Weight(w scoring.WeightConfig) float64 { return w.Comment }

func (c Comments) Collect(ctx context.Context, sub Subject) (scoring.CategoryResult, error) {
	n, err := countBy(ctx, c.Src, TableComments, authorColumns, sub.UserID)
	if err != nil {
		return scoring.CategoryResult{}, err
	}
	return scoring.Weighted(n, sub.Weights.Comment), nil
}

// Reactions counts reactions received on the user's posts.
type Reactions struct {
	Src store.Source
}

func (Reactions) Category() scoring.Category            { return scoring.CategoryReactions }
func (Reactions) Weight(w scoring.WeightConfig) float64 { return w.Reaction }

func (r Reactions) Collect(ctx context.Context, sub Subject) (scoring.CategoryResult, error) {
	rows, err := withFallback(authorColumns, func(col string) ([]store.Row, error) {
		return r.Src.Rows(ctx, store.Query{
			Table:   TablePosts,
			Columns: []string{"id"},
			Where:   []store.Cond{store.Eq(col, sub.UserID)},
		})
	})
	if err != nil {
		return scoring.CategoryResult{}, err
	}
	if len(rows) == 0 {
		return scoring.Weighted(0, sub.Weights.Reaction), nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.String("id"))
	}
	n, err := r.Src.Count(ctx, store.Query{
		Table: TableReactions,
		Where: []store.Cond{store.In("post_id", ids)},
	})
	if err != nil {
		return scoring.CategoryResult{}, err
	}
	res := scoring.Weighted(n, sub.Weights.Reaction)
	res.Details = map[string]float64{"posts": float64(len(ids))}
	return res, nil
}
