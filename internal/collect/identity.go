package collect

import (
	"context"

	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// Registration credits an existing profile once.
type Registration struct{}

func (Registration) Category() scoring.Category            { return scoring.CategoryRegistration }
func (Registration) Weight(w scoring.WeightConfig) float64 { return w.Registration }

func (Registration) Collect(ctx context.Context, sub Subject) (scoring.CategoryResult, error) {
	if sub.ProfileSkip != "" {
		return scoring.SkippedResult(sub.Weights.Registration, sub.ProfileSkip), nil
	}
	if sub.Profile == nil {
		return scoring.Weighted(0, sub.Weights.Registration), nil
	}
	return scoring.Weighted(1, sub.Weights.Registration), nil
}

// ProfileComplete credits a profile with every scored field filled.
type ProfileComplete struct{}

func (ProfileComplete) Category() scoring.Category            { return scoring.CategoryProfileComplete }
func (ProfileComplete) Weight(w scoring.WeightConfig) float64 { return w.ProfileComplete }

func (ProfileComplete) Collect(ctx context.Context, sub Subject) (scoring.CategoryResult, error) {
	w := sub.Weights.ProfileComplete
	if sub.ProfileSkip != "" {
		return scoring.SkippedResult(w, sub.ProfileSkip), nil
	}
	if sub.Profile == nil {
		return scoring.Weighted(0, w), nil
	}
	filled, total := sub.Profile.Completeness()
	var count int64
	if filled == total {
		count = 1
	}
	r := scoring.Weighted(count, w)
	r.Details = map[string]float64{
		"fieldsFilled": float64(filled),
		"fieldsTotal":  float64(total),
	}
	return r, nil
}

// Growth sums the user's growth ledger and applies the growth multiplier.
type Growth struct {
	Src store.Source
}

func (Growth) Category() scoring.Category            { return scoring.CategoryGrowth }
func (Growth) Weight(w scoring.WeightConfig) float64 { return w.GrowthMultiplier }

func (g Growth) Collect(ctx context.Context, sub Subject) (scoring.CategoryResult, error) {
	where := []store.Cond{store.Eq("user_id", sub.UserID)}
	sum, err := withFallback(pointsColumns, func(col string) (float64, error) {
		return g.Src.Sum(ctx, store.Query{Table: TableGrowth, Where: where}, col)
	})
	if err != nil {
		return scoring.CategoryResult{}, err
	}
	entries, err := g.Src.Count(ctx, store.Query{Table: TableGrowth, Where: where})
	if err != nil {
		return scoring.CategoryResult{}, err
	}
	m := sub.Weights.GrowthMultiplier
	return scoring.CategoryResult{
		Points:  sum * m,
		Count:   entries,
		Weight:  m,
		Details: map[string]float64{"ledgerPoints": sum},
	}, nil
}
