package collect

import (
	"context"

	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// Followers counts follow edges pointing at the user.
type Followers struct {
	Src store.Source
}

func (Followers) Category() scoring.Category            { return scoring.CategoryFollowers }
func (Followers) Weight(w scoring.WeightConfig) float64 { return w.Follower }

func (f Followers) Collect(ctx context.Context, sub Subject) (scoring.CategoryResult, error) {
	n, err := countBy(ctx, f.Src, TableFollows, followeeColumns, sub.UserID)
	if err != nil {
		return scoring.CategoryResult{}, err
	}
	return scoring.Weighted(n, sub.Weights.Follower), nil
}
