package collect

import (
	"context"
	"errors"

	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// Invites credits each accepted invitation the user sent.
type Invites struct {
	Src store.Source
}

func (Invites) Category() scoring.Category            { return scoring.CategoryInvites }
func (Invites) Weight(w scoring.WeightConfig) float64 { return w.Invite }

func (i Invites) Collect(ctx context.Context, sub Subject) (scoring.CategoryResult, error) {
	n, err := countBy(ctx, i.Src, TableInvites, inviterColumns, sub.UserID, store.Eq("status", InviteAccepted))
	if err != nil {
		return scoring.CategoryResult{}, err
	}
	return scoring.Weighted(n, sub.Weights.Invite), nil
}

// ReferralBonus pays a percentage of each accepted invitee's current total.
// Invitee totals come from the score cache; an invitee without a cached
// score contributes nothing.
type ReferralBonus struct {
	Src   store.Source
	Cache store.ScoreCache
}

func (ReferralBonus) Category() scoring.Category            { return scoring.CategoryReferralBonus }
func (ReferralBonus) Weight(w scoring.WeightConfig) float64 { return w.ReferralBonusPercent / 100 }

func (rb ReferralBonus) Collect(ctx context.Context, sub Subject) (scoring.CategoryResult, error) {
	rate := sub.Weights.ReferralBonusPercent / 100
	rows, err := withFallback(inviterColumns, func(col string) ([]store.Row, error) {
		return rb.Src.Rows(ctx, store.Query{
			Table:   TableInvites,
			Columns: []string{"invitee_id"},
			Where:   []store.Cond{store.Eq(col, sub.UserID), store.Eq("status", InviteAccepted)},
		})
	})
	if err != nil {
		return scoring.CategoryResult{}, err
	}

	var sum float64
	var scored int64
	for _, row := range rows {
		invitee := row.String("invitee_id")
		if invitee == "" || invitee == sub.UserID {
			continue
		}
		rec, err := rb.Cache.Get(ctx, invitee)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return scoring.CategoryResult{}, err
		}
		sum += float64(rec.Total)
		scored++
	}
	return scoring.CategoryResult{
		Points: sum * rate,
		Count:  scored,
		Weight: rate,
		Details: map[string]float64{
			"invitees":      float64(len(rows)),
			"inviteesTotal": sum,
		},
	}, nil
}
