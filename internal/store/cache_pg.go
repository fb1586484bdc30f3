package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Table and columns of the persisted score cache.
const (
	TableScoreCache = "sw_score_cache"

	colUserID         = "user_id"
	colTotal          = "total_sw"
	colOriginal       = "original_sw"
	colBase           = "base_sw"
	colAdmin          = "admin_adjustments"
	colBreakdown      = "breakdown"
	colInflation      = "inflation_rate"
	colTier           = "tier"
	colTierChangedAt  = "tier_changed_at"
	colLastComputedAt = "last_computed_at"
)

// SourceScoreCache stores score records through a Source, one row per user.
type SourceScoreCache struct {
	src Source
}

// NewSourceScoreCache creates a cache over src.
func NewSourceScoreCache(src Source) *SourceScoreCache {
	return &SourceScoreCache{src: src}
}

func (c *SourceScoreCache) Get(ctx context.Context, userID string) (*ScoreRecord, error) {
	row, err := c.src.Row(ctx, TableScoreCache, colUserID, userID)
	if err != nil {
		return nil, err
	}
	rec := &ScoreRecord{
		UserID:           row.String(colUserID),
		Total:            row.Int(colTotal),
		OriginalTotal:    row.Float(colOriginal),
		BaseScore:        row.Float(colBase),
		AdminAdjustments: row.Float(colAdmin),
		DecayRate:        row.Float(colInflation),
		Tier:             row.String(colTier),
		TierChangedAt:    row.Time(colTierChangedAt),
		LastComputedAt:   row.Time(colLastComputedAt),
	}
	if row.Has(colBreakdown) {
		if err := row.Decode(colBreakdown, &rec.Breakdown); err != nil {
			return nil, Classify("get score cache", err)
		}
	}
	return rec, nil
}

func (c *SourceScoreCache) Put(ctx context.Context, rec *ScoreRecord) error {
	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}
	return c.src.Upsert(ctx, TableScoreCache, colUserID, Row{
		colUserID:         rec.UserID,
		colTotal:          rec.Total,
		colOriginal:       rec.OriginalTotal,
		colBase:           rec.BaseScore,
		colAdmin:          rec.AdminAdjustments,
		colBreakdown:      json.RawMessage(breakdown),
		colInflation:      rec.DecayRate,
		colTier:           rec.Tier,
		colTierChangedAt:  rec.TierChangedAt.UTC().Format(time.RFC3339Nano),
		colLastComputedAt: rec.LastComputedAt.UTC().Format(time.RFC3339Nano),
	})
}
