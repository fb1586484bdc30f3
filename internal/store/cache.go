package store

import (
	"context"
	"time"

	"github.com/socialweight/socialweight/pkg/scoring"
)

// ScoreRecord is the persisted result of the last full computation for a user.
type ScoreRecord struct {
	UserID           string            `json:"userId"`
	Total            int64             `json:"totalSW"`
	OriginalTotal    float64           `json:"originalSW"`
	BaseScore        float64           `json:"baseSW"`
	AdminAdjustments float64           `json:"adminAdjustments"`
	Breakdown        scoring.Breakdown `json:"breakdown"`
	DecayRate        float64           `json:"inflationRate"`
	Tier             string            `json:"tier"`
	TierChangedAt    time.Time         `json:"tierChangedAt"`
	LastComputedAt   time.Time         `json:"lastComputedAt"`
}

// NewScoreRecord captures a computed score.
func NewScoreRecord(userID string, s *scoring.Score, computedAt time.Time) *ScoreRecord {
	return &ScoreRecord{
		UserID:           userID,
		Total:            s.Total,
		OriginalTotal:    s.OriginalTotal,
		BaseScore:        s.BaseScore,
		AdminAdjustments: s.AdminAdjustments,
		Breakdown:        s.Breakdown,
		DecayRate:        s.DecayRate,
		Tier:             s.Tier,
		TierChangedAt:    s.TierChangedAt,
		LastComputedAt:   computedAt,
	}
}

// Score returns the record as a scoring result.
func (r *ScoreRecord) Score() scoring.Score {
	return scoring.Score{
		Total:            r.Total,
		OriginalTotal:    r.OriginalTotal,
		BaseScore:        r.BaseScore,
		AdminAdjustments: r.AdminAdjustments,
		DecayRate:        r.DecayRate,
		Tier:             r.Tier,
		TierChangedAt:    r.TierChangedAt,
		Breakdown:        r.Breakdown,
	}
}

// Age returns how long ago the record was computed.
func (r *ScoreRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.LastComputedAt)
}

// Fresh reports whether the record is younger than ttl.
func (r *ScoreRecord) Fresh(now time.Time, ttl time.Duration) bool {
	return r != nil && r.Age(now) < ttl
}

// ScoreCache persists score records.
type ScoreCache interface {
	// Get returns the record for userID, or ErrNotFound.
	Get(ctx context.Context, userID string) (*ScoreRecord, error)
	// Put overwrites the record for its user.
	Put(ctx context.Context, rec *ScoreRecord) error
}
