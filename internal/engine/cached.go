package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/socialweight/socialweight/internal/platform"
	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// Transition describes a tier change observed on recomputation.
type Transition struct {
	UserID string
	From   string
	To     string
	Record *store.ScoreRecord
}

// Archiver keeps a copy of records whose tier changed.
type Archiver interface {
	ArchiveTransition(ctx context.Context, t Transition) error
}

// Cached serves scores from the score cache when fresh and recomputes
// otherwise. Writes are last-write-wins upserts; concurrent misses for the
// same user may both recompute.
type Cached struct {
	pipeline Recomputer
	cache    store.ScoreCache
	config   scoring.Provider
	overlay  Overlay
	archive  Archiver
	now      func() time.Time
	log      zerolog.Logger
}

// NewCached decorates pipeline with cache. archive may be nil.
func NewCached(pipeline Recomputer, cache store.ScoreCache, config scoring.Provider, src store.Source, archive Archiver, log zerolog.Logger) *Cached {
	overlay := Overlay{Src: src}
	if p, ok := pipeline.(*Pipeline); ok {
		overlay.Timeout = p.runner.Timeout()
	}
	return &Cached{
		pipeline: pipeline,
		cache:    cache,
		config:   config,
		overlay:  overlay,
		archive:  archive,
		now:      time.Now,
		log:      log.With().Str("component", "score_cache").Logger(),
	}
}

// Peek returns the cached record for a user, fresh or not, or nil when
// there is none. A cache that cannot be read is treated as empty.
func (c *Cached) Peek(ctx context.Context, userID string) (*store.ScoreRecord, error) {
	rec, err := c.cache.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("peek score cache: %w", err)
	}
	return rec, nil
}

// Score returns the user's score, from the fast path when the cached record
// is fresh.
func (c *Cached) Score(ctx context.Context, req Request) (*Result, error) {
	cfg, err := c.config.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	prev, err := c.Peek(ctx, req.UserID)
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", req.UserID).Msg("score cache unreadable, recomputing")
		prev = nil
	}

	now := c.now()
	if !req.Fresh && prev.Fresh(now, cfg.Weights.CacheTTL()) {
		res, err := c.fastPath(ctx, req, prev, cfg, now)
		if err != nil {
			return nil, err
		}
		platform.ScoreRequests.WithLabelValues("hit").Inc()
		return res, nil
	}

	if prev == nil {
		platform.ScoreRequests.WithLabelValues("miss").Inc()
	} else {
		platform.ScoreRequests.WithLabelValues("stale").Inc()
	}
	return c.recompute(ctx, req, prev)
}

// Recompute runs the full pipeline and persists the result.
func (c *Cached) Recompute(ctx context.Context, req Request) (*Result, error) {
	prev, err := c.Peek(ctx, req.UserID)
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", req.UserID).Msg("score cache unreadable")
		prev = nil
	}
	return c.recompute(ctx, req, prev)
}

// fastPath re-applies only the admin adjustment overlay to a fresh record,
// keeping its breakdown and decay rate. Tier and tier-changed-at stay as
// cached; only a full recompute classifies.
func (c *Cached) fastPath(ctx context.Context, req Request, rec *store.ScoreRecord, cfg *scoring.Config, now time.Time) (*Result, error) {
	admin, reason, err := c.overlay.Total(ctx, req)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		// Keep the adjustment the record was computed with.
		admin = rec.AdminAdjustments
	}
	score := scoring.Readjust(rec.Score(), admin)
	markAdmin(score.Breakdown, reason)

	return &Result{
		UserID:     req.UserID,
		Score:      score,
		Weights:    cfg.Weights,
		Cached:     true,
		CacheAge:   rec.Age(now),
		ComputedAt: rec.LastComputedAt,
	}, nil
}

func (c *Cached) recompute(ctx context.Context, req Request, prev *store.ScoreRecord) (*Result, error) {
	res, err := c.pipeline.Recompute(ctx, req)
	if err != nil {
		return nil, err
	}

	var prevTier string
	var prevStamp time.Time
	if prev != nil {
		prevTier, prevStamp = prev.Tier, prev.TierChangedAt
	}
	stamp, changed := scoring.Transition(prevTier, prevStamp, res.Score.Tier, res.ComputedAt)
	res.Score.TierChangedAt = stamp

	if res.Score.Breakdown.Degraded() {
		c.log.Info().Str("user_id", req.UserID).Msg("degraded score not cached")
		return res, nil
	}

	rec := store.NewScoreRecord(req.UserID, &res.Score, res.ComputedAt)
	if err := c.cache.Put(ctx, rec); err != nil {
		platform.CacheWriteErrors.Inc()
		c.log.Error().Err(err).Str("user_id", req.UserID).Msg("score cache write failed")
		return res, nil
	}

	if changed {
		platform.TierTransitions.WithLabelValues(prevTier, res.Score.Tier).Inc()
		c.log.Info().
			Str("user_id", req.UserID).
			Str("from", prevTier).
			Str("to", res.Score.Tier).
			Int64("total", res.Score.Total).
			Msg("tier changed")
		if c.archive != nil {
			t := Transition{UserID: req.UserID, From: prevTier, To: res.Score.Tier, Record: rec}
			if err := c.archive.ArchiveTransition(ctx, t); err != nil {
				c.log.Warn().Err(err).Str("user_id", req.UserID).Msg("archive tier transition failed")
			}
		}
	}
	return res, nil
}
