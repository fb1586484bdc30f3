// Package engine computes Social Weight scores. Pipeline always runs the
// full computation; Cached decorates it with the score cache and the
// admin-adjustment fast path.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/socialweight/socialweight/internal/collect"
	"github.com/socialweight/socialweight/internal/platform"
	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// ErrConfigMissing is returned when no weight configuration can be loaded.
var ErrConfigMissing = scoring.ErrConfigMissing

var tracer = otel.Tracer("github.com/socialweight/socialweight/internal/engine")

// Request asks for one user's score.
type Request struct {
	UserID string
	// Elevated callers see access denial as an error instead of a skipped
	// category.
	Elevated bool
	// Fresh bypasses the cache fast path.
	Fresh bool
}

// Result is a computed or cache-served score.
type Result struct {
	UserID     string
	Score      scoring.Score
	Weights    scoring.WeightConfig
	Cached     bool
	CacheAge   time.Duration
	ComputedAt time.Time
}

// Recomputer runs the full scoring pipeline.
type Recomputer interface {
	Recompute(ctx context.Context, req Request) (*Result, error)
}

// Pipeline runs collectors, aggregation, the admin overlay, decay and tier
// classification.
type Pipeline struct {
	src    store.Source
	config scoring.Provider
	runner *collect.Runner
	users  *UserCountMemo
	now    func() time.Time
	log    zerolog.Logger
}

// NewPipeline wires a pipeline.
func NewPipeline(src store.Source, config scoring.Provider, runner *collect.Runner, users *UserCountMemo, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		src:    src,
		config: config,
		runner: runner,
		users:  users,
		now:    time.Now,
		log:    log.With().Str("component", "pipeline").Logger(),
	}
}

// Recompute computes the score from scratch. The tier-changed-at stamp is
// the computation time; callers that know the previous tier adjust it.
func (p *Pipeline) Recompute(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine.recompute")
	defer span.End()
	span.SetAttributes(attribute.String("sw.user_id", req.UserID))

	start := p.now()
	defer func() { platform.RecomputeSeconds.Observe(time.Since(start).Seconds()) }()

	cfg, err := p.config.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	sub := collect.Subject{UserID: req.UserID, Elevated: req.Elevated, Weights: cfg.Weights}
	profile, err := p.loadProfile(ctx, req.UserID)
	switch {
	case err == nil:
		sub.Profile = profile
	case errors.Is(err, store.ErrAccessDenied) && !req.Elevated:
		p.log.Warn().Err(err).Str("user_id", req.UserID).Msg("profile access denied, scoring without it")
		sub.ProfileSkip = scoring.ReasonAccessDenied
	default:
		return nil, fmt.Errorf("load profile: %w", err)
	}

	// Without a profile there is nothing to credit; only adjustments apply.
	results := map[scoring.Category]scoring.CategoryResult{}
	if sub.Profile != nil || sub.ProfileSkip != "" {
		results, err = p.runner.Run(ctx, sub)
		if err != nil {
			return nil, err
		}
	}
	base, breakdown := scoring.Aggregate(results)

	admin, reason, err := Overlay{Src: p.src, Timeout: p.runner.Timeout()}.Total(ctx, req)
	if err != nil {
		return nil, err
	}

	rate := p.decayRate(ctx, sub.Profile, cfg.Weights.Decay)

	score, err := scoring.Finalize(base, breakdown, admin, rate, cfg.Tiers)
	if err != nil {
		return nil, err
	}
	markAdmin(score.Breakdown, reason)

	now := p.now()
	score.TierChangedAt = now
	return &Result{
		UserID:     req.UserID,
		Score:      *score,
		Weights:    cfg.Weights,
		ComputedAt: now,
	}, nil
}

func (p *Pipeline) loadProfile(ctx context.Context, userID string) (*collect.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.runner.Timeout())
	defer cancel()
	return collect.LoadProfile(ctx, p.src, userID)
}

// decayRate derives the decay multiplier, or 1 when its inputs are
// unavailable within the collector timeout.
func (p *Pipeline) decayRate(ctx context.Context, profile *collect.Profile, params scoring.DecayParams) float64 {
	if profile == nil || profile.CreatedAt.IsZero() {
		return 1
	}
	if p.users == nil {
		return 1
	}
	uctx, cancel := context.WithTimeout(ctx, p.runner.Timeout())
	defer cancel()
	users, err := p.users.Get(uctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("user count unavailable, skipping decay")
		return 1
	}
	return scoring.DecayRate(scoring.DecayInputs{
		RegisteredAt: profile.CreatedAt,
		Now:          p.now(),
		UserCount:    users,
	}, params)
}
