package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/socialweight/socialweight/internal/platform"
	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// DefaultTimeout bounds a single collector.
const DefaultTimeout = 3 * time.Second

var tracer = otel.Tracer("github.com/socialweight/socialweight/internal/collect")

// Defaults returns the full collector set.
func Defaults(src store.Source, cache store.ScoreCache, window int) []Collector {
	return []Collector{
		Registration{},
		ProfileComplete{},
		Growth{Src: src},
		Followers{Src: src},
		Connections{Src: src, Window: window},
		Posts{Src: src},
		Comments{Src: src},
		Reactions{Src: src},
		Invites{Src: src},
		ReferralBonus{Src: src, Cache: cache},
	}
}

// Runner runs collectors concurrently and applies the failure policy:
// timeouts, schema drift that survived every alias, transient errors and
// access denial for ordinary callers become skipped zero results. Access
// denial for an elevated caller is returned as an error.
type Runner struct {
	collectors []Collector
	timeout    time.Duration
	log        zerolog.Logger
}

// NewRunner creates a runner. A non-positive timeout uses DefaultTimeout.
func NewRunner(log zerolog.Logger, timeout time.Duration, collectors ...Collector) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		collectors: collectors,
		timeout:    timeout,
		log:        log.With().Str("component", "collect").Logger(),
	}
}

// Timeout is the bound applied to each collector.
func (r *Runner) Timeout() time.Duration { return r.timeout }

// Run collects every category for sub. It returns only when all collectors
// have finished or been abandoned.
func (r *Runner) Run(ctx context.Context, sub Subject) (map[scoring.Category]scoring.CategoryResult, error) {
	var mu sync.Mutex
	results := make(map[scoring.Category]scoring.CategoryResult, len(r.collectors))

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range r.collectors {
		g.Go(func() error {
			res, err := r.runOne(gctx, c, sub)
			if err != nil {
				return err
			}
			mu.Lock()
			results[c.Category()] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type outcome struct {
	res scoring.CategoryResult
	err error
}

func (r *Runner) runOne(ctx context.Context, c Collector, sub Subject) (scoring.CategoryResult, error) {
	cat := string(c.Category())
	ctx, span := tracer.Start(ctx, "collect."+cat)
	defer span.End()
	span.SetAttributes(attribute.String("sw.category", cat), attribute.Bool("sw.elevated", sub.Elevated))

	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		res, err := c.Collect(cctx, sub)
		done <- outcome{res, err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-cctx.Done():
		o = outcome{err: cctx.Err()}
	}

	// The request itself ended; nothing to tolerate.
	if ctx.Err() != nil {
		span.SetStatus(codes.Error, "canceled")
		return scoring.CategoryResult{}, ctx.Err()
	}

	weight := c.Weight(sub.Weights)
	log := r.log.With().Str("category", cat).Str("user_id", sub.UserID).Logger()

	switch {
	case o.err == nil:
		platform.ObserveCollector(cat, "ok", start)
		if o.res.Skipped {
			span.SetAttributes(attribute.String("sw.skip_reason", o.res.Reason))
		}
		return o.res, nil

	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		log.Warn().Dur("timeout", r.timeout).Msg("collector timed out, treating as zero")
		platform.ObserveCollector(cat, scoring.ReasonTimeout, start)
		span.SetAttributes(attribute.String("sw.skip_reason", scoring.ReasonTimeout))
		return scoring.SkippedResult(weight, scoring.ReasonTimeout), nil

	case errors.Is(o.err, store.ErrAccessDenied):
		platform.ObserveCollector(cat, scoring.ReasonAccessDenied, start)
		if sub.Elevated {
			span.SetStatus(codes.Error, o.err.Error())
			return scoring.CategoryResult{}, fmt.Errorf("collect %s: %w", cat, o.err)
		}
		log.Warn().Err(o.err).Msg("access denied, treating as zero")
		span.SetAttributes(attribute.String("sw.skip_reason", scoring.ReasonAccessDenied))
		return scoring.SkippedResult(weight, scoring.ReasonAccessDenied), nil

	case errors.Is(o.err, store.ErrNotFound):
		platform.ObserveCollector(cat, "ok", start)
		return scoring.Weighted(0, weight), nil

	case errors.Is(o.err, store.ErrSchemaDrift):
		log.Warn().Err(o.err).Msg("no known column layout, treating as zero")
		platform.ObserveCollector(cat, scoring.ReasonSchema, start)
		span.SetAttributes(attribute.String("sw.skip_reason", scoring.ReasonSchema))
		return scoring.SkippedResult(weight, scoring.ReasonSchema), nil

	default:
		log.Warn().Err(o.err).Msg("collector failed, treating as zero")
		platform.ObserveCollector(cat, scoring.ReasonTransient, start)
		span.RecordError(o.err)
		span.SetAttributes(attribute.String("sw.skip_reason", scoring.ReasonTransient))
		return scoring.SkippedResult(weight, scoring.ReasonTransient), nil
	}
}
