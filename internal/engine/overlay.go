package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/socialweight/socialweight/internal/collect"
	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// AdminTotalFunc is the database aggregate summing a user's adjustments.
const AdminTotalFunc = "sw_admin_adjustment_total"

// Overlay reads the current admin adjustment total for a user.
type Overlay struct {
	Src store.Source
	// Timeout bounds the read; zero uses collect.DefaultTimeout.
	Timeout time.Duration
}

// Total returns the signed adjustment sum. A tolerated failure yields 0 and
// the skip reason; access denial for an elevated caller is an error.
func (o Overlay) Total(ctx context.Context, req Request) (float64, string, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = collect.DefaultTimeout
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	total, err := o.Src.Call(rctx, AdminTotalFunc, req.UserID)
	if errors.Is(err, store.ErrSchemaDrift) {
		total, err = o.Src.Sum(rctx, store.Query{
			Table: collect.TableAdjustments,
			Where: []store.Cond{store.Eq("user_id", req.UserID)},
		}, "points")
	}
	if ctx.Err() != nil {
		return 0, "", ctx.Err()
	}
	switch {
	case err == nil:
		return total, "", nil
	case errors.Is(rctx.Err(), context.DeadlineExceeded):
		return 0, scoring.ReasonTimeout, nil
	case errors.Is(err, store.ErrNotFound):
		return 0, "", nil
	case errors.Is(err, store.ErrAccessDenied):
		if req.Elevated {
			return 0, "", fmt.Errorf("admin adjustments: %w", err)
		}
		return 0, scoring.ReasonAccessDenied, nil
	case errors.Is(err, store.ErrSchemaDrift):
		return 0, scoring.ReasonSchema, nil
	default:
		return 0, scoring.ReasonTransient, nil
	}
}

// markAdmin records a skipped admin read on the breakdown.
func markAdmin(b scoring.Breakdown, reason string) {
	if reason == "" {
		return
	}
	r := b[scoring.CategoryAdminAdjustments]
	r.Skipped = true
	r.Reason = reason
	b[scoring.CategoryAdminAdjustments] = r
}
