// Package surface renders Social Weight scores for people and programs.
// Implementations handle different output targets: terminal, JSON.
package surface

import (
	"fmt"
	"io"
	"time"

	"github.com/socialweight/socialweight/pkg/scoring"
)

// Report is a rendered view of one user's score.
type Report struct {
	UserID     string               `json:"userId"`
	Score      scoring.Score        `json:"score"`
	Weights    scoring.WeightConfig `json:"weights"`
	Cached     bool                 `json:"cached"`
	CacheAge   time.Duration        `json:"-"`
	ComputedAt time.Time            `json:"computedAt"`
	// Tiers, when set, lets renderers show progress to the next tier.
	Tiers scoring.Tiers `json:"-"`
}

// Renderer produces formatted output.
type Renderer interface {
	// Render writes the formatted score report to the writer.
	Render(w io.Writer, r *Report) error
	// RenderTiers writes the tier table.
	RenderTiers(w io.Writer, tiers scoring.Tiers) error
}

// ForFormat returns the renderer for an output format name.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &TerminalRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}

// NextTier returns the tier above current and the points still needed.
func NextTier(tiers scoring.Tiers, total int64) (scoring.TierThreshold, float64, bool) {
	for _, t := range tiers {
		if t.MinScore > float64(total) {
			return t, t.MinScore - float64(total), true
		}
	}
	return scoring.TierThreshold{}, 0, false
}
