package surface

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/socialweight/socialweight/pkg/scoring"
)

// TerminalRenderer renders reports as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
)

// tierColor colors the default tier names; custom tiers render plain.
func tierColor(tier string) string {
	if noColor() {
		return ""
	}
	switch tier {
	case "Growing":
		return colorGreen
	case "Established":
		return colorCyan
	case "Expert":
		return colorYellow
	case "Legend":
		return colorMagenta
	default:
		return ""
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, rep *Report) error {
	s := rep.Score

	// Header
	fmt.Fprintf(w, "%s\n", bold(fmt.Sprintf("Social Weight %d: %s",
		s.Total, colored(s.Tier, tierColor(s.Tier)))))

	source := "computed " + rep.ComputedAt.UTC().Format(time.RFC3339)
	if rep.Cached {
		source += fmt.Sprintf(" (cached, %s old)", rep.CacheAge.Round(time.Second))
	}
	fmt.Fprintf(w, "%s\n\n", dim("user "+rep.UserID+", "+source))

	// Breakdown
	fmt.Fprintln(w, "Breakdown:")
	categories := append(append([]scoring.Category{}, scoring.SignalCategories...), scoring.CategoryAdminAdjustments)
	for _, c := range categories {
		res, ok := s.Breakdown[c]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-18s ", c)
		if res.Skipped {
			fmt.Fprintf(w, "%s\n", colored("skipped ("+res.Reason+")", colorRed))
			continue
		}
		fmt.Fprintf(w, "%9s", signed(res.Points))
		if c != scoring.CategoryAdminAdjustments && res.Count > 0 {
			fmt.Fprintf(w, "  %s", dim(fmt.Sprintf("%d x %g", res.Count, res.Weight)))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	// Totals
	fmt.Fprintf(w, "Base %.1f, adjustments %s, before decay %.1f\n",
		s.BaseScore, signed(s.AdminAdjustments), s.OriginalTotal)
	decay := fmt.Sprintf("Decay x%.4f", s.DecayRate)
	if s.DecayRate < 1 {
		decay = colored(decay, colorYellow)
	}
	fmt.Fprintf(w, "%s, total %s\n\n", decay, bold(fmt.Sprint(s.Total)))

	// Tier
	if !s.TierChangedAt.IsZero() {
		fmt.Fprintf(w, "Tier %s since %s\n", colored(s.Tier, tierColor(s.Tier)), s.TierChangedAt.UTC().Format("2006-01-02"))
	}
	if current, ok := rep.Tiers.Lookup(s.Tier); ok && len(current.Features) > 0 {
		fmt.Fprintf(w, "Features: %s\n", strings.Join(current.Features, ", "))
	}
	if next, gap, ok := NextTier(rep.Tiers, s.Total); ok {
		fmt.Fprintf(w, "Next: %s at %.0f (%.0f to go)\n", next.Name, next.MinScore, gap)
	}
	if s.Breakdown.Degraded() {
		fmt.Fprintf(w, "\n%s\n", colored("Some categories could not be read; this score was not cached.", colorRed))
	}
	return nil
}

func (r *TerminalRenderer) RenderTiers(w io.Writer, tiers scoring.Tiers) error {
	fmt.Fprintln(w, bold("Tiers:"))
	for _, t := range tiers {
		fmt.Fprintf(w, "  %-14s %8.0f", colored(t.Name, tierColor(t.Name)), t.MinScore)
		if len(t.Features) > 0 {
			fmt.Fprintf(w, "  %s", dim(strings.Join(t.Features, ", ")))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func signed(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.1f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
