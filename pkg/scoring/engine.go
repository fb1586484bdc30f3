package scoring

import "fmt"

// Aggregate sums the collected category results into a base score and the
// breakdown that explains it. Categories missing from results are recorded
// as zero so the breakdown always carries every signal category.
func Aggregate(results map[Category]CategoryResult) (float64, Breakdown) {
	breakdown := make(Breakdown, len(SignalCategories)+1)
	var base float64
	for _, c := range SignalCategories {
		r, ok := results[c]
		if !ok {
			r = CategoryResult{}
		}
		breakdown[c] = r
		base += r.Points
	}
	return base, breakdown
}

// AdminResult is the breakdown entry for the admin adjustment overlay.
func AdminResult(total float64) CategoryResult {
	return CategoryResult{Points: total, Weight: 1}
}

// Finalize overlays admin adjustments on a base score, applies the decay
// rate and classifies the decayed total.
func Finalize(base float64, breakdown Breakdown, admin, rate float64, tiers Tiers) (*Score, error) {
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("decay rate %.4f outside [0,1]", rate)
	}
	if breakdown == nil {
		breakdown = Breakdown{}
	}
	breakdown[CategoryAdminAdjustments] = AdminResult(admin)

	original := base + admin
	total := ApplyDecay(original, rate)

	return &Score{
		Total:            total,
		OriginalTotal:    original,
		BaseScore:        base,
		AdminAdjustments: admin,
		DecayRate:        rate,
		Tier:             tiers.Classify(total).Name,
		Breakdown:        breakdown,
	}, nil
}

// Readjust applies a fresh admin adjustment total to a cached score without
// touching the collected signals, the cached decay rate or the cached tier.
// The input is not modified.
func Readjust(cached Score, admin float64) Score {
	base := cached.OriginalTotal - cached.AdminAdjustments
	out := cached
	out.BaseScore = base
	out.AdminAdjustments = admin
	out.OriginalTotal = base + admin
	out.Total = ApplyDecay(out.OriginalTotal, cached.DecayRate)
	out.Breakdown = cached.Breakdown.Clone()
	out.Breakdown[CategoryAdminAdjustments] = AdminResult(admin)
	return out
}
