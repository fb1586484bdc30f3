// Package scoring implements the Social Weight scoring model.
// It aggregates weighted activity signals into an explainable breakdown,
// overlays admin adjustments, applies decay and classifies the result into a tier.
package scoring

import "time"

// Category identifies one scoring signal in the breakdown.
type Category string

const (
	CategoryRegistration     Category = "registration"
	CategoryProfileComplete  Category = "profileComplete"
	CategoryGrowth           Category = "growth"
	CategoryFollowers        Category = "followers"
	CategoryConnections      Category = "connections"
	CategoryPosts            Category = "posts"
	CategoryComments         Category = "comments"
	CategoryReactions        Category = "reactions"
	CategoryInvites          Category = "invites"
	CategoryReferralBonus    Category = "referralBonus"
	CategoryAdminAdjustments Category = "adminAdjustments"
)

// SignalCategories lists the collected categories in aggregation order.
// Summing in a fixed order keeps recomputation byte-for-byte reproducible.
var SignalCategories = []Category{
	CategoryRegistration,
	CategoryProfileComplete,
	CategoryGrowth,
	CategoryFollowers,
	CategoryConnections,
	CategoryPosts,
	CategoryComments,
	CategoryReactions,
	CategoryInvites,
	CategoryReferralBonus,
}

// Skip reasons recorded on a CategoryResult.
const (
	ReasonAccessDenied = "access_denied"
	ReasonSchema       = "schema_drift"
	ReasonTransient    = "transient"
	ReasonTimeout      = "timeout"
)

// CategoryResult is the output of a single signal category.
type CategoryResult struct {
	Points  float64            `json:"points"`
	Count   int64              `json:"count"`
	Weight  float64            `json:"weight"`
	Skipped bool               `json:"skipped,omitempty"`
	Reason  string             `json:"reason,omitempty"`
	Details map[string]float64 `json:"details,omitempty"`
}

// Weighted builds a result where points = weight × count.
func Weighted(count int64, weight float64) CategoryResult {
	return CategoryResult{
		Points: float64(count) * weight,
		Count:  count,
		Weight: weight,
	}
}

// SkippedResult builds a zero result for a category that could not be collected.
func SkippedResult(weight float64, reason string) CategoryResult {
	return CategoryResult{Weight: weight, Skipped: true, Reason: reason}
}

// Transient reports whether the skip reason may clear on a retry.
func (r CategoryResult) Transient() bool {
	if !r.Skipped {
		return false
	}
	switch r.Reason {
	case ReasonAccessDenied, ReasonTransient, ReasonTimeout:
		return true
	default:
		return false
	}
}

// Breakdown maps each category to its result. It is both the user-facing
// explanation and the payload reused by the cache fast path.
type Breakdown map[Category]CategoryResult

// Clone returns a copy that can be patched without touching the original.
func (b Breakdown) Clone() Breakdown {
	out := make(Breakdown, len(b))
	for k, v := range b {
		if v.Details != nil {
			d := make(map[string]float64, len(v.Details))
			for dk, dv := range v.Details {
				d[dk] = dv
			}
			v.Details = d
		}
		out[k] = v
	}
	return out
}

// Degraded reports whether any category was skipped for a reason that may
// clear on retry.
func (b Breakdown) Degraded() bool {
	for _, r := range b {
		if r.Transient() {
			return true
		}
	}
	return false
}

// Score is the complete output of one Social Weight computation.
type Score struct {
	Total            int64     `json:"totalSW"`
	OriginalTotal    float64   `json:"originalSW"`
	BaseScore        float64   `json:"baseSW"`
	AdminAdjustments float64   `json:"adminAdjustments"`
	DecayRate        float64   `json:"inflationRate"`
	Tier             string    `json:"tier"`
	TierChangedAt    time.Time `json:"tierChangedAt"`
	Breakdown        Breakdown `json:"breakdown"`
}
