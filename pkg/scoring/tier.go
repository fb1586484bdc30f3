package scoring

import (
	"fmt"
	"sort"
	"time"
)

// TierThreshold is one bracket of the tier table.
type TierThreshold struct {
	Name     string   `json:"name" yaml:"name"`
	MinScore float64  `json:"minScore" yaml:"min_score"`
	Features []string `json:"features,omitempty" yaml:"features"`
}

// Tiers is a tier table sorted ascending by MinScore.
type Tiers []TierThreshold

// NewTiers validates and sorts a tier table.
func NewTiers(thresholds []TierThreshold) (Tiers, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("tier table is empty")
	}
	seen := make(map[string]bool, len(thresholds))
	out := make(Tiers, len(thresholds))
	copy(out, thresholds)
	for _, t := range out {
		if t.Name == "" {
			return nil, fmt.Errorf("tier with min score %.0f has no name", t.MinScore)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate tier %q", t.Name)
		}
		seen[t.Name] = true
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinScore < out[j].MinScore })
	return out, nil
}

// Classify returns the highest tier whose threshold is <= score.
// Scores below the lowest threshold map to the lowest tier, so a tier is
// always returned for a non-empty table.
func (t Tiers) Classify(score int64) TierThreshold {
	if len(t) == 0 {
		return TierThreshold{}
	}
	idx := sort.Search(len(t), func(i int) bool { return t[i].MinScore > float64(score) })
	if idx == 0 {
		return t[0]
	}
	return t[idx-1]
}

// Lookup finds a tier by name.
func (t Tiers) Lookup(name string) (TierThreshold, bool) {
	for _, tier := range t {
		if tier.Name == name {
			return tier, true
		}
	}
	return TierThreshold{}, false
}

// Transition decides the tier-changed-at stamp for a newly classified tier.
// prev is the cached tier ("" when no record exists). The previous stamp is
// carried forward unless the tier differs.
func Transition(prev string, prevChangedAt time.Time, next string, now time.Time) (time.Time, bool) {
	if prev == "" {
		return now, false
	}
	if prev == next {
		return prevChangedAt, false
	}
	return now, true
}
