package scoring

import (
	"math"
	"time"
)

// DecayInputs are the observations the decay multiplier depends on.
type DecayInputs struct {
	RegisteredAt time.Time
	Now          time.Time
	UserCount    int64
}

// DaysSinceRegistration returns whole and fractional days since registration,
// never negative.
func (in DecayInputs) DaysSinceRegistration() float64 {
	if in.RegisteredAt.IsZero() || in.Now.Before(in.RegisteredAt) {
		return 0
	}
	return in.Now.Sub(in.RegisteredAt).Hours() / 24
}

// DecayRate computes the compounding multiplier:
//
//	dailyFactor  = 1 - days * dailyRate
//	growthFactor = 1 - (users/100) * perHundredUsersRate
//	rate         = max(floor, dailyFactor * growthFactor)
//
// Each factor is clamped to [0,1] before multiplying so two negative factors
// cannot produce a positive product, and the result is capped at 1.
func DecayRate(in DecayInputs, p DecayParams) float64 {
	daily := clamp01(1 - in.DaysSinceRegistration()*p.DailyRate)
	growth := clamp01(1 - (float64(in.UserCount)/100)*p.PerHundredUsersRate)

	rate := daily * growth
	if rate < p.Floor {
		rate = p.Floor
	}
	if rate > 1 {
		rate = 1
	}
	return rate
}

// ApplyDecay floors the decayed total.
func ApplyDecay(total, rate float64) int64 {
	return int64(math.Floor(total * rate))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
