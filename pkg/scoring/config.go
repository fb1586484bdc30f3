package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConfigMissing is returned when no weight configuration is available.
var ErrConfigMissing = errors.New("weight configuration missing")

// DefaultCacheTTL is the freshness window used when the configuration leaves it unset.
const DefaultCacheTTL = 15 * time.Minute

// WeightConfig holds the active weight table and decay parameters.
type WeightConfig struct {
	Registration         float64 `json:"registration" yaml:"registration"`
	ProfileComplete      float64 `json:"profileComplete" yaml:"profile_complete"`
	GrowthMultiplier     float64 `json:"growthMultiplier" yaml:"growth_multiplier"`
	Follower             float64 `json:"follower" yaml:"follower"`
	ConnectionFirst      float64 `json:"connectionFirst" yaml:"connection_first"`
	ConnectionRepeat     float64 `json:"connectionRepeat" yaml:"connection_repeat"`
	Post                 float64 `json:"post" yaml:"post"`
	Comment              float64 `json:"comment" yaml:"comment"`
	Reaction             float64 `json:"reaction" yaml:"reaction"`
	Invite               float64 `json:"invite" yaml:"invite"`
	ReferralBonusPercent float64 `json:"referralBonusPercentage" yaml:"referral_bonus_percentage"`

	Decay DecayParams `json:"decay" yaml:"decay"`

	CacheTTLSeconds int `json:"cacheTtlSeconds" yaml:"cache_ttl_seconds"`
}

// DecayParams controls the compounding decay multiplier.
type DecayParams struct {
	DailyRate           float64 `json:"dailyRate" yaml:"daily_rate"`
	PerHundredUsersRate float64 `json:"perHundredUsersRate" yaml:"per_hundred_users_rate"`
	Floor               float64 `json:"floor" yaml:"floor"`
}

// CacheTTL returns the configured freshness window.
func (w *WeightConfig) CacheTTL() time.Duration {
	if w == nil || w.CacheTTLSeconds <= 0 {
		return DefaultCacheTTL
	}
	return time.Duration(w.CacheTTLSeconds) * time.Second
}

// Validate checks the invariants the scoring model relies on.
func (w *WeightConfig) Validate() error {
	if w == nil {
		return fmt.Errorf("weight config is nil")
	}
	if w.ConnectionRepeat >= w.ConnectionFirst && w.ConnectionFirst > 0 {
		return fmt.Errorf("connection repeat weight %.2f must be below first weight %.2f", w.ConnectionRepeat, w.ConnectionFirst)
	}
	if w.Decay.Floor < 0 || w.Decay.Floor > 1 {
		return fmt.Errorf("decay floor %.3f outside [0,1]", w.Decay.Floor)
	}
	if w.Decay.DailyRate < 0 || w.Decay.PerHundredUsersRate < 0 {
		return fmt.Errorf("decay rates must be non-negative")
	}
	if w.ReferralBonusPercent < 0 {
		return fmt.Errorf("referral bonus percentage must be non-negative")
	}
	return nil
}

// Config is the full scoring configuration: weights plus tier thresholds.
type Config struct {
	Weights WeightConfig
	Tiers   Tiers
}

// Provider supplies the active scoring configuration.
type Provider interface {
	Config(ctx context.Context) (*Config, error)
}

// StaticProvider serves a fixed configuration.
type StaticProvider struct {
	Cfg *Config
}

func (p StaticProvider) Config(ctx context.Context) (*Config, error) {
	if p.Cfg == nil {
		return nil, ErrConfigMissing
	}
	return p.Cfg, nil
}
