package scoring

// Defaults returns the default weight table.
func Defaults() WeightConfig {
	return WeightConfig{
		// Identity
		Registration:     100,
		ProfileComplete:  50,
		GrowthMultiplier: 1,

		// Social graph
		Follower:         10,
		ConnectionFirst:  25,
		ConnectionRepeat: 5,

		// Content
		Post:     5,
		Comment:  2,
		Reaction: 1,

		// Invitations
		Invite:               20,
		ReferralBonusPercent: 10,

		Decay: DecayParams{
			DailyRate:           0.0001,
			PerHundredUsersRate: 0.001,
			Floor:               0.5,
		},

		CacheTTLSeconds: int(DefaultCacheTTL.Seconds()),
	}
}

// DefaultTiers returns the default tier threshold table.
func DefaultTiers() Tiers {
	return Tiers{
		{Name: "Beginner", MinScore: 0, Features: []string{"post", "comment"}},
		{Name: "Growing", MinScore: 250, Features: []string{"post", "comment", "invite"}},
		{Name: "Established", MinScore: 1000, Features: []string{"post", "comment", "invite", "create_group"}},
		{Name: "Expert", MinScore: 2500, Features: []string{"post", "comment", "invite", "create_group", "verified_badge"}},
		{Name: "Legend", MinScore: 5000, Features: []string{"post", "comment", "invite", "create_group", "verified_badge", "moderate"}},
	}
}

// DefaultConfig returns the default weights and tiers.
func DefaultConfig() *Config {
	return &Config{
		Weights: Defaults(),
		Tiers:   DefaultTiers(),
	}
}
