package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/socialweight/socialweight/pkg/scoring"
)

const (
	TableWeights = "sw_weights"
	TableTiers   = "sw_tiers"

	weightsRowID = 1
)

// ConfigStore reads the weight singleton and the tier table through a
// Source. When the weight row is absent and a fallback provider is set, the
// fallback supplies the configuration instead.
type ConfigStore struct {
	src      Source
	fallback scoring.Provider
}

// NewConfigStore creates a store-backed provider. fallback may be nil.
func NewConfigStore(src Source, fallback scoring.Provider) *ConfigStore {
	return &ConfigStore{src: src, fallback: fallback}
}

func (s *ConfigStore) Config(ctx context.Context) (*scoring.Config, error) {
	weights, err := s.weights(ctx)
	if err != nil {
		return nil, err
	}
	tiers, err := s.tiers(ctx)
	if err != nil {
		return nil, err
	}
	return &scoring.Config{Weights: *weights, Tiers: tiers}, nil
}

func (s *ConfigStore) weights(ctx context.Context) (*scoring.WeightConfig, error) {
	row, err := s.src.Row(ctx, TableWeights, "id", weightsRowID)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSchemaDrift):
		if s.fallback != nil {
			cfg, ferr := s.fallback.Config(ctx)
			if ferr != nil {
				return nil, fmt.Errorf("load fallback weights: %w", ferr)
			}
			return &cfg.Weights, nil
		}
		return nil, fmt.Errorf("%w: %v", scoring.ErrConfigMissing, err)
	case err != nil:
		return nil, fmt.Errorf("load weights: %w", err)
	}

	w := scoring.Defaults()
	if err := row.Decode("weights", &w); err != nil {
		return nil, fmt.Errorf("%w: %v", scoring.ErrConfigMissing, err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return &w, nil
}

func (s *ConfigStore) tiers(ctx context.Context) (scoring.Tiers, error) {
	rows, err := s.src.Rows(ctx, Query{Table: TableTiers, OrderBy: "min_score"})
	if errors.Is(err, ErrSchemaDrift) || errors.Is(err, ErrNotFound) || (err == nil && len(rows) == 0) {
		return s.fallbackTiers(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load tiers: %w", err)
	}

	thresholds := make([]scoring.TierThreshold, 0, len(rows))
	for _, r := range rows {
		t := scoring.TierThreshold{Name: r.String("name"), MinScore: r.Float("min_score")}
		if r.Has("features") {
			if err := r.Decode("features", &t.Features); err != nil {
				return nil, fmt.Errorf("tier %s: %w", t.Name, err)
			}
		}
		thresholds = append(thresholds, t)
	}
	return scoring.NewTiers(thresholds)
}

func (s *ConfigStore) fallbackTiers(ctx context.Context) (scoring.Tiers, error) {
	if s.fallback != nil {
		if cfg, err := s.fallback.Config(ctx); err == nil && len(cfg.Tiers) > 0 {
			return cfg.Tiers, nil
		}
	}
	return scoring.DefaultTiers(), nil
}
