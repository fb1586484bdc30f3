package main

import (
	"github.com/socialweight/socialweight/internal/engine"
	"github.com/socialweight/socialweight/pkg/scoring"
	"github.com/socialweight/socialweight/pkg/surface"
)

func report(res *engine.Result, tiers scoring.Tiers) *surface.Report {
	return &surface.Report{
		UserID:     res.UserID,
		Score:      res.Score,
		Weights:    res.Weights,
		Cached:     res.Cached,
		CacheAge:   res.CacheAge,
		ComputedAt: res.ComputedAt,
		Tiers:      tiers,
	}
}
