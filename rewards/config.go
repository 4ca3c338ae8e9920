/*
config.go - RewardConfig lifecycle

PURPOSE:
  The reward configuration (grade targets, milestones, thresholds) is a
  process-wide singleton in the store. This file owns its lifecycle:
  lazily created with defaults on first access, cached with explicit
  invalidation on write, and handed to the pure aggregation/eligibility
  functions as an explicit parameter.

CONSISTENCY:
  An aggregation pass reads the config ONCE (Snapshot) so a whole
  leaderboard computation sees a single consistent view, even if an
  admin update lands mid-pass.
*/
package rewards

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultRewardConfig is the bootstrap configuration inserted when none
// exists. Values mirror the targets the program launched with.
func DefaultRewardConfig() *RewardConfig {
	return &RewardConfig{
		GradeTargets: map[Grade]int{
			GradeA1: 2750, GradeB1: 3950, GradeB2: 4850,
			GradeC1: 7700, GradeC2: 8700, GradeD1: 6700, GradeD2: 6200,
		},
		Milestones: []Milestone{
			{
				Name: "Milestone 1", Description: "100% of Qtr target", Percentage: 25,
				BonusPoints: map[string]int{"Q1": 1000, "Q2": 1000, "Q3": 1000, "Q4": 1000},
			},
			{
				Name: "Milestone 2", Description: "50% of Yearly target", Percentage: 50,
				BonusPoints: map[string]int{"Q1": 2000, "Q2": 0, "Q3": 0, "Q4": 0},
			},
			{
				Name: "Milestone 3", Description: "75% of Yearly target", Percentage: 75,
				BonusPoints: map[string]int{"Q1": 3000, "Q2": 2000, "Q3": 0, "Q4": 0},
			},
			{
				Name: "Milestone 4", Description: "100% of Yearly target", Percentage: 100,
				BonusPoints: map[string]int{"Q1": 4000, "Q2": 3000, "Q3": 2000, "Q4": 0},
			},
		},
		UtilizationThreshold: 80,
		YearlyBonusLimit:     10000,
		LastUpdated:          time.Now().UTC(),
	}
}

// =============================================================================
// PROVIDER - cached singleton with explicit invalidation
// =============================================================================

// ConfigProvider serves RewardConfig snapshots. Missing configuration
// is auto-healed by inserting defaults (a bootstrap concern, not an
// error). The cache is invalidated only by Update/Invalidate - no lazy
// mutation scattered across call sites.
type ConfigProvider struct {
	Store Store

	mu     sync.RWMutex
	cached *RewardConfig
}

func NewConfigProvider(store Store) *ConfigProvider {
	return &ConfigProvider{Store: store}
}

// Snapshot returns the current configuration. Callers treat the result
// as immutable for the duration of an aggregation pass.
func (p *ConfigProvider) Snapshot(ctx context.Context) (*RewardConfig, error) {
	p.mu.RLock()
	if c := p.cached; c != nil {
		p.mu.RUnlock()
		return c, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		return p.cached, nil
	}

	cfg, err := p.Store.LoadRewardConfig(ctx)
	if err == ErrConfigMissing {
		cfg = DefaultRewardConfig()
		if err := p.Store.SaveRewardConfig(ctx, cfg); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	p.cached = cfg
	return cfg, nil
}

// Update persists a new configuration and replaces the cache.
func (p *ConfigProvider) Update(ctx context.Context, cfg *RewardConfig) error {
	cfg.LastUpdated = time.Now().UTC()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Store.SaveRewardConfig(ctx, cfg); err != nil {
		return err
	}
	p.cached = cfg
	return nil
}

// Invalidate drops the cache; the next Snapshot re-reads the store.
func (p *ConfigProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}
