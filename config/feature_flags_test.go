package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureAggregationAsync, nil))
	assert.True(t, ff.IsEnabled(FeatureAggregationRetries, nil))
	assert.True(t, ff.IsEnabled(FeatureStatsCache, nil))
	assert.True(t, ff.IsEnabled(FeatureGamificationAchievements, nil))
	assert.True(t, ff.IsEnabled(FeatureReconcileSweep, nil))
}

func TestFeatureFlags_EnvBooleanOverride(t *testing.T) {
	t.Setenv("FEATURE_AGGREGATION_ASYNC", "false")
	t.Setenv("FEATURE_STATS_CACHE", "false")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureAggregationAsync, nil))
	assert.False(t, ff.IsEnabled(FeatureStatsCache, nil))
	assert.True(t, ff.IsEnabled(FeatureAggregationRetries, nil))
}

func TestFeatureFlags_EnvPercentOverride(t *testing.T) {
	t.Setenv("FEATURE_GAMIFICATION_ACHIEVEMENTS", "0")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureGamificationAchievements, nil))
}

func TestFeatureFlags_UnknownFeatureIsDisabled(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled("stats.holograms", nil))
}

func TestFeatureFlags_UserOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()
	ff.SetUserOverride(42, FeatureStatsCache, false)

	ctx := &FeatureContext{UserID: 42}
	assert.False(t, ff.IsEnabled(FeatureStatsCache, ctx))

	ff.ClearUserOverrides(42)
	assert.True(t, ff.IsEnabled(FeatureStatsCache, ctx))
}

func TestFeatureFlags_RolloutIsConsistentPerUser(t *testing.T) {
	ff := LoadFeatureFlags()
	assert.NoError(t, ff.SetRolloutPercent(FeatureStatsCache, 50))

	ctx := &FeatureContext{UserID: 7}
	first := ff.IsEnabled(FeatureStatsCache, ctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureStatsCache, ctx))
	}
}
