package archiveref

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cxparchive/cxp/internal/tier"
)

func TestNewDefaultsToWarm(t *testing.T) {
	ref := New("id-1", "child", External("child.cxp"), Meta{})
	require.Equal(t, tier.Warm, ref.Tier)
}

func TestTouchSetsLastAccessedAndRecomputesTier(t *testing.T) {
	now := time.Now()
	ref := New("id-1", "child", External("child.cxp"), Meta{UpdatedAt: now.AddDate(0, 0, -60)})

	ref.Touch(now)
	require.NotNil(t, ref.LastAccessed)
	require.WithinDuration(t, now, *ref.LastAccessed, time.Second)
	// updated 60 days ago, accessed now: score = 0.7*60 + 0.3*0 = 42 -> Cold
	require.Equal(t, tier.Cold, ref.Tier)
}

func TestRecalculateTierHotWhenRecent(t *testing.T) {
	now := time.Now()
	ref := New("id-1", "child", External("child.cxp"), Meta{UpdatedAt: now})
	// A never-accessed ref counts 365 days since access (score 109.5 -> Cold),
	// so record a recent access: score = 0.7*0 + 0.3*0 = 0 -> Hot.
	ref.LastAccessed = &now
	ref.RecalculateTier(now)
	require.Equal(t, tier.Hot, ref.Tier)
}
