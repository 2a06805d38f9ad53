package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXPForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  int64
	}{
		{0, 100},
		{1, 100},
		{2, 150},
		{3, 225},
		{4, 337},
		{5, 506},
		{10, 3844},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, XPForLevel(tt.level), "level %d", tt.level)
	}
}

func TestXPCurveIsStrictlyIncreasing(t *testing.T) {
	for level := 1; level < 60; level++ {
		assert.Less(t, XPForLevel(level), XPForLevel(level+1), "XPForLevel(%d)", level)
		assert.Less(t, TotalXPForLevel(level), TotalXPForLevel(level+1), "TotalXPForLevel(%d)", level)
	}
}

func TestXPCurveSaturatesAtHighLevels(t *testing.T) {
	for _, level := range []int{97, 98, 99, 150, 1000} {
		assert.Positive(t, XPForLevel(level), "XPForLevel(%d)", level)
		assert.Positive(t, TotalXPForLevel(level), "TotalXPForLevel(%d)", level)
	}
	assert.Equal(t, int64(math.MaxInt64), XPForLevel(1000))
	assert.Equal(t, int64(math.MaxInt64), TotalXPForLevel(1000))
	assert.LessOrEqual(t, XPForLevel(97), XPForLevel(98))

	res := AwardXP(math.MaxInt64-10, 1, 100)
	assert.Equal(t, int64(math.MaxInt64), res.NewXP)
	assert.Greater(t, res.NewLevel, 90)
	assert.Equal(t, res.NewLevel, LevelForXP(math.MaxInt64))
}

func TestTotalXPForLevel(t *testing.T) {
	assert.Equal(t, int64(0), TotalXPForLevel(1))
	assert.Equal(t, int64(100), TotalXPForLevel(2))
	assert.Equal(t, int64(250), TotalXPForLevel(3))
	assert.Equal(t, int64(475), TotalXPForLevel(4))
}

func TestLevelConsistency(t *testing.T) {
	for xp := int64(0); xp < 20000; xp += 7 {
		res := AwardXP(xp, 1, 0)
		assert.LessOrEqual(t, TotalXPForLevel(res.NewLevel), xp)
		assert.Less(t, xp, TotalXPForLevel(res.NewLevel+1))
		assert.Equal(t, res.NewLevel, LevelForXP(xp))
	}
}

func TestAwardZeroXPIsNoop(t *testing.T) {
	for _, tc := range []struct {
		xp    int64
		level int
	}{{0, 1}, {99, 1}, {100, 2}, {300, 3}} {
		res := AwardXP(tc.xp, tc.level, 0)
		assert.Equal(t, tc.level, res.NewLevel)
		assert.Equal(t, tc.xp, res.NewXP)
		assert.False(t, res.LeveledUp)
	}
}

func TestAwardXPScenarios(t *testing.T) {
	t.Run("zero to 260 lands on level 3", func(t *testing.T) {
		res := AwardXP(0, 1, 260)
		assert.Equal(t, int64(260), res.NewXP)
		assert.Equal(t, 3, res.NewLevel)
		assert.True(t, res.LeveledUp)
	})

	t.Run("95 plus 10 crosses into level 2", func(t *testing.T) {
		res := AwardXP(95, 1, 10)
		assert.Equal(t, int64(105), res.NewXP)
		assert.Equal(t, 2, res.NewLevel)
		assert.True(t, res.LeveledUp)
		assert.Equal(t, int64(10), res.XPGained)
	})

	t.Run("exact threshold", func(t *testing.T) {
		res := AwardXP(90, 1, 10)
		assert.Equal(t, 2, res.NewLevel)
	})

	t.Run("one short", func(t *testing.T) {
		res := AwardXP(90, 1, 9)
		assert.Equal(t, 1, res.NewLevel)
		assert.False(t, res.LeveledUp)
	})

	t.Run("level never decreases", func(t *testing.T) {
		res := AwardXP(0, 4, 10)
		assert.Equal(t, 4, res.NewLevel)
		assert.False(t, res.LeveledUp)
	})

	t.Run("multi level jump", func(t *testing.T) {
		res := AwardXP(0, 1, 475)
		assert.Equal(t, 4, res.NewLevel)
	})
}

func TestLevelProgressPercent(t *testing.T) {
	assert.Equal(t, 0, LevelProgressPercent(0, 1))
	assert.Equal(t, 50, LevelProgressPercent(50, 1))
	assert.Equal(t, 99, LevelProgressPercent(99, 1))
	assert.Equal(t, 4, LevelProgressPercent(260, 3))
	assert.Equal(t, 0, LevelProgressPercent(10, 3))
	assert.Equal(t, 100, LevelProgressPercent(10000, 1))
}
