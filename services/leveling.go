package services

import "math"

const (
	// BaseXPPerLevel is the XP needed to go from level 1 to level 2.
	BaseXPPerLevel = 100
	// LevelGrowth is the ratio between consecutive level costs.
	LevelGrowth = 1.5
)

// LevelResult is the outcome of applying an XP delta.
type LevelResult struct {
	PreviousXP    int64 `json:"previous_xp"`
	NewXP         int64 `json:"new_xp"`
	PreviousLevel int   `json:"previous_level"`
	NewLevel      int   `json:"new_level"`
	XPGained      int64 `json:"xp_gained"`
	LeveledUp     bool  `json:"leveled_up"`
}

// XPForLevel returns XP required to go from level to level+1:
// floor(100 * 1.5^(level-1)).
func XPForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	xp := math.Floor(BaseXPPerLevel * math.Pow(LevelGrowth, float64(level-1)))
	if xp >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(xp)
}

// addXP adds two non-negative XP amounts, saturating at math.MaxInt64.
func addXP(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// TotalXPForLevel returns the cumulative XP needed to reach level.
// TotalXPForLevel(1) == 0.
func TotalXPForLevel(level int) int64 {
	var total int64
	for i := 1; i < level && total < math.MaxInt64; i++ {
		total = addXP(total, XPForLevel(i))
	}
	return total
}

// AwardXP adds amount to currentXP and returns the largest level L >=
// currentLevel such that TotalXPForLevel(L) <= the new XP. Levels never go
// down here, even for negative amounts.
func AwardXP(currentXP int64, currentLevel int, amount int64) LevelResult {
	if currentLevel < 1 {
		currentLevel = 1
	}
	newXP := currentXP + amount
	if amount > 0 && newXP < currentXP {
		newXP = math.MaxInt64
	}

	level := currentLevel
	next := TotalXPForLevel(level + 1)
	for next <= newXP && next < math.MaxInt64 {
		level++
		next = addXP(next, XPForLevel(level))
	}

	return LevelResult{
		PreviousXP:    currentXP,
		NewXP:         newXP,
		PreviousLevel: currentLevel,
		NewLevel:      level,
		XPGained:      amount,
		LeveledUp:     level > currentLevel,
	}
}

// LevelForXP returns the level a user with xp total XP should be at.
func LevelForXP(xp int64) int {
	return AwardXP(xp, 1, 0).NewLevel
}

// LevelProgressPercent reports how far xp is into level, clamped to [0,100].
func LevelProgressPercent(xp int64, level int) int {
	span := XPForLevel(level)
	into := xp - TotalXPForLevel(level)
	pct := int(math.Floor(100 * float64(into) / float64(span)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
