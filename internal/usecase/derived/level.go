// Package derived holds the pure, deterministic evaluators recomputed after
// ledger mutations: streak continuation, XP leveling, and career/tool
// unlocking. Nothing here performs I/O or keeps state of its own.
package derived

// LevelThreshold maps a level to the minimum XP required to hold it.
type LevelThreshold struct {
	Level int
	XP    int64
}

// LevelThresholds is the ordered leveling table. Level = highest threshold
// whose XP is <= the counter.
var LevelThresholds = []LevelThreshold{
	{Level: 1, XP: 0},
	{Level: 2, XP: 100},
	{Level: 3, XP: 250},
	{Level: 4, XP: 500},
	{Level: 5, XP: 1000},
	{Level: 6, XP: 2000},
	{Level: 7, XP: 4000},
	{Level: 8, XP: 8000},
	{Level: 9, XP: 15000},
	{Level: 10, XP: 30000},
}

// CalculateLevel maps a monotonically increasing XP counter to a level.
func CalculateLevel(xp int64) int {
	for i := len(LevelThresholds) - 1; i >= 0; i-- {
		if xp >= LevelThresholds[i].XP {
			return LevelThresholds[i].Level
		}
	}
	return 1
}

// LevelProgress describes progress from the current level to the next one.
type LevelProgress struct {
	CurrentLevel     int
	NextLevel        int
	ProgressPercent  float64
	XPToNext         int64
	CurrentThreshold int64
}

// Progress computes linear-interpolation progress between the current level
// threshold and the next. At the top level progress is pinned to 100%.
func Progress(xp int64) LevelProgress {
	current := CalculateLevel(xp)

	var currentThreshold int64
	var next *LevelThreshold
	for i := range LevelThresholds {
		if LevelThresholds[i].Level == current {
			currentThreshold = LevelThresholds[i].XP
		}
		if LevelThresholds[i].Level == current+1 {
			next = &LevelThresholds[i]
		}
	}

	if next == nil {
		return LevelProgress{
			CurrentLevel:     current,
			NextLevel:        current,
			ProgressPercent:  100,
			CurrentThreshold: currentThreshold,
		}
	}

	xpInLevel := xp - currentThreshold
	span := next.XP - currentThreshold
	percent := float64(xpInLevel) / float64(span) * 100
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	return LevelProgress{
		CurrentLevel:     current,
		NextLevel:        current + 1,
		ProgressPercent:  percent,
		XPToNext:         next.XP - xp,
		CurrentThreshold: currentThreshold,
	}
}
