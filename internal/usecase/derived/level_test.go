package derived

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		name  string
		xp    int64
		level int
	}{
		{"zero XP is level 1", 0, 1},
		{"just below first threshold", 99, 1},
		{"exactly at threshold", 100, 2},
		{"mid table", 600, 4},
		{"top of table", 30000, 10},
		{"beyond top of table", 1_000_000, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.level, CalculateLevel(tt.xp))
		})
	}
}

func TestProgress_LinearInterpolation(t *testing.T) {
	// Level 2 spans 100..250 XP; 175 XP is exactly halfway.
	p := Progress(175)

	assert.Equal(t, 2, p.CurrentLevel)
	assert.Equal(t, 3, p.NextLevel)
	assert.InDelta(t, 50.0, p.ProgressPercent, 0.001)
	assert.Equal(t, int64(75), p.XPToNext)
	assert.Equal(t, int64(100), p.CurrentThreshold)
}

func TestProgress_TopLevelIsPinned(t *testing.T) {
	p := Progress(45000)

	assert.Equal(t, 10, p.CurrentLevel)
	assert.Equal(t, 10, p.NextLevel)
	assert.Equal(t, 100.0, p.ProgressPercent)
	assert.Equal(t, int64(0), p.XPToNext)
}

func TestProgress_StartOfLevel(t *testing.T) {
	p := Progress(100)

	assert.Equal(t, 2, p.CurrentLevel)
	assert.Equal(t, 0.0, p.ProgressPercent)
	assert.Equal(t, int64(150), p.XPToNext)
}
