package issue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeVolume_Windows(t *testing.T) {
	w := 24 * time.Hour
	ts := []time.Time{
		testNow.Add(-time.Hour),
		testNow.Add(-23 * time.Hour),
		testNow.Add(-24 * time.Hour), // boundary belongs to the current window
		testNow.Add(-30 * time.Hour),
		testNow.Add(-48 * time.Hour), // start of previous window
		testNow.Add(-49 * time.Hour),
		testNow, // now is excluded
	}
	v := ComputeVolume(ts, testNow, w)
	assert.Equal(t, 3, v.Current)
	assert.Equal(t, 2, v.Previous)
	assert.InDelta(t, 50.0, v.VelocityPercent, 1e-9)
	assert.InDelta(t, 75.0, v.VelocityScore, 1e-9)
}

func TestVelocityPercent(t *testing.T) {
	assert.Equal(t, MaxVelocityPercent, VelocityPercent(5, 0))
	assert.Equal(t, 0.0, VelocityPercent(0, 0))
	assert.InDelta(t, -50.0, VelocityPercent(5, 10), 1e-9)
	assert.InDelta(t, 1900.0, VelocityPercent(20, 1), 1e-9)
}

func TestVelocityScore(t *testing.T) {
	assert.Equal(t, 50.0, VelocityScore(0))
	assert.Equal(t, 100.0, VelocityScore(100))
	assert.Equal(t, 100.0, VelocityScore(MaxVelocityPercent))
	assert.Equal(t, 0.0, VelocityScore(-100))
	assert.Equal(t, 25.0, VelocityScore(-50))
}

func TestApplyVolume(t *testing.T) {
	iss := &Issue{}
	iss.ApplyVolume(Volume{Current: 4, Previous: 2, VelocityPercent: 100, VelocityScore: 100})
	assert.Equal(t, 4, iss.VolumeCurrent)
	assert.Equal(t, 2, iss.VolumePrevious)
	assert.Equal(t, 100.0, iss.VelocityScore)
}
