package issue

import "time"

// MaxVelocityPercent caps growth when the previous window was empty.
const MaxVelocityPercent = 1000.0

// Volume holds the two-window mention counts and the derived velocity.
type Volume struct {
	Current         int
	Previous        int
	VelocityPercent float64
	VelocityScore   float64
}

// ComputeVolume counts timestamps in [now-w, now) and [now-2w, now-w).
func ComputeVolume(timestamps []time.Time, now time.Time, w time.Duration) Volume {
	curStart := now.Add(-w)
	prevStart := now.Add(-2 * w)

	var v Volume
	for _, ts := range timestamps {
		switch {
		case !ts.Before(curStart) && ts.Before(now):
			v.Current++
		case !ts.Before(prevStart) && ts.Before(curStart):
			v.Previous++
		}
	}
	v.VelocityPercent = VelocityPercent(v.Current, v.Previous)
	v.VelocityScore = VelocityScore(v.VelocityPercent)
	return v
}

// VelocityPercent is the percentage change from previous to current.
func VelocityPercent(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return MaxVelocityPercent
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// VelocityScore maps a percentage onto [0, 100] with 0% at 50.
func VelocityScore(pct float64) float64 {
	return clamp(50+pct/2, 0, 100)
}

// ApplyVolume copies v onto the issue.
func (i *Issue) ApplyVolume(v Volume) {
	i.VolumeCurrent = v.Current
	i.VolumePrevious = v.Previous
	i.VelocityPercent = v.VelocityPercent
	i.VelocityScore = v.VelocityScore
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
