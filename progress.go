package presence

import (
	"math"
	"time"
)

// ProgressRatio returns how far now is into [startMs, endMs] as a percentage.
// The result is not clamped, callers gate on now <= end. A zero length window
// and any non finite result give 0.
func ProgressRatio(startMs, endMs int64, now time.Time) float64 {
	if endMs == startMs {
		return 0
	}

	ratio := float64(now.UnixMilli()-startMs) / float64(endMs-startMs) * 100

	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0
	}

	return ratio
}
