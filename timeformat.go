package presence

import (
	"fmt"
	"time"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
)

// DurationLabels holds the elapsed and total labels of a playback window.
type DurationLabels struct {
	Elapsed string `json:"elapsed"`
	Total   string `json:"total"`
}

// FormatElapsed renders the time since startMs as "MM:SS elapsed", or
// "HH:MM:SS elapsed" once an hour has passed. A zero start renders nothing.
// Clock skew that puts start in the future is treated as zero elapsed.
func FormatElapsed(startMs int64, now time.Time) string {
	if startMs == 0 {
		return ""
	}

	elapsed := (now.UnixMilli() - startMs) / 1000
	if elapsed < 0 {
		elapsed = 0
	}

	hours := elapsed / secondsPerHour
	minutes := (elapsed % secondsPerHour) / secondsPerMinute
	seconds := elapsed % secondsPerMinute

	if elapsed >= secondsPerHour {
		return fmt.Sprintf("%02d:%02d:%02d elapsed", hours, minutes, seconds)
	}

	return fmt.Sprintf("%02d:%02d elapsed", minutes, seconds)
}

// FormatDurationPair renders the elapsed and total time of a playback window
// as "M:SS". Minutes never roll over into hours. It returns false once now is
// past the end of the window; callers keep whatever they rendered last.
func FormatDurationPair(startMs, endMs int64, now time.Time) (DurationLabels, bool) {
	nowMs := now.UnixMilli()
	if nowMs > endMs {
		return DurationLabels{}, false
	}

	return DurationLabels{
		Elapsed: FormatClock((nowMs - startMs) / 1000),
		Total:   FormatClock((endMs - startMs) / 1000),
	}, true
}

// FormatClock renders whole seconds as "M:SS".
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	return fmt.Sprintf("%d:%02d", seconds/secondsPerMinute, seconds%secondsPerMinute)
}
