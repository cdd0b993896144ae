package ratelimit

import (
	"fmt"
	"math"
	"time"
)

// FormatRetryAfter renders a wait time for users: whole minutes (rounded up)
// below an hour, whole hours (rounded up) otherwise. Non-positive durations
// render as "1 minute".
func FormatRetryAfter(d time.Duration) string {
	minutes := int64(math.Ceil(float64(d) / float64(time.Minute)))
	if minutes < 1 {
		minutes = 1
	}
	if minutes < 60 {
		return plural(minutes, "minute")
	}
	hours := int64(math.Ceil(float64(minutes) / 60))
	return plural(hours, "hour")
}

// RetryAfterSeconds rounds d up to whole seconds for a Retry-After header.
func RetryAfterSeconds(d time.Duration) int64 {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
