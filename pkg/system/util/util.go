package util

import (
	"fmt"
	"math"
)

// FormatUptime renders host uptime seconds as days:hours:minutes:seconds,
// e.g. 98025.31 -> "1:03:13:45".
func FormatUptime(sec float64) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	total := int64(sec)
	days := total / 86400
	hours := total % 86400 / 3600
	mins := total % 3600 / 60
	secs := total % 60
	return fmt.Sprintf("%d:%02d:%02d:%02d", days, hours, mins, secs)
}

// Truncate limits s to max characters for fixed-width display.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

// Clamp01 bounds x to [0,1], mapping NaN to 0.
func Clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
