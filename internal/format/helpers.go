package format

import (
	"fmt"
	"math"
	"time"
)

// FmtNorm formats an error norm in compact scientific notation.
// Norms span many orders of magnitude; %.4e keeps columns aligned.
func FmtNorm(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4e", v)
}

// FmtRate formats a convergence rate with two decimals, or "n/a" when no
// fit exists.
func FmtRate(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

// FmtDuration formats a duration as "Xm Ys" or "Ys".
func FmtDuration(d time.Duration) string {
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// FmtSeconds formats a runtime measured in seconds.
func FmtSeconds(sec float64) string {
	return FmtDuration(time.Duration(sec * float64(time.Second)))
}

// Truncate shortens s to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// BoolMark returns "✓" for true and "✗" for false.
func BoolMark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}
