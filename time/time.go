// Package time holds duration helpers used in reports and logs.
package time

import (
	"strings"
	"time"
)

// ShortDur formats d like time.Duration.String but drops trailing zero units,
// so 1h0m0s becomes 1h and 2m0s becomes 2m.
func ShortDur(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}

// Elapsed rounds d to a precision suitable for a step summary and formats it
// with ShortDur. Sub-second values keep millisecond precision.
func Elapsed(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return ShortDur(d.Round(time.Millisecond))
	case d < time.Minute:
		return ShortDur(d.Round(100 * time.Millisecond))
	default:
		return ShortDur(d.Round(time.Second))
	}
}
