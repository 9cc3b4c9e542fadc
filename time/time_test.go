package time

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShortDur(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "0s"},
		{"1 second", 1 * time.Second, "1s"},
		{"1 minute", 1 * time.Minute, "1m"},
		{"1 minute 30 seconds", 1*time.Minute + 30*time.Second, "1m30s"},
		{"1 hour", 1 * time.Hour, "1h"},
		{"1 hour 30 minutes", 1*time.Hour + 30*time.Minute, "1h30m"},
		{"1 hour 0 minutes 30 seconds", 1*time.Hour + 30*time.Second, "1h0m30s"},
		{"500 milliseconds", 500 * time.Millisecond, "500ms"},
		{"negative 1 hour", -1 * time.Hour, "-1h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortDur(tt.duration))
		})
	}
}

func TestElapsed(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"negative", -time.Second, "0s"},
		{"sub millisecond rounds", 1234567 * time.Nanosecond, "1ms"},
		{"seconds keep a tenth", 2345 * time.Millisecond, "2.3s"},
		{"minutes round to seconds", 2*time.Minute + 400*time.Millisecond, "2m"},
		{"hours", time.Hour + 2*time.Minute + 3*time.Second + 600*time.Millisecond, "1h2m4s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Elapsed(tt.duration))
		})
	}
}
