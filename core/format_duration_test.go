package core

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "0s"},
		{"sub-second", 900 * time.Millisecond, "0s"},
		{"seconds", 45 * time.Second, "45s"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m 30s"},
		{"hours and minutes", 2*time.Hour + 34*time.Minute + 10*time.Second, "2h 34m"},
		{"days and hours", 3*day + 5*time.Hour, "3d 5h"},
		{"weeks and days", 2*week + 3*day + time.Hour, "2w 3d"},
		{"negative", -5 * time.Minute, "-5m 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.duration); got != tt.expected {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0s"},
		{59 * time.Second, "59s"},
		{2*time.Minute + 59*time.Second, "2m"},
		{3 * time.Hour, "3h"},
		{5*day + 23*time.Hour, "5d"},
		{15 * day, "2w"},
		{-90 * time.Second, "-1m"},
	}

	for _, tt := range tests {
		if got := FormatAge(tt.duration); got != tt.expected {
			t.Errorf("FormatAge(%v) = %q, want %q", tt.duration, got, tt.expected)
		}
	}
}
