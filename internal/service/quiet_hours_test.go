package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/samims/taskpulse/internal/model"
)

func TestParseHHMM(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"08:00", 480, true},
		{"8:05", 485, true},
		{"22:30", 1350, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"1200", 0, false},
		{"12:5", 0, false},
		{"ab:cd", 0, false},
		{"", 0, false},
		{"-1:00", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseHHMM(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// Quiet hours are evaluated in server local time; the user's timezone
// setting is not consulted. These cases build times in time.Local.
func TestQuietUntil(t *testing.T) {
	at := func(day, h, m int) time.Time {
		return time.Date(2025, time.March, day, h, m, 0, 0, time.Local)
	}
	wrap := model.QuietHours{Enabled: true, From: "22:00", To: "08:00"}
	sameDay := model.QuietHours{Enabled: true, From: "08:00", To: "22:00"}

	tests := []struct {
		name      string
		q         model.QuietHours
		now       time.Time
		wantQuiet bool
		wantNext  time.Time
	}{
		{"wrap evening defers to tomorrow", wrap, at(10, 23, 30), true, at(11, 8, 0)},
		{"wrap at start boundary", wrap, at(10, 22, 0), true, at(11, 8, 0)},
		{"wrap early morning defers to today", wrap, at(10, 7, 0), true, at(10, 8, 0)},
		{"wrap just after midnight", wrap, at(10, 0, 15), true, at(10, 8, 0)},
		{"wrap end boundary is allowed", wrap, at(10, 8, 0), false, time.Time{}},
		{"wrap daytime is allowed", wrap, at(10, 12, 0), false, time.Time{}},
		{"same day outside window", sameDay, at(10, 23, 0), false, time.Time{}},
		{"same day inside window", sameDay, at(10, 9, 30), true, at(10, 22, 0)},
		{"same day end boundary is allowed", sameDay, at(10, 22, 0), false, time.Time{}},
		{"disabled", model.QuietHours{Enabled: false, From: "22:00", To: "08:00"}, at(10, 23, 30), false, time.Time{}},
		{"malformed from fails open", model.QuietHours{Enabled: true, From: "late", To: "08:00"}, at(10, 23, 30), false, time.Time{}},
		{"malformed to fails open", model.QuietHours{Enabled: true, From: "22:00", To: "8am"}, at(10, 23, 30), false, time.Time{}},
		{"equal bounds is an empty window", model.QuietHours{Enabled: true, From: "22:00", To: "22:00"}, at(10, 22, 0), false, time.Time{}},
		{"month rollover", wrap, time.Date(2025, time.March, 31, 23, 0, 0, 0, time.Local), true, time.Date(2025, time.April, 1, 8, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, quiet := QuietUntil(tt.q, tt.now)
			assert.Equal(t, tt.wantQuiet, quiet)
			if tt.wantQuiet {
				assert.True(t, tt.wantNext.Equal(next), "next = %v, want %v", next, tt.wantNext)
			}
		})
	}
}

func TestDeferralDelay(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 59, 30, 0, time.Local)

	assert.Equal(t, time.Minute, deferralDelay(now, now.Add(30*time.Second)), "floored at one minute")
	assert.Equal(t, 9*time.Hour, deferralDelay(now, now.Add(9*time.Hour)))
}
