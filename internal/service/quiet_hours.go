package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/samims/taskpulse/internal/model"
)

// minDeferral is the shortest re-delay applied to a job that hit quiet hours.
const minDeferral = time.Minute

// parseHHMM converts "HH:MM" into minutes since midnight.
func parseHHMM(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

type quietWindow struct {
	from, to int
}

// newQuietWindow returns false when quiet hours are off or malformed, so a
// bad setting never blocks delivery. Equal bounds describe an empty window.
func newQuietWindow(q model.QuietHours) (quietWindow, bool) {
	if !q.Enabled {
		return quietWindow{}, false
	}
	from, okFrom := parseHHMM(q.From)
	to, okTo := parseHHMM(q.To)
	if !okFrom || !okTo || from == to {
		return quietWindow{}, false
	}
	return quietWindow{from: from, to: to}, true
}

func (w quietWindow) wraps() bool { return w.from > w.to }

func (w quietWindow) contains(cur int) bool {
	if !w.wraps() {
		return w.from <= cur && cur < w.to
	}
	return cur >= w.from || cur < w.to
}

// nextAllowed is the end of the window that contains now.
func (w quietWindow) nextAllowed(now time.Time) time.Time {
	cur := now.Hour()*60 + now.Minute()
	next := time.Date(now.Year(), now.Month(), now.Day(), w.to/60, w.to%60, 0, 0, now.Location())
	switch {
	case !w.wraps() && cur >= w.to:
		next = next.AddDate(0, 0, 1)
	case w.wraps() && cur >= w.from:
		// evening part of the window, it ends tomorrow morning
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// QuietUntil reports whether now falls inside the quiet hours and, if so,
// the instant delivery is allowed again. Times are compared in now's
// location; the dispatcher passes server local time.
func QuietUntil(q model.QuietHours, now time.Time) (time.Time, bool) {
	w, ok := newQuietWindow(q)
	if !ok {
		return time.Time{}, false
	}
	if !w.contains(now.Hour()*60 + now.Minute()) {
		return time.Time{}, false
	}
	return w.nextAllowed(now), true
}

// deferralDelay is how long a quiet-hours job waits before it is retried.
func deferralDelay(now, until time.Time) time.Duration {
	d := until.Sub(now)
	if d < minDeferral {
		return minDeferral
	}
	return d
}
