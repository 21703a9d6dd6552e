package main

import "time"

// formatTimestamp renders message and conversation times the way the
// conversation list shows them: just the clock time for today, the date
// for anything older. withTime appends the clock time to older dates.
func formatTimestamp(t *time.Time, withTime bool) string {
	if t == nil {
		return ""
	}
	local := t.Local()
	if sameDay(local, time.Now()) {
		return local.Format("15:04")
	}
	if withTime {
		return local.Format("Jan 2 15:04")
	}
	return local.Format("Jan 2, 2006")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
