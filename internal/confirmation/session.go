package confirmation

import "time"

// CurrentSessionType derives the session type from a wall-clock time of
// day, using the Chinese-futures trading calendar's established windows:
// night session 21:00-02:30, volatile windows around the day session's
// open (08:45-09:15) and lunch-break reopen (14:45-15:15), day session
// otherwise.
func CurrentSessionType(t time.Time) SessionType {
	h, m, _ := t.Clock()
	minutes := h*60 + m

	night := inWindow(minutes, 21*60, 2*60+30)
	if night {
		return SessionNight
	}
	if inWindow(minutes, 8*60+45, 9*60+15) || inWindow(minutes, 14*60+45, 15*60+15) {
		return SessionVolatile
	}
	return SessionDay
}

// inWindow reports whether minutes-of-day m falls in [start,end), wrapping
// past midnight when end < start.
func inWindow(m, start, end int) bool {
	if start <= end {
		return m >= start && m < end
	}
	return m >= start || m < end
}
