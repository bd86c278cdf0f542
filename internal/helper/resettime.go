package helper

import "time"

// StartOfDayUTC returns the unix time of 00:00 UTC on t's day.
func StartOfDayUTC(t time.Time) int64 {
	u := t.Unix()
	return u - u%86400
}

// NextMidnightUTC returns the unix time of the next 00:00 UTC after t.
func NextMidnightUTC(t time.Time) int64 {
	return StartOfDayUTC(t) + 86400
}
