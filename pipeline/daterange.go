package pipeline

import "time"

// HourlyRange returns every hour from start to end, both inclusive.
func HourlyRange(start, end time.Time) []time.Time {
	var out []time.Time
	for t := start; !t.After(end); t = t.Add(time.Hour) {
		out = append(out, t)
	}
	return out
}

// MonthEndRange returns the month ends that fall within [start, end].
func MonthEndRange(start, end time.Time) []time.Time {
	var out []time.Time
	t := MonthEnd(start)
	if t.Before(start) {
		t = MonthEnd(t.AddDate(0, 0, 1))
	}
	for !t.After(end) {
		out = append(out, t)
		t = MonthEnd(t.AddDate(0, 0, 1))
	}
	return out
}
