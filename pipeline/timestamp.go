package pipeline

import (
	"fmt"
	"time"
)

// TimestampLayout matches a DATA cell (day/month/year) joined with the
// two-digit hour derived from the column label.
const TimestampLayout = "2/1/2006 15"

func ParseTimestamp(date, hour string) (time.Time, error) {
	ts, err := time.ParseInLocation(TimestampLayout, date+" "+hour, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q %q: %w", date, hour, err)
	}
	return ts, nil
}
