package pipeline

import "time"

// Split partitions rows around threshold: train holds rows strictly
// before it, test rows strictly after. Rows exactly at threshold are in
// neither. Input order is preserved.
func Split[T any](rows []T, ts func(T) time.Time, threshold time.Time) (train, test []T) {
	for _, r := range rows {
		t := ts(r)
		switch {
		case t.Before(threshold):
			train = append(train, r)
		case t.After(threshold):
			test = append(test, r)
		}
	}
	return train, test
}
