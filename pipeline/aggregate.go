package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
)

// Point is one aggregated value of a series.
type Point struct {
	TS    time.Time
	Mean  float64
	Count int
}

// Aggregate averages observation values per timestamp (hourly) or per
// calendar month keyed by its last day (monthly). Points are ascending and
// only keys present in obs appear.
func Aggregate(obs []models.Observation, granularity string) ([]Point, error) {
	var key func(time.Time) time.Time
	switch granularity {
	case models.GranularityHourly:
		key = func(t time.Time) time.Time { return t }
	case models.GranularityMonthly:
		key = MonthEnd
	default:
		return nil, fmt.Errorf("unknown granularity %q", granularity)
	}

	type acc struct {
		sum float64
		n   int
	}
	groups := map[time.Time]*acc{}
	for _, o := range obs {
		k := key(o.TS)
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.sum += o.Value
		a.n++
	}

	points := make([]Point, 0, len(groups))
	for ts, a := range groups {
		points = append(points, Point{TS: ts, Mean: a.sum / float64(a.n), Count: a.n})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].TS.Before(points[j].TS) })
	return points, nil
}

// Means returns the Mean column of points.
func Means(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Mean
	}
	return out
}

// MonthEnd returns midnight of the last day of t's month, in t's location.
func MonthEnd(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.AddDate(0, 1, -1)
}
