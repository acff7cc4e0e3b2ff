package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
)

// HourlyFeatureNames is the column order of Vector.
var HourlyFeatureNames = []string{
	ColAltitude, ColLongitude, ColLatitude,
	"hour", "day", "weekday", "month", "year",
}

// HourlyCategorical flags which of HourlyFeatureNames are categorical.
// year stays numeric so forecasts for unseen years follow the trend.
var HourlyCategorical = []bool{false, false, false, true, true, true, true, false}

// MonthlyFeatureNames is the column order of MonthlyVector.
var MonthlyFeatureNames = []string{"month", "year"}

type Calendar struct {
	Hour    int
	Day     int
	Weekday int // Monday = 0
	Month   int
	Year    int
}

func CalendarOf(ts time.Time) Calendar {
	return Calendar{
		Hour:    ts.Hour(),
		Day:     ts.Day(),
		Weekday: (int(ts.Weekday()) + 6) % 7,
		Month:   int(ts.Month()),
		Year:    ts.Year(),
	}
}

// BuildFeatures fits the area and station-type categories into enc, drops
// observations with a missing numeric feature, and returns the remaining
// rows sorted by timestamp together with the number dropped.
func BuildFeatures(obs []models.Observation, enc *Encoding) ([]models.FeatureRow, int) {
	areas := make([]string, 0, len(obs))
	types := make([]string, 0, len(obs))
	for _, o := range obs {
		areas = append(areas, o.AreaType)
		types = append(types, o.StationType)
	}
	enc.Fit(ColArea, areas)
	enc.Fit(ColStationType, types)

	rows := make([]models.FeatureRow, 0, len(obs))
	dropped := 0
	for _, o := range obs {
		if math.IsNaN(o.Altitude) || math.IsNaN(o.Longitude) || math.IsNaN(o.Latitude) {
			dropped++
			continue
		}
		cal := CalendarOf(o.TS)
		rows = append(rows, models.FeatureRow{
			Observation: o,
			Hour:        cal.Hour,
			Day:         cal.Day,
			Weekday:     cal.Weekday,
			Month:       cal.Month,
			Year:        cal.Year,
			AreaCode:    enc.Code(ColArea, o.AreaType),
			TypeCode:    enc.Code(ColStationType, o.StationType),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TS.Before(rows[j].TS) })
	return rows, dropped
}

// Vector lays a row out in HourlyFeatureNames order.
func Vector(r models.FeatureRow) []float64 {
	return []float64{
		r.Altitude, r.Longitude, r.Latitude,
		float64(r.Hour), float64(r.Day), float64(r.Weekday), float64(r.Month), float64(r.Year),
	}
}

func MonthlyVector(ts time.Time) []float64 {
	return []float64{float64(ts.Month()), float64(ts.Year())}
}

// Fill holds the constant values given to forecast rows.
type Fill struct {
	Altitude  float64
	Longitude float64
	Latitude  float64
	AreaCode  int
	TypeCode  int
}

// FillValues computes the medians of the numeric features and the most
// frequent category codes of rows.
func FillValues(rows []models.FeatureRow) Fill {
	alt := make([]float64, len(rows))
	lon := make([]float64, len(rows))
	lat := make([]float64, len(rows))
	areas := make([]int, len(rows))
	types := make([]int, len(rows))
	for i, r := range rows {
		alt[i], lon[i], lat[i] = r.Altitude, r.Longitude, r.Latitude
		areas[i], types[i] = r.AreaCode, r.TypeCode
	}
	return Fill{
		Altitude:  Median(alt),
		Longitude: Median(lon),
		Latitude:  Median(lat),
		AreaCode:  mode(areas),
		TypeCode:  mode(types),
	}
}

// Median averages the two middle values of an even-length sample. It
// returns NaN for an empty one.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// mode breaks ties towards the smaller code; -1 for no values.
func mode(codes []int) int {
	counts := map[int]int{}
	for _, c := range codes {
		counts[c]++
	}
	best, bestN := -1, 0
	for c, n := range counts {
		if n > bestN || (n == bestN && c < best) {
			best, bestN = c, n
		}
	}
	return best
}
