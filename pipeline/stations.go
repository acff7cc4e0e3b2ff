package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
)

// Stations collects one Station per station code seen in obs, keeping the
// latest observation's attributes. Rows without a code are skipped.
func Stations(obs []models.Observation, updatedAt time.Time) []models.Station {
	latest := make(map[string]models.Observation)
	for _, o := range obs {
		if o.StationCode == "" {
			continue
		}
		if prev, ok := latest[o.StationCode]; ok && prev.TS.After(o.TS) {
			continue
		}
		latest[o.StationCode] = o
	}

	out := make([]models.Station, 0, len(latest))
	for code, o := range latest {
		out = append(out, models.Station{
			Code:        code,
			Name:        o.StationName,
			AreaType:    o.AreaType,
			StationType: o.StationType,
			Altitude:    optional(o.Altitude),
			Longitude:   optional(o.Longitude),
			Latitude:    optional(o.Latitude),
			UpdatedAt:   updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func optional(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
