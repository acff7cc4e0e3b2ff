package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
)

func TestStations(t *testing.T) {
	day := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := []models.Observation{
		{TS: day.Add(2 * time.Hour), StationCode: "ES0002A", StationName: "Vic", Altitude: 498, Longitude: 2.23, Latitude: math.NaN()},
		{TS: day.Add(time.Hour), StationCode: "ES0001A", StationName: "Gracia", AreaType: "urban", Altitude: 57, Longitude: 2.15, Latitude: 41.4},
		{TS: day, StationCode: "ES0001A", StationName: "Gracia (old)"},
		{TS: day, StationName: "no code"},
	}

	got := Stations(obs, day)
	require.Len(t, got, 2)

	assert.Equal(t, "ES0001A", got[0].Code)
	assert.Equal(t, "Gracia", got[0].Name)
	require.NotNil(t, got[0].Latitude)
	assert.Equal(t, 41.4, *got[0].Latitude)
	assert.Equal(t, day, got[0].UpdatedAt)

	assert.Equal(t, "ES0002A", got[1].Code)
	assert.Nil(t, got[1].Latitude)
	require.NotNil(t, got[1].Altitude)
	assert.Equal(t, 498.0, *got[1].Altitude)
}

func TestStationsEmpty(t *testing.T) {
	assert.Empty(t, Stations(nil, time.Now()))
}
