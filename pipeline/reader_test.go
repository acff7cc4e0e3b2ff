package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWideFiltersPollutant(t *testing.T) {
	no2 := station("B", "01/01/2018")
	no2.pollutant = "NO2"
	csv := wideCSV(station("A", "01/01/2018"), no2, station("C", "02/01/2018"))

	table, err := ReadWide(strings.NewReader(csv), DefaultReadOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, table.RowsRead)
	require.Len(t, table.Records, 2)
	for _, rec := range table.Records {
		assert.Equal(t, "O3", rec.Attrs[ColPollutant])
	}
	assert.ElementsMatch(t, testHeader, table.IDColumns)
}

func TestReadWideEmptyPollutantKeepsAll(t *testing.T) {
	no2 := station("B", "01/01/2018")
	no2.pollutant = "NO2"
	table, err := ReadWide(strings.NewReader(wideCSV(station("A", "01/01/2018"), no2)), ReadOptions{})
	require.NoError(t, err)
	assert.Len(t, table.Records, 2)
}

func TestReadWideMissingCells(t *testing.T) {
	row := station("A", "01/01/2018")
	row.values = []string{"", "NA", "NaN", "4.5"}
	table, err := ReadWide(strings.NewReader(wideCSV(row)), DefaultReadOptions())
	require.NoError(t, err)
	require.Len(t, table.Records, 1)

	hourly := table.Records[0].Hourly
	assert.Nil(t, hourly[0])
	assert.Nil(t, hourly[1])
	assert.Nil(t, hourly[2])
	require.NotNil(t, hourly[3])
	assert.Equal(t, 4.5, *hourly[3])
	require.NotNil(t, hourly[23])
	assert.Equal(t, 24.0, *hourly[23])
}

func TestReadWideErrors(t *testing.T) {
	t.Run("missing hour column", func(t *testing.T) {
		csv := "CONTAMINANT,DATA,01h\nO3,01/01/2018,1\n"
		_, err := ReadWide(strings.NewReader(csv), DefaultReadOptions())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "24h")
	})

	t.Run("missing pollutant column", func(t *testing.T) {
		csv := strings.Replace(wideCSV(station("A", "01/01/2018")), ColPollutant, "POLLUTANT", 1)
		_, err := ReadWide(strings.NewReader(csv), DefaultReadOptions())
		require.Error(t, err)
		assert.Contains(t, err.Error(), ColPollutant)
	})

	t.Run("bad reading", func(t *testing.T) {
		row := station("A", "01/01/2018")
		row.values = []string{"1", "abc"}
		_, err := ReadWide(strings.NewReader(wideCSV(row)), DefaultReadOptions())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "02h")
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ReadWide(strings.NewReader(""), DefaultReadOptions())
		require.Error(t, err)
	})
}

func TestReadWideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aqi_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(wideCSV(station("A", "01/01/2018"))), 0o644))

	table, err := ReadWideFile(path, DefaultReadOptions())
	require.NoError(t, err)
	assert.Len(t, table.Records, 1)

	_, err = ReadWideFile(filepath.Join(t.TempDir(), "missing.csv"), DefaultReadOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
