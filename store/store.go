// Package store persists pipeline results to PostgreSQL through pgx.
package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

var observationColumns = []string{
	"ts", "station_code", "pollutant", "station_name", "area_type", "station_type",
	"altitude", "longitude", "latitude", "value",
}

type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pool and checks the database answers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{
		createObservationsSQL,
		createObservationsStagingSQL,
		createStationsSQL,
		createForecastsSQL,
		createAggregatesSQL,
	} {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveForecasts upserts rows one by one; a failed row is logged and counted
// but does not stop the rest.
func (s *Store) SaveForecasts(ctx context.Context, rows []models.Forecast) (stored, failed int) {
	for _, f := range rows {
		_, err := s.db.Exec(ctx, insertForecastSQL,
			f.TS, f.Pollutant, f.Granularity, f.Hour, f.Day, f.Weekday, f.Month, f.Year,
			f.Altitude, f.Longitude, f.Latitude, f.AreaCode, f.TypeCode, f.Value, f.RunID, f.ModelVersion)
		if err != nil {
			failed++
			log.Printf("db insert failed for forecast ts=%s: %v", f.TS.Format("2006-01-02 15:04"), err)
			continue
		}
		stored++
	}
	return stored, failed
}

func (s *Store) SaveAggregates(ctx context.Context, rows []models.Aggregate) (stored, failed int) {
	for _, a := range rows {
		_, err := s.db.Exec(ctx, insertAggregateSQL, a.TS, a.Pollutant, a.Granularity, a.Value, a.Count, a.RunID)
		if err != nil {
			failed++
			log.Printf("db insert failed for aggregate ts=%s: %v", a.TS.Format("2006-01-02 15:04"), err)
			continue
		}
		stored++
	}
	return stored, failed
}

func (s *Store) UpsertStations(ctx context.Context, stations []models.Station) (int, error) {
	n := 0
	for _, st := range stations {
		if _, err := s.db.Exec(ctx, upsertStationSQL,
			st.Code, st.Name, st.AreaType, st.StationType, st.Altitude, st.Longitude, st.Latitude, st.UpdatedAt); err != nil {
			return n, fmt.Errorf("upsert station %s: %w", st.Code, err)
		}
		n++
	}
	return n, nil
}

// CopyObservations bulk loads observations through the staging table and
// merges them into aqi_observations.
func (s *Store) CopyObservations(ctx context.Context, obs []models.Observation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	if _, err := s.db.Exec(ctx, truncateStagingSQL); err != nil {
		return 0, fmt.Errorf("truncate staging: %w", err)
	}
	copied, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"aqi_observations_staging"},
		observationColumns,
		pgx.CopyFromSlice(len(obs), func(i int) ([]any, error) {
			o := obs[i]
			return []any{
				o.TS, o.StationCode, o.Pollutant, o.StationName, o.AreaType, o.StationType,
				o.Altitude, o.Longitude, o.Latitude, o.Value,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy observations: %w", err)
	}
	tag, err := s.db.Exec(ctx, mergeStagingSQL)
	if err != nil {
		return copied, fmt.Errorf("merge observations: %w", err)
	}
	log.Printf("copied %d observations, merged %d", copied, tag.RowsAffected())
	return copied, nil
}
