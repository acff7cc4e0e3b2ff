package store

const createObservationsSQL = `CREATE TABLE IF NOT EXISTS aqi_observations (
	ts            TIMESTAMPTZ NOT NULL,
	station_code  TEXT NOT NULL,
	pollutant     TEXT NOT NULL,
	station_name  TEXT,
	area_type     TEXT,
	station_type  TEXT,
	altitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	latitude      DOUBLE PRECISION,
	value         DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (ts, station_code, pollutant)
);`

// Bulk loads COPY into the staging table and merge from there so that
// re-ingesting a file overwrites instead of failing on the primary key.
const createObservationsStagingSQL = `CREATE UNLOGGED TABLE IF NOT EXISTS aqi_observations_staging (
	LIKE aqi_observations INCLUDING DEFAULTS
);`

const createStationsSQL = `CREATE TABLE IF NOT EXISTS aqi_stations (
	code          TEXT PRIMARY KEY,
	name          TEXT,
	area_type     TEXT,
	station_type  TEXT,
	altitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	latitude      DOUBLE PRECISION,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const createForecastsSQL = `CREATE TABLE IF NOT EXISTS aqi_forecasts (
	ts                 TIMESTAMPTZ NOT NULL,
	pollutant          TEXT NOT NULL,
	granularity        TEXT NOT NULL,
	hour               INTEGER,
	day                INTEGER,
	weekday            INTEGER,
	month              INTEGER,
	year               INTEGER,
	altitude           DOUBLE PRECISION,
	longitude          DOUBLE PRECISION,
	latitude           DOUBLE PRECISION,
	area_code          INTEGER,
	station_type_code  INTEGER,
	value              DOUBLE PRECISION NOT NULL,
	run_id             TEXT,
	model_version      TEXT,
	PRIMARY KEY (ts, pollutant, granularity)
);`

const createAggregatesSQL = `CREATE TABLE IF NOT EXISTS aqi_aggregates (
	ts            TIMESTAMPTZ NOT NULL,
	pollutant     TEXT NOT NULL,
	granularity   TEXT NOT NULL,
	value         DOUBLE PRECISION NOT NULL,
	sample_count  INTEGER NOT NULL,
	run_id        TEXT,
	PRIMARY KEY (ts, pollutant, granularity)
);`

const insertForecastSQL = `
	INSERT INTO aqi_forecasts (ts, pollutant, granularity, hour, day, weekday, month, year,
		altitude, longitude, latitude, area_code, station_type_code, value, run_id, model_version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (ts, pollutant, granularity) DO UPDATE SET
		hour = EXCLUDED.hour,
		day = EXCLUDED.day,
		weekday = EXCLUDED.weekday,
		month = EXCLUDED.month,
		year = EXCLUDED.year,
		altitude = EXCLUDED.altitude,
		longitude = EXCLUDED.longitude,
		latitude = EXCLUDED.latitude,
		area_code = EXCLUDED.area_code,
		station_type_code = EXCLUDED.station_type_code,
		value = EXCLUDED.value,
		run_id = EXCLUDED.run_id,
		model_version = EXCLUDED.model_version
`

const insertAggregateSQL = `
	INSERT INTO aqi_aggregates (ts, pollutant, granularity, value, sample_count, run_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (ts, pollutant, granularity) DO UPDATE SET
		value = EXCLUDED.value,
		sample_count = EXCLUDED.sample_count,
		run_id = EXCLUDED.run_id
`

const upsertStationSQL = `
	INSERT INTO aqi_stations (code, name, area_type, station_type, altitude, longitude, latitude, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (code) DO UPDATE SET
		name = EXCLUDED.name,
		area_type = EXCLUDED.area_type,
		station_type = EXCLUDED.station_type,
		altitude = COALESCE(EXCLUDED.altitude, aqi_stations.altitude),
		longitude = COALESCE(EXCLUDED.longitude, aqi_stations.longitude),
		latitude = COALESCE(EXCLUDED.latitude, aqi_stations.latitude),
		updated_at = EXCLUDED.updated_at
`

const truncateStagingSQL = `TRUNCATE aqi_observations_staging`

const mergeStagingSQL = `
	INSERT INTO aqi_observations
	SELECT DISTINCT ON (ts, station_code, pollutant) * FROM aqi_observations_staging
	ON CONFLICT (ts, station_code, pollutant) DO UPDATE SET
		station_name = EXCLUDED.station_name,
		area_type = EXCLUDED.area_type,
		station_type = EXCLUDED.station_type,
		altitude = EXCLUDED.altitude,
		longitude = EXCLUDED.longitude,
		latitude = EXCLUDED.latitude,
		value = EXCLUDED.value
`
