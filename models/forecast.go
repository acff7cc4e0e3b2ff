package models

import "time"

const (
	GranularityHourly  = "hourly"
	GranularityMonthly = "monthly"
)

type Forecast struct {
	TS           time.Time `gorm:"column:ts;primaryKey" json:"ts"`
	Pollutant    string    `gorm:"column:pollutant;primaryKey" json:"pollutant"`
	Granularity  string    `gorm:"column:granularity;primaryKey" json:"granularity"`
	Hour         int       `gorm:"column:hour" json:"hour"`
	Day          int       `gorm:"column:day" json:"day"`
	Weekday      int       `gorm:"column:weekday" json:"weekday"`
	Month        int       `gorm:"column:month" json:"month"`
	Year         int       `gorm:"column:year" json:"year"`
	Altitude     float64   `gorm:"column:altitude" json:"altitude"`
	Longitude    float64   `gorm:"column:longitude" json:"longitude"`
	Latitude     float64   `gorm:"column:latitude" json:"latitude"`
	AreaCode     int       `gorm:"column:area_code" json:"area_code"`
	TypeCode     int       `gorm:"column:station_type_code" json:"station_type_code"`
	Value        float64   `gorm:"column:value" json:"value"`
	RunID        string    `gorm:"column:run_id" json:"run_id"`
	ModelVersion string    `gorm:"column:model_version" json:"model_version"`
}

func (Forecast) TableName() string { return "aqi_forecasts" }

// ForecastTable is the artifact written by the forecasting tools.
type ForecastTable struct {
	RunID       string
	Pollutant   string
	Granularity string
	Score       *float64
	Rows        []Forecast
}
