package models

import "time"

// RawRecord is one station-day row of the wide CSV: every non-hourly column
// in Attrs and the 24 hourly readings, nil where the cell was empty.
type RawRecord struct {
	// Line is the 1-based CSV line the record started on; 0 when unknown.
	Line   int
	Attrs  map[string]string
	Hourly [24]*float64
}

type Observation struct {
	TS          time.Time         `gorm:"column:ts;primaryKey" json:"ts"`
	StationCode string            `gorm:"column:station_code;primaryKey" json:"station_code"`
	Pollutant   string            `gorm:"column:pollutant;primaryKey" json:"pollutant"`
	StationName string            `gorm:"column:station_name" json:"station_name"`
	AreaType    string            `gorm:"column:area_type" json:"area_type"`
	StationType string            `gorm:"column:station_type" json:"station_type"`
	Altitude    float64           `gorm:"column:altitude" json:"altitude"`
	Longitude   float64           `gorm:"column:longitude" json:"longitude"`
	Latitude    float64           `gorm:"column:latitude" json:"latitude"`
	Value       float64           `gorm:"column:value" json:"value"`
	Attrs       map[string]string `gorm:"-" json:"attrs,omitempty"`
}

func (Observation) TableName() string { return "aqi_observations" }

// FeatureRow is an observation enriched with calendar fields and the
// integer codes of its categorical station attributes.
type FeatureRow struct {
	Observation
	Hour     int
	Day      int
	Weekday  int
	Month    int
	Year     int
	AreaCode int
	TypeCode int
}
