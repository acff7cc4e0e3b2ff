package models

import "time"

type Aggregate struct {
	TS          time.Time `gorm:"column:ts;primaryKey" json:"ts"`
	Pollutant   string    `gorm:"column:pollutant;primaryKey" json:"pollutant"`
	Granularity string    `gorm:"column:granularity;primaryKey" json:"granularity"`
	Value       float64   `gorm:"column:value" json:"value"`
	Count       int       `gorm:"column:sample_count" json:"sample_count"`
	RunID       string    `gorm:"column:run_id" json:"run_id"`
}

func (Aggregate) TableName() string { return "aqi_aggregates" }
