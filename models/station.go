package models

import "time"

type Station struct {
	Code        string    `gorm:"column:code;primaryKey" json:"code"`
	Name        string    `gorm:"column:name" json:"name"`
	AreaType    string    `gorm:"column:area_type" json:"area_type"`
	StationType string    `gorm:"column:station_type" json:"station_type"`
	Altitude    *float64  `gorm:"column:altitude" json:"altitude"`
	Longitude   *float64  `gorm:"column:longitude" json:"longitude"`
	Latitude    *float64  `gorm:"column:latitude" json:"latitude"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Station) TableName() string { return "aqi_stations" }
