package models

import "time"

// RunSummary is published after every tool run.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Tool        string    `json:"tool"`
	Pollutant   string    `json:"pollutant"`
	FinishedAt  time.Time `json:"finished_at"`
	RowsRead    int       `json:"rows_read"`
	RowsLong    int       `json:"rows_long"`
	RowsDropped int       `json:"rows_dropped"`
	Results     int       `json:"results"`
	Score       *float64  `json:"score,omitempty"`
	Output      string    `json:"output"`
}
