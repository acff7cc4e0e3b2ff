// Command forecast-hourly fits the configured model on hourly observations and
// forecasts every hour of the horizon (Feb 15-28 2023 by default).
//
// Usage:
//
//	forecast-hourly [local]
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wetdog/AQI-Catalonia-Challenge/config"
	"github.com/wetdog/AQI-Catalonia-Challenge/jobs"
	"github.com/wetdog/AQI-Catalonia-Challenge/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	cfg.Job.Local = len(os.Args) == 2 && os.Args[1] == "local"

	if err := jobs.Execute(ctx, cfg, jobs.ToolForecastHourly, jobs.ForecastHourly); err != nil {
		if errors.Is(err, pipeline.ErrNoInput) {
			log.Printf("%v, aborting", err)
			return
		}
		stop()
		log.Fatalf("%s failed: %v", jobs.ToolForecastHourly, err)
	}
}
