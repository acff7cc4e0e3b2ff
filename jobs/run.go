package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/wetdog/AQI-Catalonia-Challenge/config"
	"github.com/wetdog/AQI-Catalonia-Challenge/models"
	"github.com/wetdog/AQI-Catalonia-Challenge/pipeline"
)

// Execute sets up the side channels for tool, runs job and tears down.
func Execute(ctx context.Context, cfg *config.Config, tool string, job Job) error {
	env := Setup(ctx, cfg, tool)
	defer func() {
		if err := env.Close(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()
	return Run(ctx, env, job)
}

// Run executes job once. With RUN_INTERVAL_SEC > 0 it keeps running it on
// a ticker until ctx is cancelled; failed passes are then logged and the
// loop carries on.
func Run(ctx context.Context, env *Env, job Job) error {
	interval := env.Config.Job.RunInterval
	if interval <= 0 {
		_, err := runOnce(ctx, env, job)
		return err
	}

	if addr := env.Config.Metrics.Addr; addr != "" {
		go func() {
			if err := env.Metrics.Serve(ctx, addr); err != nil {
				log.Printf("metrics server failed: %v", err)
			}
		}()
	}

	log.Printf("%s running every %s", env.Tool, interval)
	runCycle(ctx, env, job)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCycle(ctx, env, job)
		case <-ctx.Done():
			log.Printf("%s shutting down", env.Tool)
			return nil
		}
	}
}

func runCycle(ctx context.Context, env *Env, job Job) {
	if _, err := runOnce(ctx, env, job); err != nil {
		if errors.Is(err, pipeline.ErrNoInput) {
			log.Printf("%v, skipping cycle", err)
			return
		}
		log.Printf("%s cycle failed: %v", env.Tool, err)
	}
}

func runOnce(ctx context.Context, env *Env, job Job) (*models.RunSummary, error) {
	start := time.Now()
	defer func() {
		env.Metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	summary, err := job(ctx, env)
	if err != nil {
		if !errors.Is(err, pipeline.ErrNoInput) {
			env.Metrics.RunFailures.Inc()
		}
		return nil, err
	}
	summary.FinishedAt = time.Now().UTC()
	env.Metrics.LastSuccess.SetToCurrentTime()

	if env.Publisher != nil {
		if err := env.Publisher.Publish(ctx, *summary); err != nil {
			log.Printf("run summary publish failed: %v", err)
		} else {
			env.Metrics.ResultsPublished.Inc()
		}
	}
	if err := env.Metrics.Push(ctx, env.Config.Metrics.PushgatewayURL); err != nil {
		log.Printf("%v", err)
	}

	log.Printf("%s completed: run=%s results=%d output=%s (%.2fs)",
		env.Tool, summary.RunID, summary.Results, summary.Output, time.Since(start).Seconds())
	return summary, nil
}
