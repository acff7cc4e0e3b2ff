// Package jobs wires the pipeline stages into the runnable tools and owns
// their optional side channels: database, cache, broker, object storage
// and metrics.
package jobs

import (
	"context"
	"log"

	"github.com/hashicorp/go-multierror"

	"github.com/wetdog/AQI-Catalonia-Challenge/artifact"
	"github.com/wetdog/AQI-Catalonia-Challenge/config"
	"github.com/wetdog/AQI-Catalonia-Challenge/metrics"
	"github.com/wetdog/AQI-Catalonia-Challenge/notify"
	"github.com/wetdog/AQI-Catalonia-Challenge/services"
	"github.com/wetdog/AQI-Catalonia-Challenge/store"
)

const redisAttempts = 3

// Env is what a job runs against. Only Config and Metrics are always set;
// the rest is nil when not configured or unreachable.
type Env struct {
	Config    *config.Config
	Tool      string
	Metrics   *metrics.Metrics
	Store     *store.Store
	Cache     *services.CacheService
	Publisher notify.Publisher
	Uploads   artifact.Sink

	closers []func() error
}

func NewEnv(cfg *config.Config, tool string) *Env {
	return &Env{
		Config:  cfg,
		Tool:    tool,
		Metrics: metrics.New(tool),
	}
}

// Setup connects the side channels named in cfg. A side channel that fails
// to come up is logged and left out; the tool still writes its artifact.
func Setup(ctx context.Context, cfg *config.Config, tool string) *Env {
	env := NewEnv(cfg, tool)

	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database.GetDSN())
		if err != nil {
			log.Printf("db unavailable, results will not be stored: %v", err)
		} else {
			s := store.New(pool)
			if err := s.EnsureSchema(ctx); err != nil {
				log.Printf("db schema setup failed, results will not be stored: %v", err)
				pool.Close()
			} else {
				log.Printf("db connected")
				env.Store = s
				env.onClose(func() error {
					pool.Close()
					return nil
				})
			}
		}
	}

	var publishers notify.Multi
	if cfg.Redis.URL != "" {
		cache, err := services.NewCacheService(cfg.Redis, redisAttempts)
		if err != nil {
			log.Printf("redis unavailable, runs will not be cached: %v", err)
		} else {
			log.Printf("redis connected")
			env.Cache = cache
			env.onClose(cache.Close)
			publishers = append(publishers, notify.NewRedisPublisher(cache))
		}
	}
	if cfg.MQTT.URL != "" {
		p, err := notify.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			log.Printf("mqtt unavailable, runs will not be announced: %v", err)
		} else {
			log.Printf("mqtt connected: %s", cfg.MQTT.URL)
			env.onClose(func() error {
				p.Close()
				return nil
			})
			publishers = append(publishers, p)
		}
	}
	if len(publishers) > 0 {
		env.Publisher = publishers
	}

	if cfg.Minio.URL != "" {
		sink, err := artifact.NewMinioSink(ctx, cfg.Minio, tool)
		if err != nil {
			log.Printf("object storage unavailable, artifacts stay local: %v", err)
		} else {
			env.Uploads = sink
		}
	}
	return env
}

func (e *Env) onClose(fn func() error) {
	e.closers = append(e.closers, fn)
}

// Close releases every side channel, last opened first.
func (e *Env) Close() error {
	var result *multierror.Error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	e.closers = nil
	return result.ErrorOrNil()
}
