package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wetdog/AQI-Catalonia-Challenge/config"
	"github.com/wetdog/AQI-Catalonia-Challenge/models"
)

// RunsChannel carries a RunSummary for every finished tool run.
const RunsChannel = "aqi:runs"

type CacheService struct {
	client *redis.Client
}

// NewCacheService connects using REDIS_URL when set, the discrete settings
// otherwise, and pings up to attempts times. On failure the returned
// service is still usable and every call is a no-op.
func NewCacheService(cfg config.RedisConfig, attempts int) (*CacheService, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return &CacheService{}, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	client := redis.NewClient(opts)

	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return &CacheService{client: client}, nil
		}
		log.Printf("redis ping attempt %d/%d failed: %v", i+1, attempts, lastErr)
		if i < attempts-1 {
			time.Sleep(2 * time.Second)
		}
	}
	client.Close()
	return &CacheService{}, fmt.Errorf("redis ping failed after %d attempts: %w", attempts, lastErr)
}

func (s *CacheService) Client() *redis.Client {
	return s.client
}

func (s *CacheService) Available() bool {
	return s != nil && s.client != nil
}

// Get decodes the JSON value at key into dest. A missing key, or an
// unavailable cache, returns redis.Nil.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if !s.Available() {
		return redis.Nil
	}
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Delete(ctx context.Context, key string) error {
	if !s.Available() {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

func (s *CacheService) Publish(ctx context.Context, channel string, message interface{}) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

func (s *CacheService) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if !s.Available() {
		return nil
	}
	return s.client.Subscribe(ctx, channel)
}

func (s *CacheService) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}

// LatestRunKey is where the summary of the last run of tool for pollutant is kept.
func LatestRunKey(tool, pollutant string) string {
	return fmt.Sprintf("aqi:latest:%s:%s", tool, pollutant)
}

// RecordRun stores summary as the latest run and announces it on RunsChannel.
func (s *CacheService) RecordRun(ctx context.Context, summary models.RunSummary) error {
	if err := s.Set(ctx, LatestRunKey(summary.Tool, summary.Pollutant), summary, 0); err != nil {
		return fmt.Errorf("cache run summary: %w", err)
	}
	if err := s.Publish(ctx, RunsChannel, summary); err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}
	return nil
}

func (s *CacheService) LatestRun(ctx context.Context, tool, pollutant string) (*models.RunSummary, error) {
	var summary models.RunSummary
	if err := s.Get(ctx, LatestRunKey(tool, pollutant), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
