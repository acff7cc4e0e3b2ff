// Package notify announces finished runs to Redis and MQTT subscribers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hashicorp/go-multierror"

	"github.com/wetdog/AQI-Catalonia-Challenge/config"
	"github.com/wetdog/AQI-Catalonia-Challenge/models"
	"github.com/wetdog/AQI-Catalonia-Challenge/services"
)

const publishTimeout = 5 * time.Second

type Publisher interface {
	Publish(ctx context.Context, summary models.RunSummary) error
}

// RedisPublisher stores the summary as the latest run and fans it out on
// the runs channel.
type RedisPublisher struct {
	cache *services.CacheService
}

func NewRedisPublisher(cache *services.CacheService) *RedisPublisher {
	return &RedisPublisher{cache: cache}
}

func (p *RedisPublisher) Publish(ctx context.Context, summary models.RunSummary) error {
	if !p.cache.Available() {
		return nil
	}
	return p.cache.RecordRun(ctx, summary)
}

type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

// NewMQTTPublisher connects to the broker; the connection is retried in the
// background by paho if the broker drops.
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "aqi-" + time.Now().Format("20060102150405")
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("mqtt connection lost: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		client.Disconnect(250)
		return nil, fmt.Errorf("mqtt connect %s: timed out", cfg.URL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.URL, err)
	}
	return newMQTTPublisher(client, cfg.TopicPrefix), nil
}

func newMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	if prefix == "" {
		prefix = "aqi"
	}
	return &MQTTPublisher{client: client, prefix: prefix}
}

// Topic is <prefix>/<pollutant>/<tool>.
func (p *MQTTPublisher) Topic(summary models.RunSummary) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, summary.Pollutant, summary.Tool)
}

func (p *MQTTPublisher) Publish(ctx context.Context, summary models.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	token := p.client.Publish(p.Topic(summary), 1, true, data)
	if !token.WaitTimeout(timeout) {
		return errors.New("mqtt publish timed out")
	}
	return token.Error()
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

// Multi publishes to every target and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, summary models.RunSummary) error {
	var result *multierror.Error
	for _, p := range m {
		if err := p.Publish(ctx, summary); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
