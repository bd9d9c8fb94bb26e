package indexer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultRedisChannel is the channel on which ingest events are published.
const DefaultRedisChannel = "ledgerfront.index"

// IngestEvent describes one ingestion performed by the Poller.
type IngestEvent struct {
	Length    int       `json:"length"`
	Upserted  int       `json:"upserted"`
	Inserted  int       `json:"inserted"`
	LastIndex int       `json:"last_index"`
	Balances  int       `json:"balances"`
	Time      time.Time `json:"time"`
}

// Notifier is told about every ingestion. Notification errors are logged by
// the Poller and never stop it.
type Notifier interface {
	Notify(ctx context.Context, ev IngestEvent) error
	Close() error
}

// NopNotifier discards every event.
type NopNotifier struct{}

// Notify implements the Notifier interface.
func (NopNotifier) Notify(context.Context, IngestEvent) error { return nil }

// Close implements the Notifier interface.
func (NopNotifier) Close() error { return nil }

// RedisNotifier publishes ingest events as JSON on a Redis channel. It works
// with a single Redis server as well as with a cluster.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
	logger  *logrus.Entry
}

// NewRedisNotifier connects to the given Redis addresses. With more than one
// address the client is a cluster client.
func NewRedisNotifier(addrs []string, channel string, logger *logrus.Entry) *RedisNotifier {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: addrs,
	})
	return NewRedisNotifierWithClient(client, channel, logger)
}

// NewRedisNotifierWithClient wraps an existing client.
func NewRedisNotifierWithClient(client redis.UniversalClient, channel string, logger *logrus.Entry) *RedisNotifier {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisNotifier{
		client:  client,
		channel: channel,
		logger:  logger.WithField("component", "redis-notifier"),
	}
}

// Channel ...
func (n *RedisNotifier) Channel() string {
	return n.channel
}

// Notify implements the Notifier interface.
func (n *RedisNotifier) Notify(ctx context.Context, ev IngestEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		return err
	}

	n.logger.WithFields(logrus.Fields{
		"channel": n.channel,
		"length":  ev.Length,
	}).Debug("Published ingest event")

	return nil
}

// Close implements the Notifier interface.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
