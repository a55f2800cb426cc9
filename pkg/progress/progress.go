// Package progress publishes batch progress for long-running land jobs.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one progress tick of a job over a land.
type Event struct {
	LandID    int64
	Kind      string
	Processed int
	Total     int
	Message   string
}

// Reporter receives progress events. Implementations must be safe for
// concurrent use and must not fail the job: errors are for logging only.
type Reporter interface {
	Report(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Report(context.Context, Event) error { return nil }

// Log writes events to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Report(_ context.Context, ev Event) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Progress",
		"land_id", ev.LandID,
		"kind", ev.Kind,
		"processed", ev.Processed,
		"total", ev.Total,
		"message", ev.Message,
	)
	return nil
}

// Redis appends events to a Redis stream so other processes can follow a
// job.
type Redis struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedis(client *redis.Client, stream string) *Redis {
	return &Redis{client: client, stream: stream, maxLen: 10000}
}

func (r *Redis) Report(ctx context.Context, ev Event) error {
	_, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"land_id":   strconv.FormatInt(ev.LandID, 10),
			"kind":      ev.Kind,
			"processed": strconv.Itoa(ev.Processed),
			"total":     strconv.Itoa(ev.Total),
			"message":   ev.Message,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

// Multi fans an event out to several reporters and returns the first error.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, ev Event) error {
	var first error
	for _, r := range m {
		if err := r.Report(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
