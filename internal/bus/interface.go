package bus

import (
	"context"
	"io"
	"log"
)

// Bus carries record-change notifications between console instances. A
// console publishes after every mutation it performs and subscribes so that
// mutations made elsewhere refresh its list views.
type Bus interface {
	// PublishChange publishes a record change to the changes stream
	PublishChange(ctx context.Context, change ChangeMessage) error

	// ReadChanges reads from the changes stream, invoking handler per message
	ReadChanges(ctx context.Context, group, consumer string, handler func(ctx context.Context, change ChangeMessage) error) error

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL.
// If redisURL is empty or the connection fails, returns a NullBus so the
// console still works single-instance.
func NewBus(redisURL string, logger *log.Logger) Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	if redisBus, err := NewRedisBus(redisURL, logger); err == nil {
		return redisBus
	}

	return NewNullBus(logger)
}
