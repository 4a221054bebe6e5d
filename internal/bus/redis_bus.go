package bus

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Record kinds carried on the changes stream.
const (
	KindAlert = "alert"
	KindCase  = "case"
)

// Change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionTagged  = "tagged"
)

// changesStream is the Redis Stream all record changes flow through.
const changesStream = "changes"

// RedisBus provides Redis Streams-based change propagation between consoles
type RedisBus struct {
	client *redis.Client
	logger *log.Logger
}

// StreamMessage represents a message in a Redis Stream
type StreamMessage struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// ChangeMessage describes one record mutation. Subscribers only need enough
// to decide which list views to refresh; they refetch rather than patch.
type ChangeMessage struct {
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	Action    string `json:"action"`
	Origin    string `json:"origin"`
	Timestamp int64  `json:"timestamp"`
}

// StreamHandler is a function that processes stream messages
type StreamHandler func(ctx context.Context, message StreamMessage) error

// NewRedisBus creates a new Redis bus instance
func NewRedisBus(redisURL string, logger *log.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = log.New(log.Writer(), "[RedisBus] ", log.LstdFlags)
	}

	return &RedisBus{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

// PublishChange publishes a record change to the changes stream
func (rb *RedisBus) PublishChange(ctx context.Context, change ChangeMessage) error {
	if change.Timestamp == 0 {
		change.Timestamp = time.Now().Unix()
	}

	fields := map[string]interface{}{
		"kind":      change.Kind,
		"id":        change.ID,
		"action":    change.Action,
		"origin":    change.Origin,
		"timestamp": change.Timestamp,
	}

	result := rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: changesStream,
		Values: fields,
	})

	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}

	rb.logger.Printf("Published %s %s %s to changes stream", change.Kind, change.ID, change.Action)
	return nil
}

// CreateConsumerGroup creates a consumer group for a stream if it doesn't exist
func (rb *RedisBus) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	// Try to create the consumer group, ignore error if it already exists
	result := rb.client.XGroupCreateMkStream(ctx, stream, group, "0")
	if err := result.Err(); err != nil {
		// Check if the error is because the group already exists
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("failed to create consumer group %s for stream %s: %w", group, stream, err)
		}
	}

	rb.logger.Printf("Consumer group %s ready for stream %s", group, stream)
	return nil
}

// ReadStream reads messages from a stream using consumer groups
func (rb *RedisBus) ReadStream(ctx context.Context, stream, group, consumer string, handler StreamHandler) error {
	// Ensure consumer group exists
	if err := rb.CreateConsumerGroup(ctx, stream, group); err != nil {
		return err
	}

	rb.logger.Printf("Starting stream reader for %s (group: %s, consumer: %s)", stream, group, consumer)

	for {
		select {
		case <-ctx.Done():
			rb.logger.Printf("Stream reader for %s stopping due to context cancellation", stream)
			return ctx.Err()
		default:
			// Read messages from the stream
			result := rb.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumer,
				Streams:  []string{stream, ">"},
				Count:    10,
				Block:    1 * time.Second,
			})

			if err := result.Err(); err != nil {
				if err == redis.Nil {
					// No messages available, continue
					continue
				}
				rb.logger.Printf("Error reading from stream %s: %v", stream, err)
				time.Sleep(5 * time.Second)
				continue
			}

			// Process messages
			for _, stream := range result.Val() {
				for _, message := range stream.Messages {
					streamMsg := StreamMessage{
						ID:     message.ID,
						Fields: make(map[string]string),
					}

					// Convert fields to string map
					for key, value := range message.Values {
						if strValue, ok := value.(string); ok {
							streamMsg.Fields[key] = strValue
						}
					}

					// Process the message
					if err := handler(ctx, streamMsg); err != nil {
						rb.logger.Printf("Error processing message %s: %v", message.ID, err)
						continue
					}

					// Acknowledge the message
					if err := rb.client.XAck(ctx, stream.Stream, group, message.ID).Err(); err != nil {
						rb.logger.Printf("Error acknowledging message %s: %v", message.ID, err)
					}
				}
			}
		}
	}
}

// ReadChanges reads from the changes stream
func (rb *RedisBus) ReadChanges(ctx context.Context, group, consumer string, handler func(ctx context.Context, change ChangeMessage) error) error {
	streamHandler := func(ctx context.Context, message StreamMessage) error {
		change := ChangeMessage{
			Kind:   message.Fields["kind"],
			ID:     message.Fields["id"],
			Action: message.Fields["action"],
			Origin: message.Fields["origin"],
		}

		if timestamp := message.Fields["timestamp"]; timestamp != "" {
			if ts, err := parseTimestamp(timestamp); err == nil {
				change.Timestamp = ts
			}
		}

		return handler(ctx, change)
	}

	return rb.ReadStream(ctx, changesStream, group, consumer, streamHandler)
}

// GetStreamInfo returns information about a stream
func (rb *RedisBus) GetStreamInfo(ctx context.Context, stream string) (*redis.XInfoStream, error) {
	result := rb.client.XInfoStream(ctx, stream)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to get stream info for %s: %w", stream, err)
	}
	return result.Val(), nil
}

// GetConsumerGroupInfo returns information about consumer groups for a stream
func (rb *RedisBus) GetConsumerGroupInfo(ctx context.Context, stream string) ([]redis.XInfoGroup, error) {
	result := rb.client.XInfoGroups(ctx, stream)
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to get consumer group info for %s: %w", stream, err)
	}
	return result.Val(), nil
}

// CleanupOldMessages removes old messages from streams to prevent memory issues
func (rb *RedisBus) CleanupOldMessages(ctx context.Context, stream string, maxLen int64) error {
	result := rb.client.XTrimMaxLen(ctx, stream, maxLen)
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to trim stream %s: %w", stream, err)
	}

	rb.logger.Printf("Trimmed stream %s to max length %d", stream, maxLen)
	return nil
}

// parseTimestamp parses a timestamp string to int64
func parseTimestamp(timestamp string) (int64, error) {
	if timestamp == "" {
		return time.Now().Unix(), nil
	}

	// Try numeric epoch (seconds or milliseconds)
	if n, err := strconv.ParseInt(timestamp, 10, 64); err == nil {
		// Heuristic: 13+ digits -> milliseconds
		if n > 1_000_000_000_000 {
			return n / 1000, nil
		}
		return n, nil
	}

	// Try RFC3339 (seconds precision)
	if ts, err := time.Parse(time.RFC3339, timestamp); err == nil {
		return ts.Unix(), nil
	}

	// Try RFC3339Nano (higher precision)
	if ts, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		return ts.Unix(), nil
	}

	// Default to current time on failure
	return time.Now().Unix(), fmt.Errorf("unable to parse timestamp: %s", timestamp)
}

// HealthCheck performs a health check on the Redis connection
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

// GetStats returns basic statistics about the Redis stream
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	if info, err := rb.GetStreamInfo(ctx, changesStream); err == nil {
		stats["changes_stream"] = map[string]interface{}{
			"length":         info.Length,
			"first_entry_id": info.FirstEntry.ID,
			"last_entry_id":  info.LastEntry.ID,
		}
	}

	if groups, err := rb.GetConsumerGroupInfo(ctx, changesStream); err == nil {
		stats["changes_consumer_groups"] = len(groups)
	}

	return stats, nil
}
