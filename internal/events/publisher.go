package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CompileStream carries every compilation progress event.
	CompileStream = "gridfax.compile.events"

	// maxStreamLen caps the stream with approximate trimming.
	maxStreamLen = 10000
)

// StreamPublisher appends envelopes to a capped Redis stream for external
// consumers.
type StreamPublisher struct {
	client *redis.Client
}

// NewStreamPublisher wraps an existing Redis client.
func NewStreamPublisher(client *redis.Client) *StreamPublisher {
	return &StreamPublisher{client: client}
}

// Send implements Sink. Publish failures are logged and dropped; progress
// fan-out never stops a run.
func (p *StreamPublisher) Send(e Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := json.Marshal(e.Data)
	if err != nil {
		log.Printf("[events] ⚠ Failed to encode %s event: %v", e.Type, err)
		return
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: CompileStream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      e.Type,
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		log.Printf("[events] ⚠ Failed to publish %s event: %v", e.Type, err)
	}
}
