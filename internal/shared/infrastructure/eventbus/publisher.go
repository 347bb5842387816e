// Package eventbus publishes gateway events to a message broker.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher sends payloads to a broker under a routing key.
type Publisher interface {
	// Publish sends a message to the event bus.
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Close closes the publisher connection.
	Close() error
}

// PublishJSON marshals v and publishes it.
func PublishJSON(ctx context.Context, p Publisher, routingKey string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", routingKey, err)
	}
	return p.Publish(ctx, routingKey, payload)
}
