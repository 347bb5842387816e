package eventbus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

type capturePublisher struct {
	keys     []string
	payloads [][]byte
}

func (c *capturePublisher) Publish(_ context.Context, key string, payload []byte) error {
	c.keys = append(c.keys, key)
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestPublishJSON(t *testing.T) {
	p := &capturePublisher{}

	err := PublishJSON(context.Background(), p, "move.computed", map[string]string{"engine": "stockfish", "move": "e2e4"})
	require.NoError(t, err)

	require.Equal(t, []string{"move.computed"}, p.keys)
	var got map[string]string
	require.NoError(t, json.Unmarshal(p.payloads[0], &got))
	assert.Equal(t, "e2e4", got["move"])

	err = PublishJSON(context.Background(), p, "move.failed", func() {})
	assert.Error(t, err)
	assert.Len(t, p.keys, 1)
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher(observability.Discard())
	assert.NoError(t, p.Publish(context.Background(), "move.computed", []byte(`{}`)))
	assert.NoError(t, p.Close())
}
