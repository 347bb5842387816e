package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthRegistry_Check(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("empty registry is healthy", func(t *testing.T) {
		results, state := NewHealthRegistry().Check(context.Background())
		assert.Empty(t, results)
		assert.Equal(t, HealthHealthy, state)
	})

	t.Run("optional failure degrades", func(t *testing.T) {
		reg := NewHealthRegistry()
		reg.Register("journal", PingCheck(ok, false))
		reg.Register("redis", PingCheck(down, true))

		results, state := reg.Check(context.Background())
		require.Len(t, results, 2)
		assert.Equal(t, "journal", results[0].Name)
		assert.Equal(t, HealthDegraded, results[1].State)
		assert.Equal(t, "connection refused", results[1].Message)
		assert.Equal(t, HealthDegraded, state)
	})

	t.Run("required failure is unhealthy", func(t *testing.T) {
		reg := NewHealthRegistry()
		reg.Register("redis", PingCheck(down, true))
		reg.Register("journal", PingCheck(down, false))

		_, state := reg.Check(context.Background())
		assert.Equal(t, HealthUnhealthy, state)
		assert.Equal(t, []string{"journal", "redis"}, reg.Names())
	})
}
