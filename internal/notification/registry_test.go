package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, ok := r.ConnectionID("a@example.com")
	assert.False(t, ok)

	r.Register("a@example.com", "conn-1")

	id, ok := r.ConnectionID("a@example.com")
	assert.True(t, ok)
	assert.Equal(t, "conn-1", id)

	// Reconnecting replaces the previous connection.
	r.Register("a@example.com", "conn-2")

	id, _ = r.ConnectionID("a@example.com")
	assert.Equal(t, "conn-2", id)

	// The old connection closing must not evict the new one.
	r.Unregister("a@example.com", "conn-1")

	id, ok = r.ConnectionID("a@example.com")
	assert.True(t, ok)
	assert.Equal(t, "conn-2", id)

	r.Unregister("a@example.com", "conn-2")

	_, ok = r.ConnectionID("a@example.com")
	assert.False(t, ok)
}
