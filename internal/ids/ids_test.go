package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ParsesAsULID(t *testing.T) {
	id := New()
	parsed, err := ulid.ParseStrict(id)
	require.NoError(t, err)
	assert.Equal(t, id, parsed.String())
}

func TestNewAt_MonotonicWithinTimestamp(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewAt(at)
	b := NewAt(at)
	assert.Less(t, a, b)

	parsed, err := ulid.ParseStrict(a)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), parsed.Time())
}
