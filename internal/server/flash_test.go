package server

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlashCodecRoundTrip(t *testing.T) {
	c := newFlashCodec([]byte("k1"), false)
	value, err := c.encode([]Flash{{Category: "error", Message: "That post does not exist."}})
	require.NoError(t, err)

	msgs, err := c.decode(value)
	require.NoError(t, err)
	assert.Equal(t, []Flash{{Category: "error", Message: "That post does not exist."}}, msgs)
}

func TestFlashCodecRejectsForgeries(t *testing.T) {
	c := newFlashCodec([]byte("k1"), false)
	value, err := c.encode([]Flash{{Category: "success", Message: "hi"}})
	require.NoError(t, err)

	_, err = newFlashCodec([]byte("k2"), false).decode(value)
	assert.Error(t, err, "other secret")

	parts := strings.Split(value, ".")
	require.Len(t, parts, 3)
	_, err = c.decode(parts[0] + "." + parts[1] + ".AAAA")
	assert.Error(t, err, "bad signature")

	_, err = c.decode("garbage")
	assert.Error(t, err)
}

func TestFlashCodecExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newFlashCodec([]byte("k1"), false)
	c.now = func() time.Time { return now }
	value, err := c.encode([]Flash{{Category: "error", Message: "late"}})
	require.NoError(t, err)

	now = now.Add(c.ttl + time.Minute)
	_, err = c.decode(value)
	assert.Error(t, err)
}
