package postgres

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadCodec_SmallPayloadStaysRaw(t *testing.T) {
	c, err := NewPayloadCodec(64)
	require.NoError(t, err)

	raw, compressed, algo := c.Encode([]byte(`[["Amy","30"]]`))
	assert.Equal(t, CompressionNone, algo)
	assert.Nil(t, compressed)
	assert.Equal(t, `[["Amy","30"]]`, string(raw))

	out, err := c.Decode(raw, compressed, algo)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestPayloadCodec_LargePayloadRoundTrips(t *testing.T) {
	c, err := NewPayloadCodec(64)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte(`{"name":"Bob","age":null},`), 100)
	raw, compressed, algo := c.Encode(payload)
	assert.Equal(t, CompressionZstd, algo)
	assert.Nil(t, raw)
	assert.Less(t, len(compressed), len(payload))

	out, err := c.Decode(raw, compressed, algo)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestPayloadCodec_DefaultThreshold(t *testing.T) {
	c, err := NewPayloadCodec(0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCompressThreshold, c.threshold)
}
