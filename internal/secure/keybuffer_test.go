package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBufferRoundTrip(t *testing.T) {
	key := []byte{1, 2, 3, 4}
	kb := NewKeyBuffer(key)

	buf, err := kb.Open()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf.Bytes())
	buf.Destroy()
}

func TestKeyBufferDestroyIsIdempotent(t *testing.T) {
	kb := NewKeyBuffer([]byte("0123456789abcdef0123456789abcdef"))
	kb.Destroy()
	kb.Destroy()

	buf, err := kb.Open()
	assert.ErrorIs(t, err, ErrKeyDestroyed)
	assert.Nil(t, buf)
}
