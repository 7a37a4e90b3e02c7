package archive

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("trackist:ev:active:2024-3 "), 200)

	rng := rand.New(rand.NewPCG(1, 2))
	noise := make([]byte, 4096)
	for i := range noise {
		noise[i] = byte(rng.UintN(256))
	}

	for _, c := range []Codec{CodecNone, CodecLZ4, CodecZSTD, CodecSnappy} {
		t.Run(c.String(), func(t *testing.T) {
			frame, err := encodeFrame(compressible, c)
			require.NoError(t, err)
			assert.Equal(t, byte(c), frame[0])
			if c != CodecNone {
				assert.Less(t, len(frame), len(compressible))
			}

			out, used, err := decodeFrame(frame)
			require.NoError(t, err)
			assert.Equal(t, c, used)
			assert.Equal(t, compressible, out)

			// Incompressible payloads are stored raw.
			frame, err = encodeFrame(noise, c)
			require.NoError(t, err)
			assert.Equal(t, byte(CodecNone), frame[0])

			out, _, err = decodeFrame(frame)
			require.NoError(t, err)
			assert.Equal(t, noise, out)
		})
	}
}

func TestFrame_Empty(t *testing.T) {
	frame, err := encodeFrame(nil, CodecZSTD)
	require.NoError(t, err)
	assert.Len(t, frame, frameHeaderSize)

	out, c, err := decodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, CodecNone, c)
	assert.Empty(t, out)
}

func TestFrame_Corrupt(t *testing.T) {
	_, _, err := decodeFrame([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorruptFrame)

	_, _, err = decodeFrame([]byte{9, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrCorruptFrame)

	frame, err := encodeFrame(bytes.Repeat([]byte{0xAB}, 1024), CodecSnappy)
	require.NoError(t, err)
	frame[1]++ // header length no longer matches
	_, _, err = decodeFrame(frame)
	assert.ErrorIs(t, err, ErrCorruptFrame)

	// A CodecNone frame whose header disagrees with the payload.
	_, _, err = decodeFrame([]byte{0, 3, 0, 0, 0, 'a'})
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestParseCodec(t *testing.T) {
	for _, c := range []Codec{CodecNone, CodecLZ4, CodecZSTD, CodecSnappy} {
		got, err := ParseCodec(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	got, err := ParseCodec(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, CodecZSTD, got)

	_, err = ParseCodec("brotli")
	assert.Error(t, err)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	// Bits 0, 7, 8 and 23, followed by two zero bytes that must survive.
	raw := []byte{0x81, 0x80, 0x01, 0x00, 0x00}

	payload, bits, err := encodeSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), bits)

	rb := toRoaring(raw)
	assert.Equal(t, []uint32{0, 7, 8, 23}, rb.ToArray())

	out, err := decodeSnapshot(payload)
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	_, err = decodeSnapshot([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestFromRoaring_OutOfRange(t *testing.T) {
	rb := toRoaring([]byte{0x00, 0x01})

	_, err := fromRoaring(rb, 1)
	assert.ErrorIs(t, err, ErrCorruptFrame)
}
