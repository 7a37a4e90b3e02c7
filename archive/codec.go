package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the compression applied to a snapshot payload.
type Codec uint8

const (
	// CodecNone stores the payload as is.
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression (fast, good for hot data).
	CodecLZ4 Codec = 1
	// CodecZSTD uses ZSTD (better ratio, good for cold data).
	CodecZSTD Codec = 2
	// CodecSnappy uses Snappy block compression.
	CodecSnappy Codec = 3
)

// String returns the lowercase codec name.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZSTD:
		return "zstd"
	case CodecSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec parses a codec name as produced by String.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZSTD, nil
	case "snappy":
		return CodecSnappy, nil
	default:
		return CodecNone, fmt.Errorf("archive: unknown codec %q", s)
	}
}

// ErrCorruptFrame is returned when a stored frame cannot be decoded.
var ErrCorruptFrame = errors.New("archive: corrupt frame")

// Frame layout: [codec uint8][uncompressed length uint32 LE][payload].
const frameHeaderSize = 5

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// encodeFrame compresses data with c. When compression does not shrink the
// payload the frame falls back to CodecNone.
func encodeFrame(data []byte, c Codec) ([]byte, error) {
	payload, err := compress(data, c)
	if err != nil {
		return nil, err
	}
	if payload == nil || len(payload) >= len(data) {
		c, payload = CodecNone, data
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = byte(c)
	binary.LittleEndian.PutUint32(frame[1:], uint32(len(data)))
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

func compress(data []byte, c Codec) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	switch c {
	case CodecNone:
		return nil, nil
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil // incompressible
		}
		return buf[:n], nil
	case CodecZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, nil), nil
	case CodecSnappy:
		return snappy.Encode(nil, data), nil
	default:
		return nil, fmt.Errorf("archive: unknown codec %d", uint8(c))
	}
}

// decodeFrame reverses encodeFrame and reports the codec the frame used.
func decodeFrame(frame []byte) ([]byte, Codec, error) {
	if len(frame) < frameHeaderSize {
		return nil, CodecNone, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorruptFrame, len(frame))
	}

	c := Codec(frame[0])
	size := int(binary.LittleEndian.Uint32(frame[1:]))
	payload := frame[frameHeaderSize:]

	var (
		out []byte
		err error
	)

	switch c {
	case CodecNone:
		out = payload
	case CodecLZ4:
		out = make([]byte, size)
		var n int
		n, err = lz4.UncompressBlock(payload, out)
		out = out[:max(n, 0)]
	case CodecZSTD:
		var dec *zstd.Decoder
		dec, err = getZstdDecoder()
		if err != nil {
			return nil, c, err
		}
		out, err = dec.DecodeAll(payload, make([]byte, 0, size))
		zstdDecoderPool.Put(dec)
	case CodecSnappy:
		out, err = snappy.Decode(nil, payload)
	default:
		return nil, c, fmt.Errorf("%w: unknown codec %d", ErrCorruptFrame, uint8(c))
	}

	if err != nil {
		return nil, c, fmt.Errorf("%w: %s: %v", ErrCorruptFrame, c, err)
	}
	if len(out) != size {
		return nil, c, fmt.Errorf("%w: %s: decoded %d bytes, header says %d", ErrCorruptFrame, c, len(out), size)
	}
	return out, c, nil
}
