package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/bitmapist/store"
)

// A snapshot payload is [string length uint64 LE][portable roaring bitmap].
// The length is kept because trailing zero bytes are significant for
// STRLEN and the width of NOT.
const snapshotHeaderSize = 8

// toRoaring decodes a raw Redis string, bit i living in byte i/8 under
// mask 0x80>>(i%8).
func toRoaring(raw []byte) *roaring.Bitmap {
	rb := roaring.New()
	for i, b := range raw {
		if b == 0 {
			continue
		}
		base := uint32(i) * 8
		for j := uint32(0); j < 8; j++ {
			if b&(0x80>>j) != 0 {
				rb.Add(base + j)
			}
		}
	}
	rb.RunOptimize()
	return rb
}

// fromRoaring renders rb as a Redis string of exactly size bytes.
func fromRoaring(rb *roaring.Bitmap, size int) ([]byte, error) {
	if n := rb.GetCardinality(); n > 0 && int64(rb.Maximum())/8 >= int64(size) {
		return nil, fmt.Errorf("%w: bit %d beyond %d bytes", ErrCorruptFrame, rb.Maximum(), size)
	}

	raw := make([]byte, size)
	it := rb.Iterator()
	for it.HasNext() {
		i := it.Next()
		raw[i/8] |= 0x80 >> (i % 8)
	}
	return raw, nil
}

func encodeSnapshot(raw []byte) ([]byte, uint64, error) {
	rb := toRoaring(raw)

	body, err := rb.ToBytes()
	if err != nil {
		return nil, 0, err
	}

	out := make([]byte, snapshotHeaderSize+len(body))
	binary.LittleEndian.PutUint64(out, uint64(len(raw)))
	copy(out[snapshotHeaderSize:], body)
	return out, rb.GetCardinality(), nil
}

func decodeSnapshot(payload []byte) ([]byte, error) {
	if len(payload) < snapshotHeaderSize {
		return nil, fmt.Errorf("%w: snapshot of %d bytes", ErrCorruptFrame, len(payload))
	}

	size := binary.LittleEndian.Uint64(payload)
	if size > store.MaxBits/8 {
		return nil, fmt.Errorf("%w: snapshot length %d", ErrCorruptFrame, size)
	}

	rb := roaring.New()
	if err := rb.UnmarshalBinary(payload[snapshotHeaderSize:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	return fromRoaring(rb, int(size))
}
