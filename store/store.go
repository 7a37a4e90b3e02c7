package store

import (
	"context"
	"errors"
	"time"
)

// MaxBits is one past the largest addressable bit index (Redis strings are
// limited to 512MB).
const MaxBits = 1 << 32

// ErrUnavailable is returned when the backing store cannot be reached.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrUnavailable)`
// for transport and connection failures, as opposed to command errors.
var ErrUnavailable = errors.New("store unavailable")

// BitOp is a bitwise operation understood by the store.
type BitOp string

const (
	And BitOp = "AND"
	Or  BitOp = "OR"
	Xor BitOp = "XOR"
	Not BitOp = "NOT"
)

// Reader is the read side of a bit-array store.
//
// Bit and byte indices may be negative, in which case they are counted
// backwards from the end of the key's value (-1 is the last bit or byte).
type Reader interface {
	// GetBit returns the bit at index. Missing keys and out-of-range indices read as 0.
	GetBit(ctx context.Context, key string, index int64) (int, error)

	// BitCount counts the set bits of the whole key.
	BitCount(ctx context.Context, key string) (int64, error)

	// BitCountRange counts the set bits in the inclusive byte range [startByte, endByte].
	BitCountRange(ctx context.Context, key string, startByte, endByte int64) (int64, error)

	// StrLen returns the length of key's value in bytes, 0 if it does not exist.
	StrLen(ctx context.Context, key string) (int64, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Get returns the raw value of key. ok is false if the key does not exist.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// TTL returns the remaining lifetime of key, or a negative duration if the
	// key has no expiry or does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Keys returns all keys matching the glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Writer is the write side of a bit-array store.
type Writer interface {
	// SetBit sets the bit at index (index >= 0) to value (0 or 1).
	SetBit(ctx context.Context, key string, index int64, value int) error

	// BitOp stores op applied over srcs into dest.
	BitOp(ctx context.Context, op BitOp, dest string, srcs ...string) error

	// Expire sets a time to live on key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Set replaces the raw value of key.
	Set(ctx context.Context, key string, data []byte) error
}

// Store is a byte-addressable bit-array store.
//
// Implementations must be safe for concurrent use.
type Store interface {
	Reader
	Writer

	// Pipeline starts a batch of commands sent in one round trip.
	// If tx is true, the batch is applied as a single transaction.
	Pipeline(tx bool) Pipeline
}

// Pipeline queues commands until Exec.
//
// Queued commands are not validated until Exec; there is no rollback
// of commands already applied when a later one fails.
type Pipeline interface {
	SetBit(key string, index int64, value int)
	GetBit(key string, index int64) *IntResult
	Expire(key string, ttl time.Duration)

	// Exec sends the queued commands. The returned error is the first command
	// or transport error. Failed reports the number of commands that failed.
	Exec(ctx context.Context) (failed int, err error)
}

// IntResult is an integer result filled in by Pipeline.Exec.
type IntResult struct {
	val int64
	err error
}

// Set fills in the result. Pipeline implementations call it from Exec.
func (r *IntResult) Set(v int64, err error) {
	r.val, r.err = v, err
}

// Val returns the result value.
func (r *IntResult) Val() int64 { return r.val }

// Err returns the per-command error.
func (r *IntResult) Err() error { return r.err }
