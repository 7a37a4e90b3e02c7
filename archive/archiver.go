// Package archive moves bitmaps between a store and a blob store, so that
// buckets about to expire can be kept in cold storage and restored later.
//
// Each bitmap becomes one blob, snapshots/<key>.bm, holding a compressed
// portable roaring bitmap. Every Archive call also writes a JSON manifest,
// manifests/<id>.json, listing what it stored.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hupe1980/bitmapist/blobstore"
	"github.com/hupe1980/bitmapist/store"
	"golang.org/x/sync/errgroup"
)

const (
	snapshotPrefix = "snapshots/"
	snapshotSuffix = ".bm"
	manifestPrefix = "manifests/"
	manifestSuffix = ".json"

	// DefaultConcurrency bounds the number of keys processed at once.
	DefaultConcurrency = 8
)

// ErrNotArchived is returned by Restore when no snapshot exists for a key.
var ErrNotArchived = errors.New("archive: key not archived")

// Entry describes one archived bitmap.
type Entry struct {
	Key   string `json:"key"`
	Blob  string `json:"blob"`
	Codec string `json:"codec"`
	// Bits is the number of set bits.
	Bits uint64 `json:"bits"`
	// Bytes is the length of the Redis string.
	Bytes int `json:"bytes"`
	// Stored is the size of the blob.
	Stored int `json:"stored"`
	// TTLSeconds is the remaining lifetime at archive time, 0 if persistent.
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

// Manifest records the outcome of one Archive call.
type Manifest struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Entries   []Entry   `json:"entries"`
	// Missing lists requested keys that did not exist.
	Missing []string `json:"missing,omitempty"`
}

// Archiver copies bitmaps from a store into a blob store and back.
type Archiver struct {
	store        store.Store
	blobs        blobstore.BlobStore
	codec        Codec
	concurrency  int
	deleteSource bool
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithCodec selects the compression for new snapshots. Default is ZSTD.
func WithCodec(c Codec) Option {
	return func(a *Archiver) { a.codec = c }
}

// WithConcurrency bounds the number of keys processed in parallel.
func WithConcurrency(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithDeleteSource removes archived keys from the store once the manifest
// has been written.
func WithDeleteSource() Option {
	return func(a *Archiver) { a.deleteSource = true }
}

// WithLogger sets the logger. Default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archiver) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock overrides the clock used for manifest timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) { a.now = now }
}

// New returns an Archiver reading from st and writing to blobs.
func New(st store.Store, blobs blobstore.BlobStore, opts ...Option) *Archiver {
	a := &Archiver{
		store:       st,
		blobs:       blobs,
		codec:       CodecZSTD,
		concurrency: DefaultConcurrency,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range opts {
		fn(a)
	}
	return a
}

// BlobName returns the blob a key is archived under.
func BlobName(key string) string {
	return snapshotPrefix + key + snapshotSuffix
}

func manifestName(id string) string {
	return manifestPrefix + id + manifestSuffix
}

// Archive snapshots keys and writes a manifest for them. Keys that do not
// exist are recorded as missing. If any key fails, no manifest is written
// and the blobs already stored are left in place for the next attempt.
func (a *Archiver) Archive(ctx context.Context, keys ...string) (*Manifest, error) {
	entries := make([]*Entry, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, key := range keys {
		g.Go(func() error {
			e, err := a.archiveOne(gctx, key)
			if err != nil {
				return fmt.Errorf("archive %s: %w", key, err)
			}
			entries[i] = e
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.ErrorContext(ctx, "archive failed", "keys", len(keys), "error", err)
		return nil, err
	}

	m := &Manifest{
		ID:        uuid.NewString(),
		CreatedAt: a.now(),
		Entries:   make([]Entry, 0, len(keys)),
	}
	for i, e := range entries {
		if e == nil {
			m.Missing = append(m.Missing, keys[i])
			continue
		}
		m.Entries = append(m.Entries, *e)
	}

	data, err := gojson.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := a.blobs.Put(ctx, manifestName(m.ID), data); err != nil {
		return nil, fmt.Errorf("archive: write manifest: %w", err)
	}

	if a.deleteSource && len(m.Entries) > 0 {
		archived := make([]string, len(m.Entries))
		for i, e := range m.Entries {
			archived[i] = e.Key
		}
		if err := a.store.Delete(ctx, archived...); err != nil {
			return m, fmt.Errorf("archive: delete source keys: %w", err)
		}
	}

	a.logger.InfoContext(ctx, "archived bitmaps",
		"manifest", m.ID,
		"archived", len(m.Entries),
		"missing", len(m.Missing),
		"codec", a.codec.String(),
	)
	return m, nil
}

// ArchivePattern archives every key matching the glob pattern.
func (a *Archiver) ArchivePattern(ctx context.Context, pattern string) (*Manifest, error) {
	keys, err := a.store.Keys(ctx, pattern)
	if err != nil {
		return nil, err
	}
	return a.Archive(ctx, keys...)
}

func (a *Archiver) archiveOne(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, ok, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	ttl, err := a.store.TTL(ctx, key)
	if err != nil {
		return nil, err
	}

	payload, bits, err := encodeSnapshot(raw)
	if err != nil {
		return nil, err
	}
	frame, err := encodeFrame(payload, a.codec)
	if err != nil {
		return nil, err
	}

	name := BlobName(key)
	if err := a.blobs.Put(ctx, name, frame); err != nil {
		return nil, err
	}

	e := &Entry{
		Key:    key,
		Blob:   name,
		Codec:  Codec(frame[0]).String(),
		Bits:   bits,
		Bytes:  len(raw),
		Stored: len(frame),
	}
	if ttl > 0 {
		e.TTLSeconds = int64(ttl / time.Second)
	}

	a.logger.DebugContext(ctx, "archived bitmap", "key", key, "bits", bits, "stored", len(frame))
	return e, nil
}

// Restore writes the archived snapshot of key back into the store,
// replacing any current value. The restored key has no expiry.
func (a *Archiver) Restore(ctx context.Context, key string) error {
	frame, err := blobstore.ReadAll(ctx, a.blobs, BlobName(key))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotArchived, key)
		}
		return err
	}

	payload, _, err := decodeFrame(frame)
	if err != nil {
		return fmt.Errorf("restore %s: %w", key, err)
	}
	raw, err := decodeSnapshot(payload)
	if err != nil {
		return fmt.Errorf("restore %s: %w", key, err)
	}

	if err := a.store.Set(ctx, key, raw); err != nil {
		return err
	}

	a.logger.DebugContext(ctx, "restored bitmap", "key", key, "bytes", len(raw))
	return nil
}

// RestoreManifest restores every entry of the manifest with the given ID
// and returns how many keys were written.
func (a *Archiver) RestoreManifest(ctx context.Context, id string) (int, error) {
	m, err := a.LoadManifest(ctx, id)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, e := range m.Entries {
		g.Go(func() error {
			return a.Restore(gctx, e.Key)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	a.logger.InfoContext(ctx, "restored manifest", "manifest", id, "keys", len(m.Entries))
	return len(m.Entries), nil
}

// LoadManifest reads a manifest by ID.
func (a *Archiver) LoadManifest(ctx context.Context, id string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, a.blobs, manifestName(id))
	if err != nil {
		return nil, fmt.Errorf("archive: load manifest %s: %w", id, err)
	}

	var m Manifest
	if err := gojson.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("archive: decode manifest %s: %w", id, err)
	}
	return &m, nil
}

// Manifests returns the IDs of all stored manifests.
func (a *Archiver) Manifests(ctx context.Context) ([]string, error) {
	names, err := a.blobs.List(ctx, manifestPrefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if !strings.HasSuffix(name, manifestSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, manifestPrefix), manifestSuffix))
	}
	return ids, nil
}
