package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hupe1980/bitmapist"
	"github.com/hupe1980/bitmapist/archive"
	"github.com/hupe1980/bitmapist/blobstore"
	"github.com/hupe1980/bitmapist/blobstore/minio"
	"github.com/hupe1980/bitmapist/blobstore/s3"
	"github.com/hupe1980/bitmapist/internal/config"
	"github.com/hupe1980/bitmapist/store"
	bmredis "github.com/hupe1980/bitmapist/store/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// env is everything a command needs once configuration has been loaded.
type env struct {
	cfg    *config.Config
	client *goredis.Client
	store  store.Store
	bm     *bitmapist.Bitmapist
	slog   *slog.Logger
}

func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.redisAddr != "" {
		cfg.Redis.Addr = c.redisAddr
	}

	logger, err := buildLogger(cfg.Logging, c.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	c.logger = logger

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	var st store.Store = bmredis.New(client)
	if cfg.Redis.RateLimit > 0 {
		st = store.NewThrottled(st, cfg.Redis.RateLimit, cfg.Redis.Burst)
	}

	bmLogger := bitmapist.NewLogger(zapslog.NewHandler(logger.Core()))

	c.env = &env{
		cfg:    cfg,
		client: client,
		store:  st,
		slog:   bmLogger.Logger,
		bm: bitmapist.New(st,
			bitmapist.WithPrefix(cfg.Keys.Prefix),
			bitmapist.WithDivider(cfg.Keys.Divider),
			bitmapist.WithTempTTL(cfg.TempTTLDuration()),
			bitmapist.WithLogger(bmLogger),
		),
	}

	logger.Debug("connected",
		zap.String("redis", cfg.Redis.Addr),
		zap.Int("db", cfg.Redis.DB),
		zap.String("prefix", cfg.Keys.Prefix),
	)
	return nil
}

func (c *cli) teardown() {
	if c.env != nil && c.env.client != nil {
		_ = c.env.client.Close()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func buildLogger(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if lc.Level != "" {
		if err := level.Set(lc.Level); err != nil {
			return nil, err
		}
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}

// archiver builds the configured blob store and wraps it in an Archiver.
func (e *env) archiver(ctx context.Context, extra ...archive.Option) (*archive.Archiver, error) {
	ac := e.cfg.Archive

	var (
		blobs blobstore.BlobStore
		err   error
	)
	switch ac.Backend {
	case "local":
		blobs = blobstore.NewLocalStore(ac.Path)
	case "minio":
		blobs, err = minio.Dial(ctx, ac.Endpoint, ac.AccessKey, ac.SecretKey, ac.Bucket, ac.Prefix, ac.Secure)
	case "s3":
		opts := []s3.Option{s3.WithPrefix(ac.Prefix)}
		if ac.Region != "" {
			opts = append(opts, s3.WithRegion(ac.Region))
		}
		if ac.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(ac.Endpoint, true))
		}
		blobs, err = s3.New(ctx, ac.Bucket, opts...)
	default:
		err = fmt.Errorf("unknown archive backend %q", ac.Backend)
	}
	if err != nil {
		return nil, err
	}

	codec, err := archive.ParseCodec(ac.Codec)
	if err != nil {
		return nil, err
	}

	opts := append([]archive.Option{
		archive.WithCodec(codec),
		archive.WithConcurrency(ac.Concurrency),
		archive.WithLogger(e.slog),
	}, extra...)
	return archive.New(e.store, blobs, opts...), nil
}
