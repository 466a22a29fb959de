package di

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"streamcaption/packages/go/backend/admission"
	"streamcaption/packages/go/backend/asr"
	"streamcaption/packages/go/backend/broadcast"
	"streamcaption/packages/go/backend/config"
	"streamcaption/packages/go/backend/ingestion"
	"streamcaption/packages/go/backend/media"
	"streamcaption/packages/go/backend/pipeline"
	"streamcaption/packages/go/backend/status"
)

// Container holds the wired services behind the API server.
type Container struct {
	Resolver   ingestion.Resolver
	Decoder    ingestion.Decoder
	Engine     asr.Engine
	Mirror     *status.RedisMirror
	Hub        *broadcast.Hub
	Runner     *pipeline.Runner
	Controller *admission.Controller
}

// ContainerOption configures a container during construction. Components set
// through options take precedence over the ones selected by configuration.
type ContainerOption func(*Container)

// WithResolver sets the stream resolver.
func WithResolver(r ingestion.Resolver) ContainerOption {
	return func(c *Container) { c.Resolver = r }
}

// WithDecoder sets the decode process launcher.
func WithDecoder(d ingestion.Decoder) ContainerOption {
	return func(c *Container) { c.Decoder = d }
}

// WithEngine sets the transcription engine.
func WithEngine(e asr.Engine) ContainerOption {
	return func(c *Container) { c.Engine = e }
}

// NewContainer wires every component from cfg.
func NewContainer(cfg config.Config, logger *zap.SugaredLogger, opts ...ContainerOption) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Container{}
	for _, opt := range opts {
		opt(c)
	}

	if c.Resolver == nil {
		switch cfg.Resolver {
		case config.ResolverPassthrough:
			c.Resolver = ingestion.PassthroughResolver{}
		default:
			c.Resolver = ingestion.NewYtDlpResolver(cfg.YtDlpPath, ingestion.DefaultYtDlpConfig())
		}
	}

	if c.Decoder == nil {
		switch cfg.Decoder {
		case config.DecoderFile:
			d, err := ingestion.NewFileDecoder(ingestion.FileConfig{EmitInterval: cfg.FileEmitInterval})
			if err != nil {
				return nil, fmt.Errorf("file decoder: %w", err)
			}
			c.Decoder = d
		default:
			c.Decoder = ingestion.NewFFmpegDecoder(ingestion.FFmpegConfig{Path: cfg.FFmpegPath})
		}
	}

	if c.Engine == nil {
		c.Engine = asr.NewLazy(engineBuilder(cfg, logger))
	}

	hubOpts := []broadcast.Option{broadcast.WithLogger(logger)}
	if cfg.RedisAddr != "" {
		mirror, err := status.NewRedisMirror(cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			return nil, fmt.Errorf("redis mirror: %w", err)
		}
		c.Mirror = mirror
		hubOpts = append(hubOpts, broadcast.WithMirror(mirror))
	}
	c.Hub = broadcast.NewHub(hubOpts...)

	window := media.DefaultWindowConfig()
	window.ChunkSeconds = cfg.ChunkSeconds
	runner, err := pipeline.NewRunner(pipeline.Config{
		Resolver: c.Resolver,
		Decoder:  c.Decoder,
		Engine:   c.Engine,
		Hub:      c.Hub,
		Window:   window,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	c.Runner = runner
	c.Controller = admission.NewController(runner, c.Hub,
		admission.WithRecentCap(cfg.RecentCap),
		admission.WithLogger(logger),
	)
	return c, nil
}

func engineBuilder(cfg config.Config, logger *zap.SugaredLogger) func() (asr.Engine, error) {
	return func() (asr.Engine, error) {
		switch cfg.Engine {
		case config.EngineStub:
			logger.Infow("using stub transcription engine")
			return asr.NewStubEngine(nil), nil
		case config.EngineHTTP:
			logger.Infow("connecting transcription engine", "url", cfg.WhisperURL, "model", asr.ResolveModel(cfg.WhisperModel))
			engine, err := asr.NewHTTPEngine(asr.HTTPEngineConfig{
				BaseURL: cfg.WhisperURL,
				Model:   cfg.WhisperModel,
				Timeout: cfg.WhisperTimeout,
			})
			if err != nil {
				return nil, err
			}
			return engine, nil
		default:
			return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
		}
	}
}

// NewTestContainer creates a container with stub components that need no
// external binaries or services: local files are replayed as raw PCM and the
// stub engine produces deterministic text.
func NewTestContainer(logger *zap.SugaredLogger) (*Container, error) {
	cfg := config.Default()
	cfg.Resolver = config.ResolverPassthrough
	cfg.Decoder = config.DecoderFile
	cfg.Engine = config.EngineStub
	return NewContainer(cfg, logger)
}

// Close releases external connections.
func (c *Container) Close() error {
	var errs []error
	if c.Hub != nil {
		c.Hub.Close()
	}
	if c.Mirror != nil {
		if err := c.Mirror.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
