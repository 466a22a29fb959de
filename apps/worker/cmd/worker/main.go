// Package main contains the caption follower entry point. It tails the event
// mirror published by the API server and appends every cue to a transcript.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"streamcaption/packages/go/backend/logging"
	"streamcaption/packages/go/backend/output"
	"streamcaption/packages/go/backend/status"
)

const defaultRedisAddr = "127.0.0.1:6379"

func main() {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mirror, err := status.NewRedisMirror(getRedisAddr(), getEnv("WORKER_REDIS_CHANNEL", status.DefaultChannel))
	if err != nil {
		logger.Fatalw("failed to configure redis mirror", "error", err)
	}
	defer func() {
		if err := mirror.Close(); err != nil {
			logger.Errorw("failed to close redis connection", "error", err)
		}
	}()

	var out io.Writer = os.Stdout
	if path := os.Getenv("WORKER_TRANSCRIPT_PATH"); path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Fatalw("failed to open transcript", "error", err, "path", path)
		}
		defer file.Close()
		out = file
	}

	events, err := mirror.Subscribe(ctx)
	if err != nil {
		logger.Fatalw("failed to subscribe to event mirror", "error", err, "channel", mirror.Channel())
	}

	logger.Infow("follower starting", "channel", mirror.Channel())
	f := &follower{out: out, logger: logger}
	if err := f.Run(ctx, events); err != nil {
		logger.Errorw("follower stopped with error", "error", err)
	}
	logger.Infow("follower stopped")
}

func getRedisAddr() string {
	return getEnv("WORKER_REDIS_ADDR", defaultRedisAddr)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newLogger() *zap.SugaredLogger {
	logger, err := logging.New(os.Getenv("WORKER_LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	return logger
}

// follower writes mirrored cues as SRT blocks. Numbering restarts with every
// new session.
type follower struct {
	out    io.Writer
	logger *zap.SugaredLogger

	sessionID string
	index     int
}

func (f *follower) Run(ctx context.Context, events <-chan status.Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-events:
			if !ok {
				return nil
			}
			if err := f.handle(env); err != nil {
				return err
			}
		}
	}
}

func (f *follower) handle(env status.Envelope) error {
	if env.SessionID != f.sessionID {
		f.sessionID = env.SessionID
		f.index = 0
		f.logger.Infow("following session", "sessionID", env.SessionID)
	}

	switch ev := env.Event; {
	case ev.Cue != nil:
		f.index++
		if err := output.WriteCue(f.out, output.FormatSRT, f.index, *ev.Cue); err != nil {
			return fmt.Errorf("write cue: %w", err)
		}
	case ev.Error != "":
		f.logger.Warnw("stream error", "sessionID", env.SessionID, "detail", ev.Error)
	case ev.Status != "":
		f.logger.Infow("stream status", "sessionID", env.SessionID, "status", ev.Status)
	}
	return nil
}
