package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"streamcaption/packages/go/backend/asr"
	"streamcaption/packages/go/backend/ingestion"
	"streamcaption/packages/go/backend/media"
	"streamcaption/packages/go/backend/session"
	"streamcaption/packages/go/backend/status"
)

const defaultReadSize = 64 * 1024

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(sessionID string, event status.Event)
}

// Config wires the runner's collaborators.
type Config struct {
	Resolver ingestion.Resolver
	Decoder  ingestion.Decoder
	Engine   asr.Engine
	Hub      Publisher
	Window   media.WindowConfig
	// ReadSize is the decoder read buffer size. Defaults to 64 KiB.
	ReadSize int
	Logger   *zap.SugaredLogger
}

// Runner drives a session from resolution through transcription to its end.
type Runner struct {
	resolver ingestion.Resolver
	decoder  ingestion.Decoder
	engine   asr.Engine
	hub      Publisher
	window   media.WindowConfig
	readSize int
	logger   *zap.SugaredLogger
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("pipeline: resolver is required")
	}
	if cfg.Decoder == nil {
		return nil, errors.New("pipeline: decoder is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("pipeline: engine is required")
	}
	if cfg.Hub == nil {
		return nil, errors.New("pipeline: publisher is required")
	}
	cfg.Window = cfg.Window.Normalize()
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = defaultReadSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	return &Runner{
		resolver: cfg.Resolver,
		decoder:  cfg.Decoder,
		engine:   cfg.Engine,
		hub:      cfg.Hub,
		window:   cfg.Window,
		readSize: cfg.ReadSize,
		logger:   cfg.Logger,
	}, nil
}

// Run executes sess until it ends and performs terminal cleanup: the decoder
// is terminated and reaped, release is called to free the admission slot, and
// a single "Stream ended." status is published.
func (r *Runner) Run(ctx context.Context, sess *session.Session, release func()) session.EndReason {
	id := sess.ID()
	started := time.Now()

	reason := r.run(ctx, sess)

	if stream := sess.End(reason); stream != nil {
		if stream.Alive() {
			if err := stream.Terminate(); err != nil {
				r.logger.Debugw("terminate decoder", "error", err, "sessionID", id)
			}
		}
		if err := stream.Close(); err != nil {
			r.logger.Debugw("reap decoder", "error", err, "sessionID", id)
		}
		if tail, ok := stream.(interface{ Stderr() string }); ok && reason == session.EndError {
			if msg := tail.Stderr(); msg != "" {
				r.logger.Errorw("decoder stderr", "sessionID", id, "stderr", msg)
			}
		}
		m := stream.Metrics()
		r.logger.Infow("decoder released",
			"sessionID", id,
			"bytesRead", m.BytesRead,
			"reads", m.Reads,
			"readErrors", m.ReadErrors,
		)
	}

	if release != nil {
		release()
	}
	r.hub.Publish(id, status.Status(status.MsgEnded))

	r.logger.Infow("session ended",
		"sessionID", id,
		"reason", string(reason),
		"cues", sess.Snapshot().CueCount,
		"elapsed", time.Since(started).String(),
	)
	return reason
}

func (r *Runner) run(ctx context.Context, sess *session.Session) session.EndReason {
	id := sess.ID()
	cfg := sess.Config()

	if err := sess.BeginResolving(); err != nil {
		r.fail(id, err)
		return session.EndError
	}

	resolved, err := r.resolver.Resolve(ctx, cfg.StreamRef)
	if err != nil {
		if r.stopping(ctx, sess, nil) {
			return session.EndStopped
		}
		r.fail(id, fmt.Errorf("resolve %s: %w", cfg.StreamRef, err))
		return session.EndError
	}
	if r.stopping(ctx, sess, nil) {
		return session.EndStopped
	}

	title := resolved.Title
	if title == "" {
		title = cfg.StreamRef
	}
	r.logger.Infow("stream resolved", "sessionID", id, "title", title, "live", resolved.IsLive)
	r.hub.Publish(id, status.Resolved(title))

	stream, err := r.decoder.Start(ctx, resolved.DirectURL)
	if err != nil {
		r.fail(id, err)
		return session.EndError
	}
	if err := sess.BeginTranscribing(title, stream); err != nil {
		_ = stream.Terminate()
		_ = stream.Close()
		if errors.Is(err, session.ErrStopRequested) {
			return session.EndStopped
		}
		r.fail(id, err)
		return session.EndError
	}
	r.hub.Publish(id, status.Status(status.MsgTranscribing))

	return r.transcribe(ctx, sess, stream)
}

func (r *Runner) transcribe(ctx context.Context, sess *session.Session, stream ingestion.Stream) session.EndReason {
	id := sess.ID()
	cfg := sess.Config()
	opts := asr.Options{
		Language:  cfg.SourceLanguage,
		Task:      cfg.Task,
		VADFilter: true,
		BeamSize:  1,
	}
	windowSeconds := float64(r.window.ChunkSeconds)
	assembler := media.NewAssembler(r.window)
	buf := make([]byte, r.readSize)
	base := 0.0

	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			for _, chunk := range assembler.Push(buf[:n]) {
				samples, err := media.PCM16ToFloat32(chunk.PCMData)
				if err != nil {
					r.fail(id, err)
					return session.EndError
				}
				segments, err := r.engine.Transcribe(ctx, samples, opts)
				if err != nil {
					if r.stopping(ctx, sess, stream) {
						return session.EndStopped
					}
					r.fail(id, err)
					return session.EndError
				}
				if cue, ok := BuildCue(segments, base, windowSeconds); ok {
					sess.AppendCue(cue)
					r.hub.Publish(id, status.CueEvent(cue))
				}
				base += windowSeconds
			}
		}

		if readErr == nil {
			continue
		}
		if r.stopping(ctx, sess, stream) {
			return session.EndStopped
		}
		if errors.Is(readErr, io.EOF) {
			if dropped := assembler.Buffered(); dropped > 0 {
				r.logger.Infow("discarding partial window", "sessionID", id, "bytes", dropped)
			}
			return session.EndCompleted
		}
		r.fail(id, fmt.Errorf("read decoder output: %w", readErr))
		return session.EndError
	}
}

// stopping reports whether the session is winding down on request rather than
// failing.
func (r *Runner) stopping(ctx context.Context, sess *session.Session, stream ingestion.Stream) bool {
	if ctx.Err() != nil || sess.StopRequested() {
		return true
	}
	return stream != nil && stream.Stopped()
}

func (r *Runner) fail(sessionID string, err error) {
	r.logger.Errorw("session failed", "error", err, "sessionID", sessionID)
	r.hub.Publish(sessionID, status.Error(err.Error()))
}
