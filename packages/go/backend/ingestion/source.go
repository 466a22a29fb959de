package ingestion

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	// ErrResolution reports that a stream reference has no playable audio.
	ErrResolution = errors.New("stream not playable")
	// ErrDecodeSpawn reports that the decode process could not be started.
	ErrDecodeSpawn = errors.New("decode process failed to start")
)

// Media describes a resolved stream reference.
type Media struct {
	DirectURL string
	IsLive    bool
	Title     string
	ID        string
	// Duration in seconds, nil for live streams or when unknown.
	Duration *float64
}

// Resolver turns a user supplied stream reference into a direct media URL.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (Media, error)
}

// Stream is a running decode process emitting mono 16 kHz signed 16-bit
// little-endian PCM until the source is exhausted or the stream is terminated.
type Stream interface {
	io.Reader
	// Terminate asks the decoder to stop. It is idempotent.
	Terminate() error
	// Stopped reports whether Terminate has been called.
	Stopped() bool
	// Alive reports whether the decoder is still running.
	Alive() bool
	// Close releases the decoder, forcing it down if it does not exit.
	Close() error
	Metrics() StreamMetrics
}

// Decoder spawns decode processes.
type Decoder interface {
	Start(ctx context.Context, directURL string) (Stream, error)
}

// PassthroughResolver treats the reference itself as the media URL. It serves
// local files and direct media links that need no extraction.
type PassthroughResolver struct{}

// Resolve returns the reference unchanged.
func (PassthroughResolver) Resolve(ctx context.Context, ref string) (Media, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Media{}, ErrResolution
	}
	if err := ctx.Err(); err != nil {
		return Media{}, err
	}
	title := ref
	if i := strings.LastIndexAny(ref, "/\\"); i >= 0 && i < len(ref)-1 {
		title = ref[i+1:]
	}
	return Media{DirectURL: ref, Title: title, ID: title}, nil
}

var _ Resolver = PassthroughResolver{}
