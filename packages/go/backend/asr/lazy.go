package asr

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Lazy defers engine construction until the first recognition call and then
// reuses the same instance for every session. Construction errors are cached.
type Lazy struct {
	build func() (Engine, error)

	once   sync.Once
	loaded atomic.Bool
	engine Engine
	err    error
}

// NewLazy wraps a constructor. It is not invoked until Get or Transcribe is
// called.
func NewLazy(build func() (Engine, error)) *Lazy {
	return &Lazy{build: build}
}

// Get constructs the engine on first use.
func (l *Lazy) Get() (Engine, error) {
	l.once.Do(func() {
		l.engine, l.err = l.build()
		if l.err == nil && l.engine == nil {
			l.err = fmt.Errorf("%w: constructor returned no engine", ErrEngine)
		}
		l.loaded.Store(l.err == nil)
	})
	return l.engine, l.err
}

// Transcribe implements Engine by delegating to the lazily built instance.
func (l *Lazy) Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error) {
	engine, err := l.Get()
	if err != nil {
		return nil, fmt.Errorf("load engine: %w", err)
	}
	return engine.Transcribe(ctx, samples, opts)
}

// Health reports whether the engine has been built, without building it.
func (l *Lazy) Health() HealthStatus {
	if l.loaded.Load() {
		return HealthStatus{Healthy: true, Message: "engine loaded", ModelLoaded: true}
	}
	return HealthStatus{Healthy: true, Message: "engine loads on first use"}
}

var _ Engine = (*Lazy)(nil)
