package asr

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StubEngineConfig configures the stub engine behavior.
type StubEngineConfig struct {
	// ProcessingDelay simulates recognition time per window.
	ProcessingDelay time.Duration
	// Transcripts maps call indices to predetermined text. Indices missing from
	// the map produce "Chunk N transcribed." unless Silent is set.
	Transcripts map[int]string
	// Silent makes every call without a configured transcript return no segments.
	Silent bool
	// WindowSeconds bounds the reported segment end offset.
	WindowSeconds float64
	// ErrorAfter causes an error on call N+1 (0 = no error).
	ErrorAfter int
}

// DefaultStubEngineConfig returns sensible defaults for development.
func DefaultStubEngineConfig() *StubEngineConfig {
	return &StubEngineConfig{
		ProcessingDelay: 100 * time.Millisecond,
		WindowSeconds:   8,
		Transcripts: map[int]string{
			0: "Hello world.",
			1: "This is a test.",
			2: "Welcome to the stream.",
		},
	}
}

// StubEngine is a deterministic Engine used for development and tests.
type StubEngine struct {
	config *StubEngineConfig

	mu    sync.Mutex
	calls int
	opts  []Options
}

// NewStubEngine creates a new stub engine with the given config.
func NewStubEngine(config *StubEngineConfig) *StubEngine {
	if config == nil {
		config = DefaultStubEngineConfig()
	}
	return &StubEngine{config: config}
}

// Transcribe returns the configured text for this call as a single segment.
func (s *StubEngine) Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error) {
	s.mu.Lock()
	index := s.calls
	s.calls++
	s.opts = append(s.opts, opts)
	s.mu.Unlock()

	if s.config.ProcessingDelay > 0 {
		select {
		case <-time.After(s.config.ProcessingDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if s.config.ErrorAfter > 0 && index >= s.config.ErrorAfter {
		return nil, fmt.Errorf("%w: stub failure on call %d", ErrEngine, index)
	}

	text, ok := s.config.Transcripts[index]
	if !ok {
		if s.config.Silent {
			return nil, nil
		}
		text = fmt.Sprintf("Chunk %d transcribed.", index)
	}
	if text == "" {
		return nil, nil
	}

	end := s.config.WindowSeconds
	if end <= 0 {
		end = float64(len(samples)) / 16000
	}
	return []Segment{{Text: text, Start: 0, End: end}}, nil
}

// Calls returns how many windows have been transcribed.
func (s *StubEngine) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastOptions returns the options of the most recent call.
func (s *StubEngine) LastOptions() (Options, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.opts) == 0 {
		return Options{}, false
	}
	return s.opts[len(s.opts)-1], true
}

// Health returns the health status of the stub engine.
func (s *StubEngine) Health() HealthStatus {
	return HealthStatus{
		Healthy:     true,
		Message:     "stub engine ready",
		ModelLoaded: true,
	}
}

var _ Engine = (*StubEngine)(nil)
