package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// FFmpegConfig configures the ffmpeg decoder.
type FFmpegConfig struct {
	// Path to the ffmpeg binary. Defaults to "ffmpeg".
	Path string
	// SampleRate of the emitted PCM. Defaults to 16000.
	SampleRate int
	// KillTimeout is how long Close waits for a terminated process before
	// killing it. Defaults to 5s.
	KillTimeout time.Duration
}

// FFmpegDecoder decodes any ffmpeg-readable input to raw mono s16le PCM on
// stdout.
type FFmpegDecoder struct {
	cfg FFmpegConfig
}

// NewFFmpegDecoder applies defaults to cfg.
func NewFFmpegDecoder(cfg FFmpegConfig) *FFmpegDecoder {
	if cfg.Path == "" {
		cfg.Path = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = 5 * time.Second
	}
	return &FFmpegDecoder{cfg: cfg}
}

// Args returns the ffmpeg argument list for input.
func (d *FFmpegDecoder) Args(input string) []string {
	return []string{
		"-nostdin", "-loglevel", "error",
		"-i", input, "-vn",
		"-ac", "1", "-ar", fmt.Sprint(d.cfg.SampleRate),
		"-f", "s16le", "pipe:1",
	}
}

// Start spawns ffmpeg for directURL.
func (d *FFmpegDecoder) Start(ctx context.Context, directURL string) (Stream, error) {
	if directURL == "" {
		return nil, fmt.Errorf("%w: empty input URL", ErrDecodeSpawn)
	}

	// A plain pipe instead of StdoutPipe lets the process be reaped while the
	// read side is still in use.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create pipe: %v", ErrDecodeSpawn, err)
	}

	cmd := exec.CommandContext(ctx, d.cfg.Path, d.Args(directURL)...)
	cmd.Stdout = pw
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("%w: %v", ErrDecodeSpawn, err)
	}
	_ = pw.Close()

	s := &ffmpegStream{
		cmd:         cmd,
		pipe:        pr,
		stderr:      stderr,
		done:        make(chan struct{}),
		killTimeout: d.cfg.KillTimeout,
		counters:    &streamCounters{},
	}
	s.reader = &countingReader{r: pr, counters: s.counters}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.done)
	}()
	return s, nil
}

type ffmpegStream struct {
	cmd         *exec.Cmd
	pipe        *os.File
	reader      *countingReader
	stderr      *tailBuffer
	done        chan struct{}
	waitErr     error
	stopped     atomic.Bool
	closeOnce   sync.Once
	killTimeout time.Duration
	counters    *streamCounters
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *ffmpegStream) Terminate() error {
	s.stopped.Store(true)
	if !s.Alive() {
		return nil
	}
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (s *ffmpegStream) Stopped() bool {
	return s.stopped.Load()
}

func (s *ffmpegStream) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *ffmpegStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		select {
		case <-s.done:
		case <-time.After(s.killTimeout):
			if killErr := s.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
				err = killErr
			}
			<-s.done
		}
		if closeErr := s.pipe.Close(); err == nil {
			err = closeErr
		}
	})
	return err
}

func (s *ffmpegStream) Metrics() StreamMetrics {
	return s.counters.snapshot()
}

// Stderr returns the tail of ffmpeg's diagnostic output once it has exited.
func (s *ffmpegStream) Stderr() string {
	select {
	case <-s.done:
		return s.stderr.String()
	default:
		return ""
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

var _ Decoder = (*FFmpegDecoder)(nil)
