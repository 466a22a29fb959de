package ingestion

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FileConfig configures the file-backed decoder.
type FileConfig struct {
	// ChunkSize caps the number of bytes returned by a single Read. Defaults to
	// 64 KiB when zero.
	ChunkSize int
	// EmitInterval throttles reads to simulate realtime playback. Disabled when
	// zero.
	EmitInterval time.Duration
}

// FileDecoder replays a local file that already holds raw mono 16 kHz s16le
// PCM. It stands in for ffmpeg in development and tests.
type FileDecoder struct {
	cfg FileConfig
}

// NewFileDecoder constructs a FileDecoder.
func NewFileDecoder(cfg FileConfig) (*FileDecoder, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 64 * 1024
	}
	if cfg.EmitInterval < 0 {
		return nil, errors.New("emit interval cannot be negative")
	}
	return &FileDecoder{cfg: cfg}, nil
}

// Start opens the file named by directURL. A file:// prefix is accepted.
func (d *FileDecoder) Start(ctx context.Context, directURL string) (Stream, error) {
	path := strings.TrimPrefix(directURL, "file://")
	if path == "" {
		return nil, fmt.Errorf("%w: file path is required", ErrDecodeSpawn)
	}
	// Normalize the path for the current platform to improve logging parity.
	path = filepath.Clean(filepath.FromSlash(path))

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeSpawn, err)
	}

	s := &fileStream{
		ctx:      ctx,
		cfg:      d.cfg,
		file:     file,
		stop:     make(chan struct{}),
		counters: &streamCounters{},
	}
	s.reader = &countingReader{r: bufio.NewReader(file), counters: s.counters}
	return s, nil
}

type fileStream struct {
	ctx      context.Context
	cfg      FileConfig
	file     *os.File
	reader   io.Reader
	stop     chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool
	eof      atomic.Bool
	reads    int
	counters *streamCounters
}

func (s *fileStream) Read(p []byte) (int, error) {
	if s.reads > 0 && s.cfg.EmitInterval > 0 {
		select {
		case <-time.After(s.cfg.EmitInterval):
		case <-s.stop:
		case <-s.ctx.Done():
		}
	}
	s.reads++

	// A terminated decoder reads as exhausted, like a killed process pipe.
	select {
	case <-s.stop:
		return 0, io.EOF
	case <-s.ctx.Done():
		return 0, io.EOF
	default:
	}

	if len(p) > s.cfg.ChunkSize {
		p = p[:s.cfg.ChunkSize]
	}
	n, err := s.reader.Read(p)
	if errors.Is(err, io.EOF) {
		s.eof.Store(true)
	}
	return n, err
}

func (s *fileStream) Terminate() error {
	s.stopped.Store(true)
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *fileStream) Stopped() bool {
	return s.stopped.Load()
}

func (s *fileStream) Alive() bool {
	return !s.stopped.Load() && !s.eof.Load()
}

func (s *fileStream) Close() error {
	_ = s.Terminate()
	return s.file.Close()
}

func (s *fileStream) Metrics() StreamMetrics {
	return s.counters.snapshot()
}

var _ Decoder = (*FileDecoder)(nil)
