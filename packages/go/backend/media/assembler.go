package media

import "time"

// Assembler accumulates raw decoder output and slices it into fixed-size
// windows. Bytes beyond the last complete window stay buffered until more data
// arrives. An Assembler is owned by a single goroutine.
type Assembler struct {
	cfg  WindowConfig
	size int
	buf  []byte
	next int64
}

// NewAssembler creates an assembler for the given window layout. Zero fields
// fall back to the defaults.
func NewAssembler(cfg WindowConfig) *Assembler {
	cfg = cfg.Normalize()
	return &Assembler{
		cfg:  cfg,
		size: cfg.WindowBytes(),
		buf:  make([]byte, 0, cfg.WindowBytes()*2),
	}
}

// Config returns the effective window layout.
func (a *Assembler) Config() WindowConfig {
	return a.cfg
}

// Push appends p to the buffer and returns every window that is now complete,
// in stream order. The returned chunks own their PCM data.
func (a *Assembler) Push(p []byte) []AudioChunk {
	a.buf = append(a.buf, p...)

	var chunks []AudioChunk
	for len(a.buf) >= a.size {
		pcm := make([]byte, a.size)
		copy(pcm, a.buf[:a.size])
		// Shift the remainder to the front so the backing array is reused.
		a.buf = a.buf[:copy(a.buf, a.buf[a.size:])]

		chunks = append(chunks, AudioChunk{
			Index:      a.next,
			Offset:     time.Duration(a.next) * a.cfg.Duration(),
			SampleRate: a.cfg.SampleRate,
			PCMData:    pcm,
			Duration:   a.cfg.Duration(),
		})
		a.next++
	}
	return chunks
}

// Buffered reports how many bytes are waiting for the next window.
func (a *Assembler) Buffered() int {
	return len(a.buf)
}

// Windows reports how many windows have been emitted so far.
func (a *Assembler) Windows() int64 {
	return a.next
}
