package media

import "time"

// Default PCM layout produced by the decode process: 16 kHz mono signed 16-bit
// little-endian samples.
const (
	DefaultSampleRate     = 16000
	DefaultBytesPerSample = 2
	DefaultChunkSeconds   = 8
)

// WindowConfig describes the fixed-size audio windows handed to the engine.
type WindowConfig struct {
	// SampleRate is the audio sample rate in Hz.
	SampleRate int
	// BytesPerSample is the width of one mono sample in bytes.
	BytesPerSample int
	// ChunkSeconds is the nominal duration of one window.
	ChunkSeconds int
}

// DefaultWindowConfig returns the 8 second / 16 kHz / 16-bit layout.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		SampleRate:     DefaultSampleRate,
		BytesPerSample: DefaultBytesPerSample,
		ChunkSeconds:   DefaultChunkSeconds,
	}
}

// WindowBytes is the number of raw bytes in one window.
func (c WindowConfig) WindowBytes() int {
	return c.SampleRate * c.BytesPerSample * c.ChunkSeconds
}

// Duration is the nominal playback duration of one window.
func (c WindowConfig) Duration() time.Duration {
	return time.Duration(c.ChunkSeconds) * time.Second
}

// Normalize fills zero fields with the defaults.
func (c WindowConfig) Normalize() WindowConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.BytesPerSample <= 0 {
		c.BytesPerSample = DefaultBytesPerSample
	}
	if c.ChunkSeconds <= 0 {
		c.ChunkSeconds = DefaultChunkSeconds
	}
	return c
}

// AudioChunk is one complete window of raw PCM ready for recognition.
type AudioChunk struct {
	// Index is the zero-based position of the window in the stream.
	Index int64 `json:"index"`
	// Offset is the nominal start of the window, Index * ChunkSeconds.
	Offset time.Duration `json:"offset"`
	// SampleRate is the audio sample rate in Hz.
	SampleRate int `json:"sampleRate"`
	// PCMData holds exactly one window of little-endian 16-bit samples.
	PCMData []byte `json:"pcmData"`
	// Duration of this audio chunk.
	Duration time.Duration `json:"duration"`
}
