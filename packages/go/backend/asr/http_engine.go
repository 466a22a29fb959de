package asr

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"streamcaption/packages/go/backend/media"
)

// HTTPEngineConfig configures a faster-whisper compatible HTTP server.
type HTTPEngineConfig struct {
	// BaseURL is the server root, e.g. http://127.0.0.1:8000.
	BaseURL string
	// Model is the model size or profile name passed to the server.
	Model string
	// SampleRate of the samples handed to Transcribe. Defaults to 16000.
	SampleRate int
	// Timeout bounds a single request. Zero disables the timeout.
	Timeout time.Duration
	// Client overrides the HTTP client.
	Client *http.Client
}

// HTTPEngine uploads each window as a WAV file and parses verbose_json
// segments from the response.
type HTTPEngine struct {
	cfg    HTTPEngineConfig
	client *http.Client
}

// NewHTTPEngine validates the configuration and constructs the engine.
func NewHTTPEngine(cfg HTTPEngineConfig) (*HTTPEngine, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("engine base URL is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Model = ResolveModel(cfg.Model)
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = media.DefaultSampleRate
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPEngine{cfg: cfg, client: client}, nil
}

type verboseResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe sends one window to the server.
func (e *HTTPEngine) Transcribe(ctx context.Context, samples []float32, opts Options) ([]Segment, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"model":           e.cfg.Model,
		"response_format": "verbose_json",
		"vad_filter":      strconv.FormatBool(opts.VADFilter),
	}
	if opts.BeamSize > 0 {
		fields["beam_size"] = strconv.Itoa(opts.BeamSize)
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("%w: write field %s: %v", ErrEngine, key, err)
		}
	}

	fw, err := mw.CreateFormFile("file", "window.wav")
	if err != nil {
		return nil, fmt.Errorf("%w: create form file: %v", ErrEngine, err)
	}
	if err := writeWAV(fw, media.Float32ToPCM16(samples), e.cfg.SampleRate); err != nil {
		return nil, fmt.Errorf("%w: encode wav: %v", ErrEngine, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: close multipart: %v", ErrEngine, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint(opts.Task), &body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrEngine, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: http %d: %s", ErrEngine, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var parsed verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrEngine, err)
	}

	segments := make([]Segment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		segments = append(segments, Segment{Text: s.Text, Start: s.Start, End: s.End})
	}
	// Some servers omit segments for short inputs and only return text.
	if len(segments) == 0 && strings.TrimSpace(parsed.Text) != "" {
		segments = append(segments, Segment{Text: parsed.Text})
	}
	return segments, nil
}

func (e *HTTPEngine) endpoint(task Task) string {
	if task == TaskTranslate {
		return e.cfg.BaseURL + "/v1/audio/translations"
	}
	return e.cfg.BaseURL + "/v1/audio/transcriptions"
}

// writeWAV writes a canonical 44 byte RIFF header followed by mono 16-bit PCM.
func writeWAV(w io.Writer, pcm []byte, sampleRate int) error {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(byteRate),
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}

var _ Engine = (*HTTPEngine)(nil)
