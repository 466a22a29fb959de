package ingestion

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFFmpegDecoderArgs(t *testing.T) {
	t.Parallel()

	decoder := NewFFmpegDecoder(FFmpegConfig{})
	got := decoder.Args("https://cdn.example.com/audio")
	expected := []string{
		"-nostdin", "-loglevel", "error",
		"-i", "https://cdn.example.com/audio", "-vn",
		"-ac", "1", "-ar", "16000",
		"-f", "s16le", "pipe:1",
	}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected args:\n got %q\nwant %q", got, expected)
	}
}

func TestFFmpegDecoderSpawnFailure(t *testing.T) {
	t.Parallel()

	decoder := NewFFmpegDecoder(FFmpegConfig{Path: filepath.Join(t.TempDir(), "no-such-ffmpeg")})
	_, err := decoder.Start(context.Background(), "https://cdn.example.com/audio")
	if !errors.Is(err, ErrDecodeSpawn) {
		t.Fatalf("expected ErrDecodeSpawn, got %v", err)
	}
}

func TestFFmpegDecoderRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	_, err := NewFFmpegDecoder(FFmpegConfig{}).Start(context.Background(), "")
	if !errors.Is(err, ErrDecodeSpawn) {
		t.Fatalf("expected ErrDecodeSpawn, got %v", err)
	}
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	t.Parallel()

	buf := &tailBuffer{limit: 4}
	_, _ = buf.Write([]byte("abc"))
	_, _ = buf.Write([]byte("defg"))
	if got := buf.String(); got != "defg" {
		t.Fatalf("expected tail %q, got %q", "defg", got)
	}
}
