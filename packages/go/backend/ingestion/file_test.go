package ingestion

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileDecoderStreamsChunks(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "sample.pcm")
	if err := os.WriteFile(filePath, []byte("abcdefghijklmnopqrstuvwxyz"), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	decoder, err := NewFileDecoder(FileConfig{ChunkSize: 8})
	if err != nil {
		t.Fatalf("NewFileDecoder returned error: %v", err)
	}

	stream, err := decoder.Start(context.Background(), "file://"+filePath)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer func() { _ = stream.Close() }()

	var received []string
	buf := make([]byte, 64)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			received = append(received, string(buf[:n]))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
	}

	expected := []string{"abcdefgh", "ijklmnop", "qrstuvwx", "yz"}
	if len(received) != len(expected) {
		t.Fatalf("expected %d chunks, got %d: %q", len(expected), len(received), received)
	}
	for i, payload := range received {
		if payload != expected[i] {
			t.Fatalf("chunk %d mismatch: expected %q got %q", i, expected[i], payload)
		}
	}

	if stream.Alive() {
		t.Fatal("expected stream to be exhausted")
	}
	if stream.Stopped() {
		t.Fatal("exhausted stream must not report stopped")
	}
	if metrics := stream.Metrics(); metrics.BytesRead != 26 {
		t.Fatalf("expected 26 bytes read, got %d", metrics.BytesRead)
	}
}

func TestFileDecoderTerminateEndsStream(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "sample.pcm")
	if err := os.WriteFile(filePath, make([]byte, 1024), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	decoder, err := NewFileDecoder(FileConfig{ChunkSize: 16, EmitInterval: time.Hour})
	if err != nil {
		t.Fatalf("NewFileDecoder returned error: %v", err)
	}
	stream, err := decoder.Start(context.Background(), filePath)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer func() { _ = stream.Close() }()

	buf := make([]byte, 16)
	if _, err := stream.Read(buf); err != nil {
		t.Fatalf("first read failed: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = stream.Terminate()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := stream.Read(buf)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected EOF after terminate, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read did not observe termination")
	}

	if !stream.Stopped() {
		t.Fatal("expected stream to report stopped")
	}
	if err := stream.Terminate(); err != nil {
		t.Fatalf("second terminate should be a no-op, got %v", err)
	}
}

func TestFileDecoderMissingFile(t *testing.T) {
	decoder, err := NewFileDecoder(FileConfig{})
	if err != nil {
		t.Fatalf("NewFileDecoder returned error: %v", err)
	}
	_, err = decoder.Start(context.Background(), filepath.Join(t.TempDir(), "missing.pcm"))
	if !errors.Is(err, ErrDecodeSpawn) {
		t.Fatalf("expected ErrDecodeSpawn, got %v", err)
	}
}

func TestNewFileDecoderRejectsNegativeInterval(t *testing.T) {
	if _, err := NewFileDecoder(FileConfig{EmitInterval: -time.Second}); err == nil {
		t.Fatal("expected error for negative emit interval")
	}
}
