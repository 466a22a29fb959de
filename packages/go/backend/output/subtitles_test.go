package output

import (
	"bytes"
	"testing"

	"streamcaption/packages/go/backend/session"
)

var testCues = []session.Cue{
	{Text: "Hola mundo.", Start: 0, End: 2},
	{Text: "Esto es una prueba.", Start: 3661.5, End: 3669.25},
}

func TestWriteSRT(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, FormatSRT, testCues); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := "1\n00:00:00,000 --> 00:00:02,000\nHola mundo.\n\n" +
		"2\n01:01:01,500 --> 01:01:09,250\nEsto es una prueba.\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected SRT output:\n%s", buf.String())
	}
}

func TestWriteVTT(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, FormatVTT, testCues[:1]); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := "WEBVTT\n\n1\n00:00:00.000 --> 00:00:02.000\nHola mundo.\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected VTT output:\n%s", buf.String())
	}
}

func TestWriteEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, FormatSRT, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty output, got %q", buf.String())
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	if f, err := ParseFormat(" VTT "); err != nil || f != FormatVTT {
		t.Fatalf("expected vtt, got %q %v", f, err)
	}
	if _, err := ParseFormat("ass"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if err := Write(&bytes.Buffer{}, Format("ass"), testCues); err == nil {
		t.Fatal("expected Write to reject unsupported format")
	}
	if FormatSRT.ContentType() == FormatVTT.ContentType() {
		t.Fatal("expected distinct content types")
	}
}

func TestWriteCue(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteCue(&buf, FormatSRT, 7, session.Cue{Text: "late", Start: 56, End: 64}); err != nil {
		t.Fatalf("WriteCue failed: %v", err)
	}
	if want := "7\n00:00:56,000 --> 00:01:04,000\nlate\n\n"; buf.String() != want {
		t.Fatalf("unexpected cue block: %q", buf.String())
	}
}
