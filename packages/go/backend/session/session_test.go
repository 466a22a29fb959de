package session

import (
	"errors"
	"fmt"
	"testing"

	"streamcaption/packages/go/backend/asr"
	"streamcaption/packages/go/backend/ingestion"
)

type fakeStream struct {
	terminated int
}

func (f *fakeStream) Read([]byte) (int, error) { return 0, nil }
func (f *fakeStream) Terminate() error { f.terminated++; return nil }
func (f *fakeStream) Stopped() bool { return f.terminated > 0 }
func (f *fakeStream) Alive() bool { return f.terminated == 0 }
func (f *fakeStream) Close() error { return nil }
func (f *fakeStream) Metrics() ingestion.StreamMetrics { return ingestion.StreamMetrics{} }

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	s := New(Config{StreamRef: "https://youtu.be/abc", Task: asr.TaskTranslate})
	if s.ID() == "" {
		t.Fatal("expected session id")
	}
	if s.State() != StateIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}

	if err := s.BeginResolving(); err != nil {
		t.Fatalf("BeginResolving failed: %v", err)
	}
	if s.Decoder() != nil {
		t.Fatal("decoder must be nil while resolving")
	}

	stream := &fakeStream{}
	if err := s.BeginTranscribing("Live Talk", stream); err != nil {
		t.Fatalf("BeginTranscribing failed: %v", err)
	}
	if s.State() != StateTranscribing || s.Decoder() == nil {
		t.Fatalf("expected transcribing with decoder, got %s", s.State())
	}
	if s.Snapshot().Title != "Live Talk" {
		t.Fatalf("expected title to be recorded, got %q", s.Snapshot().Title)
	}

	detached := s.End(EndCompleted)
	if detached != stream {
		t.Fatal("End should hand back the attached decoder")
	}
	if s.State() != StateEnded || s.EndReason() != EndCompleted {
		t.Fatalf("expected ended/completed, got %s/%s", s.State(), s.EndReason())
	}
	if s.Decoder() != nil {
		t.Fatal("decoder must be nil once ended")
	}

	if again := s.End(EndError); again != nil {
		t.Fatal("second End should be a no-op")
	}
	if s.EndReason() != EndCompleted {
		t.Fatalf("end reason must not change, got %s", s.EndReason())
	}
}

func TestSessionTransitionsAreMonotonic(t *testing.T) {
	t.Parallel()

	s := New(Config{StreamRef: "a"})
	if err := s.BeginTranscribing("t", &fakeStream{}); err == nil {
		t.Fatal("expected error transcribing from idle")
	}

	if err := s.BeginResolving(); err != nil {
		t.Fatalf("BeginResolving failed: %v", err)
	}
	s.End(EndError)

	if err := s.BeginResolving(); err == nil {
		t.Fatal("expected error re-entering resolving")
	}
	if err := s.BeginTranscribing("t", &fakeStream{}); err == nil {
		t.Fatal("expected error re-entering transcribing")
	}
}

func TestSessionStopWhileResolving(t *testing.T) {
	t.Parallel()

	s := New(Config{StreamRef: "a"})
	if err := s.BeginResolving(); err != nil {
		t.Fatalf("BeginResolving failed: %v", err)
	}
	if err := s.RequestStop(); err != nil {
		t.Fatalf("RequestStop failed: %v", err)
	}

	err := s.BeginTranscribing("t", &fakeStream{})
	if !errors.Is(err, ErrStopRequested) {
		t.Fatalf("expected ErrStopRequested, got %v", err)
	}
	if s.State() != StateResolving {
		t.Fatalf("state must be unchanged, got %s", s.State())
	}
}

func TestSessionStopWhileTranscribingTerminatesDecoder(t *testing.T) {
	t.Parallel()

	s := New(Config{StreamRef: "a"})
	_ = s.BeginResolving()
	stream := &fakeStream{}
	if err := s.BeginTranscribing("t", stream); err != nil {
		t.Fatalf("BeginTranscribing failed: %v", err)
	}

	if err := s.RequestStop(); err != nil {
		t.Fatalf("RequestStop failed: %v", err)
	}
	if stream.terminated != 1 {
		t.Fatalf("expected decoder terminated once, got %d", stream.terminated)
	}
	if s.State() != StateTranscribing {
		t.Fatalf("stop must not force a transition, got %s", s.State())
	}
}

func TestSessionDefaultsRecentCap(t *testing.T) {
	t.Parallel()

	s := New(Config{StreamRef: "a"})
	if s.Config().RecentCap != DefaultRecentCap {
		t.Fatalf("expected default cap %d, got %d", DefaultRecentCap, s.Config().RecentCap)
	}

	for i := 0; i < 3; i++ {
		s.AppendCue(Cue{Text: fmt.Sprintf("cue %d", i), Start: float64(i * 8), End: float64(i*8 + 8)})
	}
	if s.LastText() != "cue 2" {
		t.Fatalf("expected last text %q, got %q", "cue 2", s.LastText())
	}
	if s.Snapshot().CueCount != 3 {
		t.Fatalf("expected 3 cues, got %d", s.Snapshot().CueCount)
	}
}
