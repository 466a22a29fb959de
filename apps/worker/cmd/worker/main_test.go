package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"streamcaption/packages/go/backend/session"
	"streamcaption/packages/go/backend/status"
)

func TestGetRedisAddrDefault(t *testing.T) {
	t.Setenv("WORKER_REDIS_ADDR", "")
	if got := getRedisAddr(); got != defaultRedisAddr {
		t.Fatalf("expected default redis addr, got %s", got)
	}
}

func TestFollowerNumbersCuesPerSession(t *testing.T) {
	var out bytes.Buffer
	f := &follower{out: &out, logger: zaptest.NewLogger(t).Sugar()}

	events := make(chan status.Envelope, 8)
	events <- status.Envelope{SessionID: "a", Event: status.Resolved("Talk")}
	events <- status.Envelope{SessionID: "a", Event: status.CueEvent(session.Cue{Text: "one", Start: 0, End: 8})}
	events <- status.Envelope{SessionID: "a", Event: status.CueEvent(session.Cue{Text: "two", Start: 8, End: 16})}
	events <- status.Envelope{SessionID: "a", Event: status.Status(status.MsgEnded)}
	events <- status.Envelope{SessionID: "b", Event: status.CueEvent(session.Cue{Text: "fresh", Start: 0, End: 8})}
	events <- status.Envelope{SessionID: "b", Event: status.Error("boom")}
	close(events)

	if err := f.Run(context.Background(), events); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := "1\n00:00:00,000 --> 00:00:08,000\none\n\n" +
		"2\n00:00:08,000 --> 00:00:16,000\ntwo\n\n" +
		"1\n00:00:00,000 --> 00:00:08,000\nfresh\n\n"
	if out.String() != want {
		t.Fatalf("unexpected transcript:\n%s", out.String())
	}
}

func TestFollowerReadsFromMirror(t *testing.T) {
	srv := miniredis.RunT(t)
	mirror, err := status.NewRedisMirror(srv.Addr(), "")
	if err != nil {
		t.Fatalf("NewRedisMirror failed: %v", err)
	}
	defer mirror.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := mirror.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	out := &signalWriter{wrote: make(chan struct{}, 1)}
	f := &follower{out: out, logger: zaptest.NewLogger(t).Sugar()}
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, events) }()

	env := status.Envelope{SessionID: "s", Event: status.CueEvent(session.Cue{Text: "mirrored", Start: 0, End: 8}), Timestamp: time.Now().UTC()}
	if err := mirror.Publish(ctx, env); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-out.wrote:
	case <-ctx.Done():
		t.Fatal("timed out waiting for transcript write")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out.buf.String(), "mirrored") {
		t.Fatalf("expected mirrored cue in transcript, got %q", out.buf.String())
	}
}

type signalWriter struct {
	buf   bytes.Buffer
	wrote chan struct{}
}

func (w *signalWriter) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	select {
	case w.wrote <- struct{}{}:
	default:
	}
	return n, err
}
