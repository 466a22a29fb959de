package status

import (
	"encoding/json"
	"testing"

	"streamcaption/packages/go/backend/session"
)

func TestEventJSONShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		event Event
		want  string
	}{
		{"status", Status(MsgEnded), `{"status":"Stream ended."}`},
		{"error", Error(MsgNoActive), `{"error":"No active stream"}`},
		{"cue", CueEvent(session.Cue{Text: "hello", Start: 8, End: 16}), `{"cue":{"text":"hello","start":8,"end":16}}`},
		{"replay", Replay([]session.Cue{{Text: "a", Start: 0, End: 8}}), `{"recent":[{"text":"a","start":0,"end":8}]}`},
		{"resolved", Resolved("Live"), `{"status":"Stream resolved: Live. Loading ffmpeg…"}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			raw, err := json.Marshal(tc.event)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if string(raw) != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, raw)
			}
		})
	}
}
