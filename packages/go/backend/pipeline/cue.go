package pipeline

import (
	"strings"

	"streamcaption/packages/go/backend/asr"
	"streamcaption/packages/go/backend/session"
)

// BuildCue turns the segments recognized for one window into a cue placed on
// the stream timeline. base is the nominal start of the window and
// windowSeconds its nominal length. Offsets of zero are treated as absent. It
// reports false when the joined text is empty.
func BuildCue(segments []asr.Segment, base, windowSeconds float64) (session.Cue, bool) {
	if len(segments) == 0 {
		return session.Cue{}, false
	}

	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return session.Cue{}, false
	}

	start := base + segments[0].Start
	end := base + windowSeconds
	if last := segments[len(segments)-1].End; last > 0 {
		end = base + last
	}
	if end < start {
		end = start
	}
	return session.Cue{Text: text, Start: start, End: end}, true
}
