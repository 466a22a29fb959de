package status

import (
	"time"

	"streamcaption/packages/go/backend/session"
)

// Messages sent to subscribers as plain status lines.
const (
	MsgResolving    = "Resolving stream…"
	MsgTranscribing = "Transcribing…"
	MsgJoined       = "Joined current stream."
	MsgStopping     = "Stopping…"
	MsgEnded        = "Stream ended."

	MsgConflict      = "Another stream is currently running. Try again later."
	MsgNoActive      = "No active stream"
	MsgMissingURL    = "Missing url"
	MsgUnknownAction = "Unknown action"
)

// Event is one outbound message. Exactly one field is set.
type Event struct {
	Status string        `json:"status,omitempty"`
	Cue    *session.Cue  `json:"cue,omitempty"`
	Error  string        `json:"error,omitempty"`
	Recent []session.Cue `json:"recent,omitempty"`
}

func Status(msg string) Event { return Event{Status: msg} }
func Error(msg string) Event  { return Event{Error: msg} }

func CueEvent(cue session.Cue) Event {
	return Event{Cue: &cue}
}

// Replay carries the recent history to a newly registered subscriber.
func Replay(cues []session.Cue) Event {
	return Event{Recent: cues}
}

// Resolved is the status sent once the stream URL has been resolved.
func Resolved(title string) Event {
	return Event{Status: "Stream resolved: " + title + ". Loading ffmpeg…"}
}

// Envelope wraps an event for external observers, tagging it with the session
// that produced it.
type Envelope struct {
	SessionID string    `json:"sessionId"`
	Event     Event     `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}
