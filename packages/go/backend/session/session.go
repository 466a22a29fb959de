package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"streamcaption/packages/go/backend/asr"
	"streamcaption/packages/go/backend/ingestion"
)

// DefaultRecentCap bounds the cue history kept per session.
const DefaultRecentCap = 200

// State is a step of the session lifecycle. Transitions only move forward:
// Idle → Resolving → Transcribing → Ended, or Resolving → Ended.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateTranscribing
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateTranscribing:
		return "transcribing"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EndReason records why a session reached StateEnded.
type EndReason string

const (
	EndNone      EndReason = ""
	EndStopped   EndReason = "stopped"
	EndCompleted EndReason = "completed"
	EndError     EndReason = "error"
)

// Config captures what a client asked for when starting a stream.
type Config struct {
	StreamRef string   `json:"url"`
	Task      asr.Task `json:"task"`
	// SourceLanguage is empty for auto-detection.
	SourceLanguage string `json:"src_lang,omitempty"`
	RecentCap      int    `json:"-"`
}

// Snapshot is a read-only copy of a session's observable fields.
type Snapshot struct {
	ID             string    `json:"id"`
	StreamRef      string    `json:"url"`
	Task           asr.Task  `json:"task"`
	SourceLanguage string    `json:"src_lang,omitempty"`
	State          State     `json:"-"`
	EndReason      EndReason `json:"end_reason,omitempty"`
	Title          string    `json:"title,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CueCount       int       `json:"cue_count"`
}

// Session is one stream pipeline. Only the pipeline goroutine mutates it;
// other goroutines read through the accessor methods.
type Session struct {
	id        string
	cfg       Config
	startedAt time.Time

	mu            sync.RWMutex
	state         State
	endReason     EndReason
	title         string
	history       *History
	decoder       ingestion.Stream
	stopRequested bool
}

// New creates an idle session with a fresh ID.
func New(cfg Config) *Session {
	if cfg.RecentCap <= 0 {
		cfg.RecentCap = DefaultRecentCap
	}
	return &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		startedAt: time.Now().UTC(),
		history:   NewHistory(cfg.RecentCap),
	}
}

func (s *Session) ID() string        { return s.id }
func (s *Session) StreamRef() string { return s.cfg.StreamRef }
func (s *Session) Config() Config    { return s.cfg }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// EndReason is EndNone until the session has ended.
func (s *Session) EndReason() EndReason {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endReason
}

// BeginResolving moves Idle → Resolving.
func (s *Session) BeginResolving() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("session %s: cannot resolve from %s", s.id, s.state)
	}
	s.state = StateResolving
	return nil
}

// BeginTranscribing moves Resolving → Transcribing and attaches the decode
// stream. It refuses if a stop was requested while resolving.
func (s *Session) BeginTranscribing(title string, decoder ingestion.Stream) error {
	if decoder == nil {
		return fmt.Errorf("session %s: decoder is required", s.id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateResolving {
		return fmt.Errorf("session %s: cannot transcribe from %s", s.id, s.state)
	}
	if s.stopRequested {
		return ErrStopRequested
	}
	s.title = title
	s.decoder = decoder
	s.state = StateTranscribing
	return nil
}

// End moves the session to StateEnded and detaches the decode stream, which is
// returned so the caller can release it. Ending twice is a no-op returning nil.
func (s *Session) End(reason EndReason) ingestion.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEnded {
		return nil
	}
	decoder := s.decoder
	s.decoder = nil
	s.state = StateEnded
	s.endReason = reason
	return decoder
}

// RequestStop asks the session to wind down. While transcribing it terminates
// the decode stream; while resolving it prevents the decoder from starting.
func (s *Session) RequestStop() error {
	s.mu.Lock()
	s.stopRequested = true
	decoder := s.decoder
	s.mu.Unlock()

	if decoder != nil {
		return decoder.Terminate()
	}
	return nil
}

// StopRequested reports whether RequestStop has been called.
func (s *Session) StopRequested() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopRequested
}

// Decoder returns the attached decode stream; nil unless transcribing.
func (s *Session) Decoder() ingestion.Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decoder
}

// AppendCue adds a cue to the bounded history.
func (s *Session) AppendCue(cue Cue) {
	s.history.Append(cue)
}

// Recent returns a copy of the cue history, oldest first.
func (s *Session) Recent() []Cue {
	return s.history.Snapshot()
}

// LastText returns the text of the newest cue.
func (s *Session) LastText() string {
	return s.history.LastText()
}

// Snapshot copies the observable fields.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:             s.id,
		StreamRef:      s.cfg.StreamRef,
		Task:           s.cfg.Task,
		SourceLanguage: s.cfg.SourceLanguage,
		State:          s.state,
		EndReason:      s.endReason,
		Title:          s.title,
		StartedAt:      s.startedAt,
		CueCount:       s.history.Len(),
	}
}
