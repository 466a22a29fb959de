package broadcast

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"streamcaption/packages/go/backend/session"
	"streamcaption/packages/go/backend/status"
)

// Subscriber receives events. Send must not block; an error means the
// subscriber is gone and it will be dropped.
type Subscriber interface {
	Send(status.Event) error
}

// Mirror receives a copy of every published event.
type Mirror interface {
	Publish(ctx context.Context, env status.Envelope) error
}

// Option configures a Hub.
type Option func(*Hub)

func WithMirror(m Mirror) Option {
	return func(h *Hub) { h.mirror = m }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(h *Hub) { h.logger = logger }
}

// WithMirrorTimeout bounds each mirror publish.
func WithMirrorTimeout(d time.Duration) Option {
	return func(h *Hub) { h.mirrorTimeout = d }
}

// WithMirrorQueue sets how many events may wait for the mirror before new
// ones are dropped.
func WithMirrorQueue(size int) Option {
	return func(h *Hub) { h.mirrorQueueSize = size }
}

// Hub fans events out to every registered subscriber.
type Hub struct {
	mu     sync.Mutex
	subs   map[Subscriber]struct{}
	closed bool

	mirror          Mirror
	mirrorTimeout   time.Duration
	mirrorQueueSize int
	mirrorQueue     chan status.Envelope
	mirrorDone      chan struct{}
	logger          *zap.SugaredLogger
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:            make(map[Subscriber]struct{}),
		mirrorTimeout:   2 * time.Second,
		mirrorQueueSize: 256,
		logger:          zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.mirror != nil {
		if h.mirrorQueueSize <= 0 {
			h.mirrorQueueSize = 1
		}
		h.mirrorQueue = make(chan status.Envelope, h.mirrorQueueSize)
		h.mirrorDone = make(chan struct{})
		go h.runMirror()
	}
	return h
}

// Subscribe registers sub. When snapshot returns cues they are sent as a single
// replay before registration, all under the hub lock, so no live event can
// overtake the replay. A failed replay leaves sub unregistered.
func (h *Hub) Subscribe(sub Subscriber, snapshot func() []session.Cue) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if snapshot != nil {
		if cues := snapshot(); len(cues) > 0 {
			if err := sub.Send(status.Replay(cues)); err != nil {
				h.logger.Debugw("dropping subscriber after failed replay", "error", err)
				return false
			}
		}
	}
	h.subs[sub] = struct{}{}
	return true
}

func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// Len is the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish delivers event to every subscriber, removing any whose Send fails.
// sessionID tags the mirrored copy. Mirroring happens off the caller's
// goroutine; when the mirror queue is full the copy is dropped.
func (h *Hub) Publish(sessionID string, event status.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if err := sub.Send(event); err != nil {
			delete(h.subs, sub)
			h.logger.Debugw("removed subscriber", "error", err, "sessionID", sessionID)
		}
	}

	if h.mirrorQueue == nil || h.closed {
		return
	}
	env := status.Envelope{SessionID: sessionID, Event: event, Timestamp: time.Now().UTC()}
	select {
	case h.mirrorQueue <- env:
	default:
		h.logger.Warnw("mirror queue full, dropping status event", "sessionID", sessionID)
	}
}

// Close stops mirroring after the queued events have been handed to the
// mirror. Later publishes still reach subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed || h.mirrorQueue == nil {
		h.closed = true
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.mirrorQueue)
	h.mu.Unlock()

	<-h.mirrorDone
}

func (h *Hub) runMirror() {
	defer close(h.mirrorDone)
	for env := range h.mirrorQueue {
		ctx, cancel := context.WithTimeout(context.Background(), h.mirrorTimeout)
		if err := h.mirror.Publish(ctx, env); err != nil {
			h.logger.Errorw("failed to mirror status event", "error", err, "sessionID", env.SessionID)
		}
		cancel()
	}
}
