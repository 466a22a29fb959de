package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"streamcaption/packages/go/backend/asr"
	"streamcaption/packages/go/backend/broadcast"
	"streamcaption/packages/go/backend/session"
)

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrConflict        = errors.New("another stream is active")
	ErrNoActiveSession = errors.New("no active stream")
)

// Outcome is the result of an accepted start request.
type Outcome int

const (
	// StartedNew means a new session was created and its pipeline launched.
	StartedNew Outcome = iota + 1
	// Joined means the requested stream is already running.
	Joined
)

func (o Outcome) String() string {
	switch o {
	case StartedNew:
		return "started"
	case Joined:
		return "joined"
	default:
		return "unknown"
	}
}

// StartRequest is what a client submits to begin captioning a stream.
type StartRequest struct {
	URL            string `json:"url"`
	SourceLanguage string `json:"src_lang,omitempty"`
	Task           string `json:"task,omitempty"`
}

// SessionRunner drives a session to completion. It must call release exactly
// once after the session has ended.
type SessionRunner interface {
	Run(ctx context.Context, sess *session.Session, release func()) session.EndReason
}

// Controller owns the single global stream slot.
type Controller struct {
	runner    SessionRunner
	hub       *broadcast.Hub
	recentCap int
	logger    *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active *session.Session
	// latest is the most recently started session, kept after it ends so its
	// history stays readable until the next start.
	latest *session.Session
}

// Option configures a Controller.
type Option func(*Controller)

func WithRecentCap(n int) Option {
	return func(c *Controller) { c.recentCap = n }
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Controller) { c.logger = logger }
}

func NewController(runner SessionRunner, hub *broadcast.Hub, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		runner:    runner,
		hub:       hub,
		recentCap: session.DefaultRecentCap,
		logger:    zap.NewNop().Sugar(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestStart admits req. A different stream already running yields
// ErrConflict; the running session is never pre-empted.
func (c *Controller) RequestStart(ctx context.Context, req StartRequest) (Outcome, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return 0, fmt.Errorf("%w: missing url", ErrInvalidRequest)
	}
	task, ok := asr.ParseTask(strings.TrimSpace(req.Task))
	if !ok {
		return 0, fmt.Errorf("%w: unsupported task %q", ErrInvalidRequest, req.Task)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		if c.active.StreamRef() == url {
			return Joined, nil
		}
		return 0, ErrConflict
	}
	if c.ctx.Err() != nil {
		return 0, errors.New("controller is shut down")
	}

	sess := session.New(session.Config{
		StreamRef:      url,
		Task:           task,
		SourceLanguage: strings.TrimSpace(req.SourceLanguage),
		RecentCap:      c.recentCap,
	})
	c.active = sess
	c.latest = sess

	c.logger.Infow("starting stream", "sessionID", sess.ID(), "url", url, "task", string(task))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runner.Run(c.ctx, sess, func() { c.release(sess) })
	}()
	return StartedNew, nil
}

func (c *Controller) release(sess *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == sess {
		c.active = nil
	}
}

// RequestStop asks the active session to wind down. The session ends on its
// own once the pipeline observes the stop.
func (c *Controller) RequestStop() error {
	sess := c.activeSession()
	if sess == nil {
		return ErrNoActiveSession
	}
	c.logger.Infow("stop requested", "sessionID", sess.ID())
	if err := sess.RequestStop(); err != nil {
		c.logger.Debugw("terminate decoder", "error", err, "sessionID", sess.ID())
	}
	return nil
}

func (c *Controller) activeSession() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Active returns the active session's snapshot.
func (c *Controller) Active() (session.Snapshot, bool) {
	sess := c.activeSession()
	if sess == nil {
		return session.Snapshot{}, false
	}
	return sess.Snapshot(), true
}

// Recent returns the history of the active session, or of the last ended one.
func (c *Controller) Recent() (active bool, cues []session.Cue, lastText string) {
	c.mu.Lock()
	sess := c.latest
	active = c.active != nil
	c.mu.Unlock()

	if sess == nil {
		return active, []session.Cue{}, ""
	}
	return active, sess.Recent(), sess.LastText()
}

// Subscribe registers sub with the hub, replaying the active session's history
// first.
func (c *Controller) Subscribe(sub broadcast.Subscriber) bool {
	return c.hub.Subscribe(sub, func() []session.Cue {
		if sess := c.activeSession(); sess != nil {
			return sess.Recent()
		}
		return nil
	})
}

func (c *Controller) Unsubscribe(sub broadcast.Subscriber) {
	c.hub.Unsubscribe(sub)
}

// Subscribers is the number of live subscribers.
func (c *Controller) Subscribers() int {
	return c.hub.Len()
}

// Shutdown stops the active session and waits for its pipeline to finish or
// ctx to expire.
func (c *Controller) Shutdown(ctx context.Context) error {
	if err := c.RequestStop(); err != nil && !errors.Is(err, ErrNoActiveSession) {
		return err
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
