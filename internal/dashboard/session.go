// Package dashboard owns the state behind the cashflow page: the current
// record snapshot, the selected view mode and the reload generation.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cashflow/internal/core"
	applog "cashflow/internal/log"
	"cashflow/internal/records"
)

var (
	// ErrStaleResponse is returned by Reload when a newer reload started
	// while this one was in flight. The snapshot is left untouched.
	ErrStaleResponse = errors.New("stale reload response discarded")

	// ErrNoSnapshot is returned when no reload has succeeded yet.
	ErrNoSnapshot = errors.New("records not loaded")
)

// State is the load status shown on the page.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateError   State = "error"
)

// Snapshot is one wholesale copy of the record list. Treat it as read-only.
type Snapshot struct {
	Records    []core.Record
	Raw        json.RawMessage
	Generation uint64
	LoadedAt   time.Time
}

// Status describes the session for the status line.
type Status struct {
	State      State      `json:"state"`
	Error      string     `json:"error,omitempty"`
	Generation uint64     `json:"generation"`
	Records    int        `json:"records"`
	LoadedAt   *time.Time `json:"loaded_at,omitempty"`
	ViewMode   string     `json:"view_mode"`
}

// ReloadHook runs after a snapshot has been applied.
type ReloadHook func(ctx context.Context, snap Snapshot)

type Session struct {
	reader records.Reader
	logger *applog.Logger
	loc    *time.Location
	now    func() time.Time
	hooks  []ReloadHook

	issued atomic.Uint64

	mu       sync.RWMutex
	mode     core.ViewMode
	current  *Snapshot
	state    State
	lastErr  error
	inFlight int
	pending  *reloadCall
}

// reloadCall is one started reload. done is closed once snap and err are set.
type reloadCall struct {
	gen  uint64
	done chan struct{}
	snap Snapshot
	err  error
}

type Option func(*Session)

func WithLocation(loc *time.Location) Option {
	return func(s *Session) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithViewMode(mode core.ViewMode) Option {
	return func(s *Session) {
		if mode.Valid() {
			s.mode = mode
		}
	}
}

func WithLogger(logger *applog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger.WithComponent(applog.ComponentSession)
		}
	}
}

// OnReload registers a hook run after every applied reload.
func OnReload(hook ReloadHook) Option {
	return func(s *Session) { s.hooks = append(s.hooks, hook) }
}

func withClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func NewSession(reader records.Reader, opts ...Option) *Session {
	s := &Session{
		reader: reader,
		logger: applog.NewDiscard(),
		loc:    time.Local,
		now:    time.Now,
		mode:   core.Monthly,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reload reads the record list once and replaces the snapshot. Only the most
// recently started reload may apply its result; older ones get
// ErrStaleResponse. On failure the previous snapshot is kept.
func (s *Session) Reload(ctx context.Context) (Snapshot, error) {
	c, _ := s.begin(false)
	return s.run(ctx, c)
}

// begin issues a new generation. With join set, a reload already in flight
// is returned instead and owner is false.
func (s *Session) begin(join bool) (c *reloadCall, owner bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if join && s.pending != nil {
		return s.pending, false
	}
	c = &reloadCall{gen: s.issued.Add(1), done: make(chan struct{})}
	s.pending = c
	s.state = StateLoading
	s.inFlight++
	return c, true
}

// finish publishes the outcome of c to joined callers. s.mu must be held.
func (s *Session) finish(c *reloadCall, snap Snapshot, err error) {
	c.snap, c.err = snap, err
	if s.pending == c {
		s.pending = nil
	}
	close(c.done)
}

func (s *Session) run(ctx context.Context, c *reloadCall) (Snapshot, error) {
	gen := c.gen
	payload, err := s.reader.ReadRecords(ctx)

	s.mu.Lock()
	s.inFlight--
	if gen != s.issued.Load() {
		stale := fmt.Errorf("generation %d: %w", gen, ErrStaleResponse)
		s.finish(c, Snapshot{}, stale)
		s.mu.Unlock()
		s.logger.Debug("Discarding stale reload",
			applog.FieldGeneration, gen,
			"latest_generation", s.issued.Load())
		return Snapshot{}, stale
	}
	if err != nil {
		s.state = StateError
		s.lastErr = err
		wrapped := fmt.Errorf("reload records: %w", err)
		s.finish(c, Snapshot{}, wrapped)
		s.mu.Unlock()
		s.logger.LogError(ctx, "Records reload failed", err, applog.OpReload,
			applog.NewFields().WithSnapshot(gen, 0))
		return Snapshot{}, wrapped
	}

	snap := Snapshot{
		Records:    payload.Records,
		Raw:        payload.Raw,
		Generation: gen,
		LoadedAt:   s.now(),
	}
	s.current = &snap
	s.state = StateLoaded
	s.lastErr = nil
	s.finish(c, snap, nil)
	hooks := s.hooks
	s.mu.Unlock()

	s.logger.Info("Records reloaded", applog.NewFields().WithSnapshot(gen, len(snap.Records)).ToSlice()...)

	for _, hook := range hooks {
		hook(ctx, snap)
	}
	return snap, nil
}

// Snapshot returns the current snapshot.
func (s *Session) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Snapshot{}, ErrNoSnapshot
	}
	return *s.current, nil
}

// EnsureLoaded returns the current snapshot, loading it only when nothing has
// been loaded yet. A reload already in flight is joined, never superseded, so
// read paths cannot turn an explicit Reload stale. At most one new read is
// started per call.
func (s *Session) EnsureLoaded(ctx context.Context) (Snapshot, error) {
	mayStart := true
	for {
		if snap, err := s.Snapshot(); err == nil {
			return snap, nil
		}

		c, owner := s.join(mayStart)
		if c == nil {
			return Snapshot{}, s.loadError()
		}

		var snap Snapshot
		var err error
		if owner {
			mayStart = false
			snap, err = s.run(ctx, c)
		} else {
			select {
			case <-c.done:
				snap, err = c.snap, c.err
			case <-ctx.Done():
				return Snapshot{}, ctx.Err()
			}
		}
		if !errors.Is(err, ErrStaleResponse) {
			return snap, err
		}
		// Superseded: wait for the newer reload.
	}
}

// join returns the in-flight reload, or starts one when start is set.
func (s *Session) join(start bool) (*reloadCall, bool) {
	if start {
		return s.begin(true)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending, false
}

func (s *Session) loadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastErr != nil {
		return fmt.Errorf("reload records: %w", s.lastErr)
	}
	return ErrNoSnapshot
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{State: s.state, ViewMode: s.mode.String()}
	if s.inFlight > 0 {
		st.State = StateLoading
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	if s.current != nil {
		st.Generation = s.current.Generation
		st.Records = len(s.current.Records)
		loadedAt := s.current.LoadedAt
		st.LoadedAt = &loadedAt
	}
	return st
}

func (s *Session) ViewMode() core.ViewMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Session) SetViewMode(mode core.ViewMode) error {
	if !mode.Valid() {
		return fmt.Errorf("set view mode %q: %w", mode, core.ErrInvalidViewMode)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return nil
}

func (s *Session) Location() *time.Location {
	return s.loc
}

// Series aggregates the current snapshot. An empty mode means the session's
// current view mode.
func (s *Session) Series(mode core.ViewMode) (core.Series, Snapshot, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, Snapshot{}, err
	}
	if mode == "" {
		mode = s.ViewMode()
	}
	return s.Aggregate(snap, mode), snap, nil
}

// Aggregate buckets snap in the session's location. Callers that cache by
// generation use this instead of Series so the result matches snap exactly.
func (s *Session) Aggregate(snap Snapshot, mode core.ViewMode) core.Series {
	var stats core.Stats
	series := core.Aggregate(snap.Records, mode, core.WithLocation(s.loc), core.WithStats(&stats))

	s.logger.Debug("Aggregated cashflow",
		applog.NewFields().
			WithSnapshot(snap.Generation, stats.Records).
			WithAggregation(mode.String(), len(series), stats.Dropped).ToSlice()...)

	return series
}
