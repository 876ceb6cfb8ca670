// Package autosave debounces note edits and commits them after a quiet period.
package autosave

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/starford/markit/internal/apperr"
	"github.com/starford/markit/internal/models"
)

// DefaultDelay is the quiescence period after the last edit before it is committed.
const DefaultDelay = 2 * time.Second

// Policy decides what happens to a pending edit when the editor switches notes
// or closes before the quiescence period has elapsed.
type Policy string

const (
	// PolicyFlush commits the pending edit immediately.
	PolicyFlush Policy = "flush"
	// PolicyDiscard drops the pending edit.
	PolicyDiscard Policy = "discard"
)

// ParsePolicy converts a config value to a Policy. Empty means PolicyFlush.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFlush:
		return PolicyFlush, nil
	case PolicyDiscard:
		return PolicyDiscard, nil
	}
	return "", fmt.Errorf("autosave: unknown policy %q", s)
}

// CommitFunc applies a settled patch to the note with the given id.
type CommitFunc func(noteID string, p models.Patch) error

type pendingEdit struct {
	noteID string
	patch  models.Patch
	timer  clockwork.Timer
	gen    uint64
}

// Scheduler holds at most one pending edit. Every Schedule call restarts the
// quiescence timer; the edit is committed only once no further edit arrives
// within the delay.
type Scheduler struct {
	// commitMu serialises commits so an older patch never lands after a newer one.
	commitMu sync.Mutex

	mu      sync.Mutex
	pending *pendingEdit
	gen     uint64
	stopped bool

	commit CommitFunc
	clock  clockwork.Clock
	delay  time.Duration
	policy Policy
	logger *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock driving the quiescence timer.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithDelay sets the quiescence period.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithPolicy sets the switch/close policy.
func WithPolicy(p Policy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// WithLogger sets the logger used for commit failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler that commits through commit.
func New(commit CommitFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		commit: commit,
		clock:  clockwork.NewRealClock(),
		delay:  DefaultDelay,
		policy: PolicyFlush,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the configured switch/close policy.
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// Schedule records p for noteID and restarts the quiescence timer. A patch for
// the same note is merged over the pending one, later fields winning. A pending
// edit for a different note is released according to the policy first, and any
// error from that commit is returned.
func (s *Scheduler) Schedule(noteID string, p models.Patch) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	var errs []error
	s.mu.Lock()
	for s.pending != nil && s.pending.noteID != noteID {
		prev := s.takeLocked()
		s.mu.Unlock()
		errs = append(errs, s.settle(prev, s.policy))
		s.mu.Lock()
	}
	if s.stopped {
		s.mu.Unlock()
		return errors.Join(append(errs, apperr.ErrStopped)...)
	}

	if s.pending == nil {
		s.pending = &pendingEdit{noteID: noteID, patch: p}
	} else {
		s.pending.timer.Stop()
		s.pending.patch = s.pending.patch.Merge(p)
	}
	s.gen++
	gen := s.gen
	s.pending.gen = gen
	s.pending.timer = s.clock.AfterFunc(s.delay, func() { s.expire(gen) })
	s.mu.Unlock()

	return errors.Join(errs...)
}

// Release cancels the timer and applies the policy to the pending edit, if any.
func (s *Scheduler) Release() error {
	return s.drain(s.policy)
}

// Flush commits the pending edit now, regardless of policy.
func (s *Scheduler) Flush() error {
	return s.drain(PolicyFlush)
}

// Cancel drops the pending edit without committing it.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeLocked() != nil
}

// CancelNote drops the pending edit if it belongs to noteID.
func (s *Scheduler) CancelNote(noteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.noteID != noteID {
		return false
	}
	s.takeLocked()
	return true
}

// Pending returns the id of the note with a pending edit.
func (s *Scheduler) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return "", false
	}
	return s.pending.noteID, true
}

// Stop flushes the pending edit and rejects further scheduling.
func (s *Scheduler) Stop() error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	s.stopped = true
	prev := s.takeLocked()
	s.mu.Unlock()
	return s.settle(prev, PolicyFlush)
}

func (s *Scheduler) drain(policy Policy) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	prev := s.takeLocked()
	s.mu.Unlock()
	return s.settle(prev, policy)
}

// expire runs on the timer goroutine. A superseded generation does nothing.
func (s *Scheduler) expire(gen uint64) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if s.pending == nil || s.pending.gen != gen {
		s.mu.Unlock()
		return
	}
	prev := s.pending
	s.pending = nil
	s.mu.Unlock()

	_ = s.settle(prev, PolicyFlush)
}

func (s *Scheduler) takeLocked() *pendingEdit {
	prev := s.pending
	if prev == nil {
		return nil
	}
	if prev.timer != nil {
		prev.timer.Stop()
	}
	s.pending = nil
	return prev
}

func (s *Scheduler) settle(prev *pendingEdit, policy Policy) error {
	if prev == nil {
		return nil
	}
	if policy == PolicyDiscard {
		s.logger.Info("autosave: discarded pending edit", slog.String("note_id", prev.noteID))
		return nil
	}
	if err := s.commit(prev.noteID, prev.patch); err != nil {
		s.logger.Error("autosave: commit failed",
			slog.String("note_id", prev.noteID), slog.String("error", err.Error()))
		return fmt.Errorf("autosave: commit %s: %w", prev.noteID, err)
	}
	s.logger.Debug("autosave: committed", slog.String("note_id", prev.noteID))
	return nil
}
