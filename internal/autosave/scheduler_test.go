package autosave

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/starford/markit/internal/apperr"
	"github.com/starford/markit/internal/models"
)

type commit struct {
	noteID string
	patch  models.Patch
	at     time.Time
}

type recorder struct {
	clock clockwork.Clock
	ch    chan commit
	err   error
}

func newRecorder(clock clockwork.Clock) *recorder {
	return &recorder{clock: clock, ch: make(chan commit, 16)}
}

func (r *recorder) commit(noteID string, p models.Patch) error {
	r.ch <- commit{noteID: noteID, patch: p, at: r.clock.Now()}
	return r.err
}

func (r *recorder) expect(t *testing.T) commit {
	t.Helper()
	select {
	case c := <-r.ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for commit")
		return commit{}
	}
}

func (r *recorder) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-r.ch:
		t.Fatalf("unexpected commit %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestScheduler(policy Policy) (*Scheduler, *clockwork.FakeClock, *recorder) {
	clock := clockwork.NewFakeClock()
	rec := newRecorder(clock)
	s := New(rec.commit, WithClock(clock), WithPolicy(policy), WithLogger(quietLogger()))
	return s, clock, rec
}

func content(p models.Patch) string {
	if p.Content == nil {
		return ""
	}
	return *p.Content
}

func TestSchedule_DebouncesToLastEdit(t *testing.T) {
	s, clock, rec := newTestScheduler(PolicyFlush)
	start := clock.Now()

	_ = s.Schedule("n1", models.ContentPatch("E1"))
	clock.Advance(500 * time.Millisecond)
	_ = s.Schedule("n1", models.ContentPatch("E2"))

	clock.Advance(1999 * time.Millisecond)
	rec.expectNone(t)

	clock.Advance(time.Millisecond)
	c := rec.expect(t)
	if c.noteID != "n1" || content(c.patch) != "E2" {
		t.Errorf("commit = %+v", c)
	}
	if got := c.at.Sub(start); got != 2500*time.Millisecond {
		t.Errorf("committed at +%v, want +2.5s", got)
	}

	clock.Advance(10 * time.Second)
	rec.expectNone(t)
	if _, ok := s.Pending(); ok {
		t.Error("pending not cleared after commit")
	}
}

func TestSchedule_MergesFields(t *testing.T) {
	s, clock, rec := newTestScheduler(PolicyFlush)

	_ = s.Schedule("n1", models.TitlePatch("T"))
	_ = s.Schedule("n1", models.ContentPatch("C"))
	clock.Advance(DefaultDelay)

	c := rec.expect(t)
	if c.patch.Title == nil || *c.patch.Title != "T" || content(c.patch) != "C" {
		t.Errorf("patch = %+v", c.patch)
	}
}

func TestSchedule_SwitchFlushCommitsImmediately(t *testing.T) {
	s, clock, rec := newTestScheduler(PolicyFlush)

	_ = s.Schedule("n1", models.ContentPatch("draft"))
	if err := s.Schedule("n2", models.ContentPatch("other")); err != nil {
		t.Fatal(err)
	}

	c := rec.expect(t)
	if c.noteID != "n1" || content(c.patch) != "draft" {
		t.Errorf("commit = %+v", c)
	}
	if id, _ := s.Pending(); id != "n2" {
		t.Errorf("pending = %q, want n2", id)
	}

	clock.Advance(DefaultDelay)
	if c := rec.expect(t); c.noteID != "n2" {
		t.Errorf("second commit = %+v", c)
	}
}

func TestRelease_Policies(t *testing.T) {
	t.Run("flush", func(t *testing.T) {
		s, clock, rec := newTestScheduler(PolicyFlush)
		_ = s.Schedule("n1", models.ContentPatch("keep"))
		if err := s.Release(); err != nil {
			t.Fatal(err)
		}
		if c := rec.expect(t); content(c.patch) != "keep" {
			t.Errorf("commit = %+v", c)
		}
		clock.Advance(DefaultDelay)
		rec.expectNone(t)
	})

	t.Run("discard", func(t *testing.T) {
		s, clock, rec := newTestScheduler(PolicyDiscard)
		_ = s.Schedule("n1", models.ContentPatch("lost"))
		if err := s.Release(); err != nil {
			t.Fatal(err)
		}
		clock.Advance(DefaultDelay)
		rec.expectNone(t)
		if _, ok := s.Pending(); ok {
			t.Error("pending survived discard")
		}
	})
}

func TestFlush_IgnoresDiscardPolicy(t *testing.T) {
	s, _, rec := newTestScheduler(PolicyDiscard)
	_ = s.Schedule("n1", models.ContentPatch("x"))
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	rec.expect(t)
}

func TestCancelNote(t *testing.T) {
	s, clock, rec := newTestScheduler(PolicyFlush)
	_ = s.Schedule("n1", models.ContentPatch("x"))

	if s.CancelNote("other") {
		t.Error("cancelled a different note")
	}
	if !s.CancelNote("n1") {
		t.Error("expected cancel")
	}
	clock.Advance(DefaultDelay)
	rec.expectNone(t)
}

func TestCommitErrorReturned(t *testing.T) {
	s, _, rec := newTestScheduler(PolicyFlush)
	boom := errors.New("disk full")
	rec.err = boom

	_ = s.Schedule("n1", models.ContentPatch("x"))
	err := s.Flush()
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestStop(t *testing.T) {
	s, _, rec := newTestScheduler(PolicyDiscard)
	_ = s.Schedule("n1", models.ContentPatch("last words"))

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if c := rec.expect(t); content(c.patch) != "last words" {
		t.Errorf("commit = %+v", c)
	}
	if err := s.Schedule("n1", models.ContentPatch("late")); !errors.Is(err, apperr.ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
}

func TestConcurrentSchedule(t *testing.T) {
	s, _, rec := newTestScheduler(PolicyFlush)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Schedule("n1", models.ContentPatch("x"))
		}()
	}
	wg.Wait()

	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	rec.expect(t)
	rec.expectNone(t)
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyFlush, "flush": PolicyFlush, "discard": PolicyDiscard} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Error("expected error")
	}
}
