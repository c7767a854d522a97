package app

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/ayusman/emojicam/internal/detector"
	"github.com/ayusman/emojicam/internal/emotion"
	"github.com/ayusman/emojicam/internal/store"
)

func newJournalStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestJournal_RecordsSelectedEmotions(t *testing.T) {
	st := newJournalStore(t)

	j, err := NewJournal(st, 1)
	if err != nil {
		t.Fatalf("NewJournal failed: %v", err)
	}

	j.Observe(DisplayState{Emoji: emotion.Placeholder, Status: emotion.StatusNoFace})
	j.Observe(DisplayState{
		Emoji: "😄",
		Label: emotion.Happy,
		Score: 0.8,
		Box:   image.Rect(10, 20, 110, 140),
	})

	readings, err := st.Readings().ListBySession(j.SessionID(), 0)
	if err != nil {
		t.Fatalf("ListBySession failed: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(readings))
	}
	rd := readings[0]
	if rd.Label != "happy" || rd.Score != 0.8 {
		t.Errorf("reading = %+v, want happy 0.8", rd)
	}
	if rd.BoxX != 10 || rd.BoxY != 20 || rd.BoxW != 100 || rd.BoxH != 120 {
		t.Errorf("box = (%d,%d,%d,%d), want (10,20,100,120)", rd.BoxX, rd.BoxY, rd.BoxW, rd.BoxH)
	}

	sess, err := st.Sessions().GetByID(j.SessionID())
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if sess.Camera != 1 {
		t.Errorf("Camera = %d, want 1", sess.Camera)
	}
}

func TestJournal_CloseEndsSession(t *testing.T) {
	st := newJournalStore(t)

	j, err := NewJournal(st, 0)
	if err != nil {
		t.Fatalf("NewJournal failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	sess, err := st.Sessions().GetByID(j.SessionID())
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if sess.EndedAt == nil {
		t.Error("session should be ended")
	}

	// Readings after close are dropped.
	j.Observe(DisplayState{Label: emotion.Sad, Score: 0.5})
	readings, _ := st.Readings().ListBySession(j.SessionID(), 0)
	if len(readings) != 0 {
		t.Errorf("expected no readings after close, got %d", len(readings))
	}
}

func TestJournal_ObservesCaptureLoop(t *testing.T) {
	st := newJournalStore(t)
	j, err := NewJournal(st, 0)
	if err != nil {
		t.Fatalf("NewJournal failed: %v", err)
	}

	f := newFixture(t)
	f.detector.SetDetections([]detector.Detection{detector.HappyFace()})
	f.loop.AddObserver(j)

	if err := f.loop.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f.sched.Advance(DefaultTickInterval)
	f.loop.Close()

	sess, err := st.Sessions().GetByID(j.SessionID())
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if sess.Readings != 2 {
		t.Errorf("Readings = %d, want 2 (initial tick plus one scheduled)", sess.Readings)
	}

	summary, err := st.Readings().Summary(j.SessionID())
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(summary) != 1 || summary[0].Label != string(emotion.Happy) {
		t.Errorf("summary = %+v, want only happy", summary)
	}
}
