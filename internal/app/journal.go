package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ayusman/emojicam/internal/log"
	"github.com/ayusman/emojicam/internal/store"
)

// Journal records every selected emotion of one session in the store.
type Journal struct {
	store *store.Store
	id    string

	mu       sync.Mutex
	closed   bool
	failures int
}

// NewJournal opens a new session for the given camera device.
func NewJournal(st *store.Store, camera int) (*Journal, error) {
	sess := &store.Session{
		ID:     uuid.New().String(),
		Camera: camera,
	}
	if err := st.Sessions().Create(sess); err != nil {
		return nil, errors.Wrap(err, "create journal session")
	}

	log.Info("Journal session started", "session", sess.ID)
	return &Journal{store: st, id: sess.ID}, nil
}

// SessionID returns the id of the session being recorded.
func (j *Journal) SessionID() string {
	return j.id
}

// Observe stores a reading when the state carries a selected emotion.
func (j *Journal) Observe(state DisplayState) {
	if state.Label == "" {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}

	at := state.At
	if at.IsZero() {
		at = time.Now()
	}

	err := j.store.Readings().Create(&store.Reading{
		SessionID: j.id,
		Label:     string(state.Label),
		Score:     state.Score,
		BoxX:      state.Box.Min.X,
		BoxY:      state.Box.Min.Y,
		BoxW:      state.Box.Dx(),
		BoxH:      state.Box.Dy(),
		CreatedAt: at,
	})
	if err != nil {
		j.failures++
		if j.failures == 1 {
			log.Warn("Failed to record reading", "session", j.id, "error", err)
		}
	}
}

// Close ends the session. It is safe to call more than once.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true

	if err := j.store.Sessions().End(j.id, time.Now()); err != nil {
		return errors.Wrapf(err, "end journal session %s", j.id)
	}
	log.Info("Journal session ended", "session", j.id)
	return nil
}
