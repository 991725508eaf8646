package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tracker owns the process-wide session identity. A session starts when the
// tracker is created and rotates when the app resumes from background after
// the rotation gap has elapsed. There is no terminal state; the tracker
// lives for the process lifetime.
type Tracker struct {
	sessionID   string
	startedAt   time.Time
	rotationGap time.Duration
	logger      *zap.Logger
	mu          sync.Mutex

	now func() time.Time // swapped in tests
}

// NewTracker creates a tracker with a fresh session
func NewTracker(rotationGap time.Duration, logger *zap.Logger) *Tracker {
	t := &Tracker{
		rotationGap: rotationGap,
		logger:      logger,
		now:         time.Now,
	}
	t.sessionID = uuid.NewString()
	t.startedAt = t.now()

	logger.Info("Session started",
		zap.String("session_id", t.sessionID),
	)
	return t
}

// SessionID returns the current session id
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// StartedAt returns when the current session began
func (t *Tracker) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt
}

// Resume handles a foreground resume. If the session is older than the
// rotation gap a new session replaces it; the caller emits the
// session_start record when rotated is true.
func (t *Tracker) Resume() (sessionID string, rotated bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := t.now().Sub(t.startedAt)
	if elapsed <= t.rotationGap {
		return t.sessionID, false
	}

	oldID := t.sessionID
	t.sessionID = uuid.NewString()
	t.startedAt = t.now()

	t.logger.Info("Session rotated",
		zap.String("old_session_id", oldID),
		zap.String("new_session_id", t.sessionID),
		zap.Duration("elapsed", elapsed),
	)
	return t.sessionID, true
}

// Background handles an enter-background transition, returning the current
// session id and its elapsed duration for the session_end record
func (t *Tracker) Background() (sessionID string, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed = t.now().Sub(t.startedAt)
	t.logger.Debug("Session entering background",
		zap.String("session_id", t.sessionID),
		zap.Duration("elapsed", elapsed),
	)
	return t.sessionID, elapsed
}
