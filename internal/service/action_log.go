package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/mrumy-dev/stylesync-telemetry/internal/models"
)

// actionLog keeps the most recent user-action breadcrumbs attached to crash
// and feedback reports. Oldest entries fall off once the trail is full.
type actionLog struct {
	mu      sync.Mutex
	actions []models.UserAction
	size    int
}

func newActionLog(size int) *actionLog {
	return &actionLog{size: size}
}

// Add appends a breadcrumb, evicting the oldest when full
func (l *actionLog) Add(action, category string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.actions = append(l.actions, models.UserAction{
		Action:    action,
		Category:  category,
		Timestamp: time.Now().UTC(),
	})
	if len(l.actions) > l.size {
		l.actions = l.actions[len(l.actions)-l.size:]
	}
}

// Snapshot returns a copy of the trail, oldest first
func (l *actionLog) Snapshot() []models.UserAction {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.UserAction, len(l.actions))
	copy(out, l.actions)
	return out
}

// Strings renders the trail for the feedback metadata format
func (l *actionLog) Strings() []string {
	actions := l.Snapshot()
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = fmt.Sprintf("%s: %s", a.Category, a.Action)
	}
	return out
}
