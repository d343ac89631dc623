package navigation

import (
	"sync"

	"go.uber.org/zap"
)

// Tracker is the daemon-side navigator: it remembers the path the
// lifecycle last steered the client toward (login after termination, the
// intended destination after login) so the UI can poll for it.
type Tracker struct {
	mu       sync.RWMutex
	location string
	logger   *zap.Logger
}

func NewTracker(initial string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{location: initial, logger: logger}
}

// Navigate records the new target. Never blocks.
func (t *Tracker) Navigate(path string) {
	if path == "" {
		return
	}
	t.mu.Lock()
	t.location = path
	t.mu.Unlock()
	t.logger.Debug("navigation target updated", zap.String("path", path))
}

// Location returns the last commanded path.
func (t *Tracker) Location() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.location
}
