package store

import (
	"log/slog"
	"time"
)

// CleanupInterval is how often StartCleanupLoop prunes old challenges.
const CleanupInterval = time.Hour

// StartCleanupLoop deletes challenges older than retention once per
// CleanupInterval until done is closed. A non-positive retention disables it.
func StartCleanupLoop(s ChallengeStore, retention time.Duration, done <-chan struct{}) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			prune(s, retention)
		case <-done:
			return
		}
	}
}

func prune(s ChallengeStore, retention time.Duration) {
	n, err := s.Cleanup(time.Now().Add(-retention))
	if err != nil {
		slog.Warn("challenge cleanup failed", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("pruned old challenges", "count", n)
	}
}
