package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no matching record exists.
var ErrNotFound = errors.New("not found")

// ChallengeStore is the persistence interface for verification handshakes.
// Items and change events are never persisted.
type ChallengeStore interface {
	RecordChallenge(c *Challenge) error
	LatestChallenge() (*Challenge, error)
	ListChallenges(limit int) ([]Challenge, error)

	// Cleanup deletes challenges received before the cutoff and reports how
	// many were removed.
	Cleanup(before time.Time) (int64, error)
	Close() error
}

// Challenge is one verification token delivered by the external store when
// a webhook subscription is created.
type Challenge struct {
	ID         int64
	Token      string
	RemoteAddr string
	ReceivedAt time.Time
}
