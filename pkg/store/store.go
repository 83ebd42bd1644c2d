// Package store defines the persistence contracts for call sessions and
// their transcripts. Implementations must keep per-session transcript order
// stable and must not serialize unrelated sessions behind a shared lock.
package store

import (
	"context"
	"errors"

	"github.com/harunnryd/voxcall/pkg/convo"
)

// ErrNotFound is returned when a session id resolves to nothing.
var ErrNotFound = errors.New("session not found")

// SessionStore keeps call session metadata keyed by session id.
type SessionStore interface {
	CreateSession(ctx context.Context, sess convo.Session) error
	GetSession(ctx context.Context, id string) (convo.Session, error)
	// UpdateSession applies fn to the stored session under the session's own
	// lock and persists the result. Returns ErrNotFound for unknown ids.
	UpdateSession(ctx context.Context, id string, fn func(*convo.Session) error) (convo.Session, error)
	ListSessions(ctx context.Context) ([]convo.Session, error)
}

// TranscriptLog is the append-only ordered record of turns per session.
type TranscriptLog interface {
	// Append assigns the next sequence number for the turn's session and
	// persists the turn. The returned turn carries the assigned Seq.
	Append(ctx context.Context, turn convo.Turn) (convo.Turn, error)
	// Transcript returns all turns for the session in sequence order.
	// Returns ErrNotFound when the session has no transcript at all.
	Transcript(ctx context.Context, sessionID string) ([]convo.Turn, error)
}

// Store combines the session and transcript contracts.
type Store interface {
	SessionStore
	TranscriptLog
}
