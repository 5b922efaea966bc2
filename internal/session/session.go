// Package session keeps per-lesson conversation state. A Registry owns every
// live session; the memory backend evicts idle and least recently used
// sessions, the redis backend lets several server processes share them.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
)

// ErrNotFound is returned for unknown, ended or evicted session ids.
var ErrNotFound = errors.New("session not found")

// History is the ordered message log of one conversation. It only grows
// until Clear is called.
type History interface {
	Add(ctx context.Context, msgs ...llm.Message) error
	Messages(ctx context.Context) ([]llm.Message, error)
	Clear(ctx context.Context) error
}

// Session is a started lesson.
type Session struct {
	ID        string
	Config    lessons.Config
	CreatedAt time.Time
	History   History
}

// Registry creates and looks up sessions.
type Registry interface {
	// Create starts a session with a fresh id and an empty history.
	Create(ctx context.Context, cfg lessons.Config) (*Session, error)

	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete ends a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	Close() error
}

// Options tunes registry eviction.
type Options struct {
	// IdleTTL evicts sessions not used for this long. Zero disables it.
	IdleTTL time.Duration

	// MaxSessions caps the memory backend; the least recently used session
	// is evicted first. Zero means unlimited.
	MaxSessions int

	// JanitorInterval is how often the memory backend sweeps idle sessions.
	JanitorInterval time.Duration

	// OnEvict is called by the memory backend, outside its lock, for every
	// session dropped by the LRU cap or idle expiry. Delete does not call it.
	OnEvict func(id string)
}

// DefaultOptions returns the registry defaults.
func DefaultOptions() Options {
	return Options{
		IdleTTL:         2 * time.Hour,
		MaxSessions:     1000,
		JanitorInterval: 10 * time.Minute,
	}
}
