package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
)

// memoryHistory is a mutex-guarded slice of messages.
type memoryHistory struct {
	mu   sync.Mutex
	msgs []llm.Message
}

func (h *memoryHistory) Add(_ context.Context, msgs ...llm.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msgs...)
	return nil
}

func (h *memoryHistory) Messages(_ context.Context) ([]llm.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]llm.Message, len(h.msgs))
	copy(out, h.msgs)
	return out, nil
}

func (h *memoryHistory) Clear(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = nil
	return nil
}

type memoryEntry struct {
	session  *Session
	lastUsed time.Time
}

// MemoryRegistry keeps sessions in process. Sessions are lost on restart.
type MemoryRegistry struct {
	opts Options
	now  func() time.Time

	mu       sync.Mutex
	lru      *list.List // front = most recently used
	sessions map[string]*list.Element

	stop chan struct{}
	done chan struct{}
}

// NewMemoryRegistry creates an in-process registry. When IdleTTL and
// JanitorInterval are both set, a background goroutine sweeps idle sessions
// until Close is called.
func NewMemoryRegistry(opts Options) *MemoryRegistry {
	r := &MemoryRegistry{
		opts:     opts,
		now:      time.Now,
		lru:      list.New(),
		sessions: make(map[string]*list.Element),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if opts.IdleTTL > 0 && opts.JanitorInterval > 0 {
		go r.janitor()
	} else {
		close(r.done)
	}
	return r
}

func (r *MemoryRegistry) Create(_ context.Context, cfg lessons.Config) (*Session, error) {
	now := r.now()
	s := &Session{
		ID:        uuid.NewString(),
		Config:    cfg,
		CreatedAt: now,
		History:   &memoryHistory{},
	}

	var evicted []string
	r.mu.Lock()
	r.sessions[s.ID] = r.lru.PushFront(&memoryEntry{session: s, lastUsed: now})
	for r.opts.MaxSessions > 0 && r.lru.Len() > r.opts.MaxSessions {
		evicted = append(evicted, r.removeElement(r.lru.Back()))
	}
	r.mu.Unlock()

	r.notifyEvicted(evicted...)
	return s, nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*Session, error) {
	r.mu.Lock()
	el, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	entry := el.Value.(*memoryEntry)
	now := r.now()
	if r.expired(entry, now) {
		r.removeElement(el)
		r.mu.Unlock()
		r.notifyEvicted(id)
		return nil, ErrNotFound
	}
	entry.lastUsed = now
	r.lru.MoveToFront(el)
	r.mu.Unlock()
	return entry.session, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.sessions[id]; ok {
		r.removeElement(el)
	}
	return nil
}

// Len returns the number of live sessions.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

// Close stops the janitor.
func (r *MemoryRegistry) Close() error {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
	return nil
}

// Sweep evicts every idle session and returns how many were removed.
func (r *MemoryRegistry) Sweep() int {
	var evicted []string
	r.mu.Lock()
	now := r.now()
	// Oldest entries sit at the back.
	for el := r.lru.Back(); el != nil; {
		prev := el.Prev()
		if !r.expired(el.Value.(*memoryEntry), now) {
			break
		}
		evicted = append(evicted, r.removeElement(el))
		el = prev
	}
	r.mu.Unlock()

	r.notifyEvicted(evicted...)
	return len(evicted)
}

func (r *MemoryRegistry) janitor() {
	defer close(r.done)
	ticker := time.NewTicker(r.opts.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *MemoryRegistry) expired(e *memoryEntry, now time.Time) bool {
	return r.opts.IdleTTL > 0 && now.Sub(e.lastUsed) > r.opts.IdleTTL
}

// removeElement must be called with r.mu held. It returns the removed id.
func (r *MemoryRegistry) removeElement(el *list.Element) string {
	entry := el.Value.(*memoryEntry)
	delete(r.sessions, entry.session.ID)
	r.lru.Remove(el)
	return entry.session.ID
}

func (r *MemoryRegistry) notifyEvicted(ids ...string) {
	if r.opts.OnEvict == nil {
		return
	}
	for _, id := range ids {
		r.opts.OnEvict(id)
	}
}
