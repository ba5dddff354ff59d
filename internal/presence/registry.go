package presence

import (
	"log"
	"sync"
	"time"
)

// UserPresence is the registry's view of one user. A user has at most one
// entry; a second connection replaces the first one's ConnectionID.
type UserPresence struct {
	UserID       string
	ConnectionID string
	IsOnline     bool
	LastOnline   time.Time
	// OpenConversations lists the conversation views the user currently has
	// open. Used for typing/presence fan-out only, never for delivery.
	OpenConversations []string
}

type entry struct {
	connectionID string
	isOnline     bool
	lastOnline   time.Time
	open         map[string]struct{}
}

// Registry maps user identities to live connections. All state is
// process-local; every access goes through the mutex.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// SetOnline binds userID to connectionID. An existing entry keeps its open
// conversation set, so a reconnect does not lose room bookkeeping.
func (r *Registry) SetOnline(userID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		e = &entry{open: make(map[string]struct{})}
		r.entries[userID] = e
	}
	e.connectionID = connectionID
	e.isOnline = true
}

// SetOffline marks userID offline and stamps LastOnline. Returns the stamp
// so callers can flush it to durable storage. Unknown users are a no-op.
func (r *Registry) SetOffline(userID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return time.Time{}, false
	}
	e.isOnline = false
	e.connectionID = ""
	e.lastOnline = time.Now()
	return e.lastOnline, true
}

// Get returns a snapshot of the presence entry. Absence is a normal case
// (never connected), not an error.
func (r *Registry) Get(userID string) (UserPresence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return UserPresence{}, false
	}
	open := make([]string, 0, len(e.open))
	for id := range e.open {
		open = append(open, id)
	}
	return UserPresence{
		UserID:            userID,
		ConnectionID:      e.connectionID,
		IsOnline:          e.isOnline,
		LastOnline:        e.lastOnline,
		OpenConversations: open,
	}, true
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	return ok && e.isOnline
}

func (r *Registry) TrackOpenConversation(userID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[userID]; ok {
		e.open[conversationID] = struct{}{}
	}
}

func (r *Registry) UntrackOpenConversation(userID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[userID]; ok {
		delete(e.open, conversationID)
	}
}

// HasOpenConversation reports whether userID currently has the conversation
// in view.
func (r *Registry) HasOpenConversation(userID, conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return false
	}
	_, open := e.open[conversationID]
	return open
}

// SharesOpenConversation reports whether both users currently have at least
// one conversation open in common. Used to scope presence fan-out.
func (r *Registry) SharesOpenConversation(userA, userB string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ea, ok := r.entries[userA]
	if !ok {
		return false
	}
	eb, ok := r.entries[userB]
	if !ok {
		return false
	}
	for id := range ea.open {
		if _, open := eb.open[id]; open {
			return true
		}
	}
	return false
}

// Sweep evicts entries that have been offline longer than staleAfter. Pure
// memory hygiene; absence is equivalent to "never online".
func (r *Registry) Sweep(staleAfter time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	cutoff := time.Now().Add(-staleAfter)
	for userID, e := range r.entries {
		if !e.isOnline && e.lastOnline.Before(cutoff) {
			delete(r.entries, userID)
			evicted++
		}
	}
	return evicted
}

// RunSweeper periodically evicts stale entries. Intended to run as a
// goroutine from main.
func (r *Registry) RunSweeper(every, staleAfter time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		if n := r.Sweep(staleAfter); n > 0 {
			log.Printf("Presence sweep evicted %d stale entries", n)
		}
	}
}
