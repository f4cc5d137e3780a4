package chat

import (
	"log/slog"
	"sync"
)

// Registry tracks active sessions. A nickname maps to at most one session;
// registering a taken nickname evicts the previous holder.
type Registry struct {
	mu       sync.RWMutex
	sessions map[*Session]string
	byNick   map[string]*Session
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[*Session]string),
		byNick:   make(map[string]*Session),
		logger:   logger,
	}
}

// Register inserts s under s.Nickname. If another session already holds the
// nickname it is removed and returned; closing it is up to the caller.
func (r *Registry) Register(s *Session) (evicted *Session) {
	r.mu.Lock()
	prior, taken := r.byNick[s.Nickname]
	if taken && prior != s {
		delete(r.sessions, prior)
		evicted = prior
	}
	r.sessions[s] = s.Nickname
	r.byNick[s.Nickname] = s
	n := len(r.sessions)
	r.mu.Unlock()

	ConnectedClients.Set(float64(n))

	if evicted != nil {
		EvictionsTotal.Inc()
		r.logger.Info("session evicted", "nickname", s.Nickname, "session", evicted.ID, "by", s.ID)
	}
	r.logger.Info("user registered", "nickname", s.Nickname, "session", s.ID)
	return evicted
}

// Remove drops s and returns the nickname it was registered under. ok is false
// when s was not registered, e.g. because it was already evicted.
func (r *Registry) Remove(s *Session) (nickname string, ok bool) {
	r.mu.Lock()
	nickname, ok = r.sessions[s]
	if ok {
		delete(r.sessions, s)
		if r.byNick[nickname] == s {
			delete(r.byNick, nickname)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if ok {
		ConnectedClients.Set(float64(n))
		r.logger.Info("user left", "nickname", nickname, "session", s.ID)
	}
	return nickname, ok
}

// Active returns a snapshot of the registered sessions.
func (r *Registry) Active() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		list = append(list, s)
	}
	return list
}

func (r *Registry) Lookup(nickname string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byNick[nickname]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Clear forgets every registered session and returns them.
func (r *Registry) Clear() []*Session {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		list = append(list, s)
	}
	r.sessions = make(map[*Session]string)
	r.byNick = make(map[string]*Session)
	r.mu.Unlock()

	ConnectedClients.Set(0)
	return list
}
