package chat

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const ConnectedAck = "Connected to the chat."

func joinNotice(nickname string) string  { return nickname + " has joined the chat." }
func leaveNotice(nickname string) string { return nickname + " has left the chat." }
func evictNotice(nickname string) string {
	return nickname + " was disconnected by a new connection."
}
func chatLine(nickname, text string) string { return fmt.Sprintf("%s: %s", nickname, text) }

// Hub owns presence and offline queues. Broadcasts, admissions and departures
// are serialized so that a session never sees a message both live and in its
// replay, and never misses one between its removal and disconnect mark.
type Hub struct {
	mu     sync.Mutex
	last   time.Time
	now    func() time.Time
	reg    *Registry
	queues *QueueStore
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		now:    time.Now,
		reg:    NewRegistry(logger),
		queues: NewQueueStore(),
		logger: logger,
	}
}

func (h *Hub) Registry() *Registry { return h.reg }

func (h *Hub) Queues() *QueueStore { return h.queues }

// stamp returns a strictly increasing timestamp. Callers hold h.mu.
func (h *Hub) stamp() time.Time {
	t := h.now()
	if !t.After(h.last) {
		t = h.last.Add(time.Nanosecond)
	}
	h.last = t
	return t
}

// BroadcastOption narrows the audience of a broadcast.
type BroadcastOption func(*audience)

// From marks nickname as the author; it does not get its own message back.
func From(nickname string) BroadcastOption {
	return func(a *audience) { a.sender, a.hasSender = nickname, true }
}

// Except keeps the broadcast away from nickname, live and queued.
func Except(nickname string) BroadcastOption {
	return func(a *audience) { a.exclude, a.hasExclude = nickname, true }
}

// audience tracks presence separately from the names: an empty nickname is a
// valid sender.
type audience struct {
	sender     string
	hasSender  bool
	exclude    string
	hasExclude bool
}

func (a audience) skips(nickname string) bool {
	return (a.hasSender && nickname == a.sender) || (a.hasExclude && nickname == a.exclude)
}

// Broadcast delivers message to every active session not filtered out by
// opts, and appends it to the offline queue of every known nickname not
// filtered out.
func (h *Hub) Broadcast(message string, opts ...BroadcastOption) {
	var to audience
	for _, opt := range opts {
		opt(&to)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked("chat", message, to)
}

func (h *Hub) broadcastLocked(kind, message string, to audience) {
	start := time.Now()
	at := h.stamp()

	for _, s := range h.reg.Active() {
		if to.skips(s.Nickname) {
			continue
		}
		if !s.Send(message) {
			DroppedDeliveries.Inc()
			h.logger.Debug("delivery dropped", "nickname", s.Nickname, "session", s.ID)
		}
	}
	for _, nickname := range h.queues.Nicknames() {
		if to.skips(nickname) {
			continue
		}
		h.queues.Enqueue(nickname, message, at)
	}

	MessagesTotal.WithLabelValues(kind).Inc()
	BroadcastDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// Admit registers s under nickname, queues the connect ack and any pending
// replay on it, then announces the join. A previous holder of the nickname is
// evicted and the others are told about it.
func (h *Hub) Admit(s *Session, nickname string) (replayed int) {
	h.mu.Lock()
	s.Nickname = nickname
	h.queues.Ensure(nickname)

	// The outbox is filled before registration so nothing can overtake the ack.
	if prior, ok := h.reg.Lookup(nickname); ok && prior != s {
		h.queues.MarkDisconnected(nickname, h.stamp())
	}
	replay := h.queues.ReplayAndTrim(nickname)
	prelude := make([]string, 0, len(replay)+1)
	prelude = append(prelude, ConnectedAck)
	prelude = append(prelude, replay...)
	s.open(prelude)

	others := audience{exclude: nickname, hasExclude: true}
	evicted := h.reg.Register(s)
	if evicted != nil {
		h.broadcastLocked("evict", evictNotice(nickname), others)
	}
	h.broadcastLocked("join", joinNotice(nickname), others)
	h.mu.Unlock()

	// Closing a TLS conn may block on close_notify; keep it off the hub lock.
	if evicted != nil {
		_ = evicted.Close()
	}
	return len(replay)
}

// Release unregisters s, records the disconnect and announces the leave. It
// does nothing for a session that is no longer registered, such as one that
// was evicted.
func (h *Hub) Release(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	nickname, ok := h.reg.Remove(s)
	if !ok {
		return
	}
	h.queues.MarkDisconnected(nickname, h.stamp())
	h.broadcastLocked("leave", leaveNotice(nickname), audience{exclude: nickname, hasExclude: true})
}

// Shutdown unregisters and closes every session without announcing departures.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := h.reg.Clear()
	h.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}
