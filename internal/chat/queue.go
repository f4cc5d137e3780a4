package chat

import (
	"sync"
	"time"
)

type pendingMessage struct {
	at   time.Time
	text string
}

type pendingQueue struct {
	messages       []pendingMessage
	lastDisconnect time.Time
}

// QueueStore keeps, per nickname, the broadcasts produced since that
// nickname last disconnected. Nicknames are never forgotten once seen.
type QueueStore struct {
	mu     sync.Mutex
	queues map[string]*pendingQueue
	total  int
}

func NewQueueStore() *QueueStore {
	return &QueueStore{queues: make(map[string]*pendingQueue)}
}

// Ensure creates an empty queue for nickname if it has none yet.
func (q *QueueStore) Ensure(nickname string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ensureLocked(nickname)
}

func (q *QueueStore) ensureLocked(nickname string) *pendingQueue {
	pq, ok := q.queues[nickname]
	if !ok {
		pq = &pendingQueue{}
		q.queues[nickname] = pq
	}
	return pq
}

// Enqueue appends a message for nickname. Unknown nicknames are created.
func (q *QueueStore) Enqueue(nickname, message string, at time.Time) {
	q.mu.Lock()
	pq := q.ensureLocked(nickname)
	pq.messages = append(pq.messages, pendingMessage{at: at, text: message})
	q.total++
	total := q.total
	q.mu.Unlock()

	PendingMessages.Set(float64(total))
}

// MarkDisconnected records the disconnect time of nickname. Entries at or
// before that time can never be replayed again and are dropped.
func (q *QueueStore) MarkDisconnected(nickname string, at time.Time) {
	q.mu.Lock()
	pq := q.ensureLocked(nickname)
	pq.lastDisconnect = at
	kept := pq.messages[:0]
	for _, m := range pq.messages {
		if m.at.After(at) {
			kept = append(kept, m)
		}
	}
	q.total -= len(pq.messages) - len(kept)
	clear(pq.messages[len(kept):])
	pq.messages = kept
	total := q.total
	q.mu.Unlock()

	PendingMessages.Set(float64(total))
}

// ReplayAndTrim returns, in order, the messages queued for nickname after its
// last disconnect and removes them from the queue.
func (q *QueueStore) ReplayAndTrim(nickname string) []string {
	q.mu.Lock()
	pq, ok := q.queues[nickname]
	if !ok {
		q.mu.Unlock()
		return nil
	}
	var replay []string
	kept := make([]pendingMessage, 0)
	for _, m := range pq.messages {
		if m.at.After(pq.lastDisconnect) {
			replay = append(replay, m.text)
		} else {
			kept = append(kept, m)
		}
	}
	q.total -= len(replay)
	pq.messages = kept
	total := q.total
	q.mu.Unlock()

	PendingMessages.Set(float64(total))
	return replay
}

// Nicknames returns every nickname the store has seen.
func (q *QueueStore) Nicknames() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	names := make([]string, 0, len(q.queues))
	for name := range q.queues {
		names = append(names, name)
	}
	return names
}

// Len reports how many messages are queued for nickname.
func (q *QueueStore) Len(nickname string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if pq, ok := q.queues[nickname]; ok {
		return len(pq.messages)
	}
	return 0
}

func (q *QueueStore) LastDisconnect(nickname string) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pq, ok := q.queues[nickname]
	if !ok {
		return time.Time{}, false
	}
	return pq.lastDisconnect, true
}

// Total is the number of queued messages across all nicknames.
func (q *QueueStore) Total() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}
