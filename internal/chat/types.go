package chat

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is one accepted connection and the nickname it claimed.
type Session struct {
	ID       string
	Conn     net.Conn
	Nickname string

	state     atomic.Int32
	outCap    int
	out       chan string // outbound lines, drained by the writer goroutine
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(conn net.Conn, outbox int) *Session {
	if outbox <= 0 {
		outbox = 64
	}
	return &Session{
		ID:     uuid.NewString(),
		Conn:   conn,
		outCap: outbox,
		done:   make(chan struct{}),
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// open allocates the outbound queue with the prelude lines already in it and
// marks the session active. It must run before the session becomes visible to
// other goroutines.
func (s *Session) open(prelude []string) {
	s.out = make(chan string, s.outCap+len(prelude))
	for _, line := range prelude {
		s.out <- line
	}
	s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive))
}

// Send queues a line without blocking. It reports false when the line was
// dropped because the session is closed, not yet open, or its outbox is full.
func (s *Session) Send(line string) bool {
	if s.out == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- line:
		return true
	default:
		return false
	}
}

// Close is safe to call more than once and from any goroutine.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.done)
		if s.Conn != nil {
			err = s.Conn.Close()
		}
	})
	return err
}

var (
	ErrNoTLSConfig = errorString("tls config is required")
)

type errorString string

func (e errorString) Error() string { return string(e) }
