package chat

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"
)

type pipeClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func (c *pipeClient) send(t *testing.T, line string) {
	t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
}

func (c *pipeClient) expect(t *testing.T, want string) {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(time.Second))
	got, err := readLine(c.r)
	if err != nil {
		t.Fatalf("read (want %q): %v", want, err)
	}
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// startPipeSession runs a handler on one end of a pipe and completes the
// nickname handshake from the other end.
func startPipeSession(t *testing.T, ctx context.Context, h *Hub, nickname string, opts HandlerOptions) (*pipeClient, <-chan struct{}) {
	t.Helper()
	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		HandleSession(ctx, NewSession(server, 16), h, opts)
	}()
	t.Cleanup(func() {
		_ = client.Close()
		<-done
	})

	c := &pipeClient{conn: client, r: bufio.NewReader(client)}
	c.expect(t, HandshakeRequest)
	c.send(t, nickname)
	c.expect(t, ConnectedAck)
	return c, done
}

func TestHandleSession_RelaysChat(t *testing.T) {
	h, _ := newTestHub()
	bob := admit(h, "bob")

	alice, _ := startPipeSession(t, context.Background(), h, "alice", HandlerOptions{})
	if got := waitForPrefix(t, bob.out, "alice "); got != "alice has joined the chat." {
		t.Fatalf("bob got %q", got)
	}

	alice.send(t, "hello")
	if got := nextLine(t, bob.out); got != "alice: hello" {
		t.Fatalf("bob got %q", got)
	}

	h.Broadcast("bob: hey", From("bob"))
	alice.expect(t, "bob: hey")
}

func TestHandleSession_DropsNicknameEchoAndBlankLines(t *testing.T) {
	h, _ := newTestHub()
	bob := admit(h, "bob")

	alice, _ := startPipeSession(t, context.Background(), h, "alice", HandlerOptions{})
	waitForPrefix(t, bob.out, "alice has joined")

	alice.send(t, "alice")
	alice.send(t, "")
	alice.send(t, "real message")

	if got := nextLine(t, bob.out); got != "alice: real message" {
		t.Fatalf("bob got %q, want only the real message", got)
	}
}

func TestHandleSession_TeardownOnClose(t *testing.T) {
	h, _ := newTestHub()
	bob := admit(h, "bob")

	alice, done := startPipeSession(t, context.Background(), h, "alice", HandlerOptions{})
	waitForPrefix(t, bob.out, "alice has joined")

	_ = alice.conn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit after peer closed")
	}

	if got := nextLine(t, bob.out); got != "alice has left the chat." {
		t.Fatalf("bob got %q", got)
	}
	if _, ok := h.Registry().Lookup("alice"); ok {
		t.Fatal("alice still registered")
	}
	if last, _ := h.Queues().LastDisconnect("alice"); last.IsZero() {
		t.Fatal("disconnect time not recorded")
	}
}

func TestHandleSession_ReplayBeforeLiveTraffic(t *testing.T) {
	h, _ := newTestHub()
	admit(h, "bob")

	first, done := startPipeSession(t, context.Background(), h, "alice", HandlerOptions{})
	_ = first.conn.Close()
	<-done

	h.Broadcast("bob: you there?", From("bob"))

	again, _ := startPipeSession(t, context.Background(), h, "alice", HandlerOptions{})
	again.expect(t, "bob: you there?")
	if n := h.Queues().Len("alice"); n != 0 {
		t.Fatalf("alice queue len = %d after replay", n)
	}
}

func TestHandleSession_RateLimit(t *testing.T) {
	h, _ := newTestHub()
	bob := admit(h, "bob")

	alice, done := startPipeSession(t, context.Background(), h, "alice", HandlerOptions{Rate: 0.001, Burst: 1})
	waitForPrefix(t, bob.out, "alice has joined")

	alice.send(t, "one")
	alice.send(t, "two")
	_ = alice.conn.Close()
	<-done

	if got := nextLine(t, bob.out); got != "alice: one" {
		t.Fatalf("bob got %q", got)
	}
	if got := nextLine(t, bob.out); got != "alice has left the chat." {
		t.Fatalf("second line should be the leave notice, got %q", got)
	}
}

func TestHandleSession_ContextCancelClosesSession(t *testing.T) {
	h, _ := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())

	_, done := startPipeSession(t, ctx, h, "alice", HandlerOptions{})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler ignored context cancellation")
	}
}

func TestHandleSession_HandshakeReadFailure(t *testing.T) {
	h, _ := newTestHub()
	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		HandleSession(context.Background(), NewSession(server, 16), h, HandlerOptions{})
	}()

	r := bufio.NewReader(client)
	if line, err := readLine(r); err != nil || line != HandshakeRequest {
		t.Fatalf("handshake = %q, %v", line, err)
	}
	_ = client.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not exit")
	}
	if h.Registry().Len() != 0 {
		t.Fatal("a session that never sent a nickname was registered")
	}
}
