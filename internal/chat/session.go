package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"golang.org/x/time/rate"
)

const HandshakeRequest = "NICK"

type HandlerOptions struct {
	Logger *slog.Logger
	// Rate caps inbound chat lines per second for one session; 0 disables it.
	Rate   float64
	Burst  int
}

// HandleSession drives one connection through handshake, relay and teardown.
// It returns once the session is closed.
func HandleSession(ctx context.Context, s *Session, hub *Hub, opts HandlerOptions) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", s.ID)
	if s.Conn != nil && s.Conn.RemoteAddr() != nil {
		logger = logger.With("remote", s.Conn.RemoteAddr().String())
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer func() {
		stop()
		if err := s.Close(); err != nil && !isNetClosedError(err) {
			logger.Warn("close connection", "error", err)
		}
	}()

	reader := bufio.NewReader(s.Conn)

	if _, err := io.WriteString(s.Conn, HandshakeRequest+"\n"); err != nil {
		logger.Debug("handshake write failed", "error", err)
		return
	}
	nickname, err := readLine(reader)
	if err != nil {
		handleReadError(logger, err)
		return
	}

	replayed := hub.Admit(s, nickname)
	StartOutboundWriter(s)
	logger = logger.With("nickname", nickname)
	logger.Info("session active", "replayed", replayed)

	defer hub.Release(s)

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}

	for {
		line, err := readLine(reader)
		if err != nil {
			handleReadError(logger, err)
			return
		}
		switch {
		case line == "":
			continue
		case line == nickname:
			// Some clients echo their nickname after the handshake.
			continue
		}
		if limiter != nil && !limiter.Allow() {
			RateLimitedTotal.Inc()
			logger.Debug("line dropped by rate limiter")
			continue
		}
		hub.Broadcast(chatLine(nickname, line), From(nickname))
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err == nil {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF && line != "" {
		// last line without newline
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err == io.EOF {
		return "", io.EOF
	}
	return "", fmt.Errorf("read: %w", err)
}

func isNetClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func handleReadError(logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.Info("client closed connection")
	case isNetClosedError(err):
		logger.Debug("connection closed")
	case isTimeout(err):
		logger.Warn("reading timeout")
	default:
		logger.Error("read failed", "error", err)
	}
}
