package chat

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

type Options struct {
	Addr      string
	TLSConfig *tls.Config
	Outbox    int
	Rate      float64
	Burst     int
}

type Server struct {
	opts     Options
	logger   *slog.Logger
	hub      *Hub
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:   opts,
		logger: logger,
		hub:    NewHub(logger),
		ctx:    ctx,
		cancel: cancel,
	}
}

// LoadTLSConfig reads a PEM certificate/key pair for the listener.
func LoadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (s *Server) Hub() *Hub { return s.hub }

// Addr is the bound listener address, valid after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Start() error {
	if s.opts.TLSConfig == nil {
		return ErrNoTLSConfig
	}
	ln, err := tls.Listen("tcp", s.opts.Addr, s.opts.TLSConfig)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.logger.Info("server started", "addr", ln.Addr().String())
	return nil
}

// Stop closes the listener and every session, then waits for the handlers.
func (s *Server) Stop() {
	s.logger.Info("shutting down")

	if s.listener != nil {
		_ = s.listener.Close()
	}
	// Unregister first so handlers woken by the cancel find nothing to release.
	s.hub.Shutdown()
	s.cancel()
	s.wg.Wait()

	s.logger.Info("shutdown complete")
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() == nil && !isNetClosedError(err) {
				s.logger.Error("accept failed", "error", err)
			}
			// the listener is gone; nothing more to accept
			return
		}

		sess := NewSession(conn, s.opts.Outbox)
		s.logger.Debug("client connected", "addr", conn.RemoteAddr().String(), "session", sess.ID)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			HandleSession(s.ctx, sess, s.hub, HandlerOptions{
				Logger: s.logger,
				Rate:   s.opts.Rate,
				Burst:  s.opts.Burst,
			})
		}()
	}
}
