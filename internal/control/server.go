package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/pterminal/internal/logging"
)

// Server accepts control connections on a unix socket.
type Server struct {
	registry *Registry
	logger   *logging.Logger

	mu       sync.Mutex
	listener net.Listener
	path     string
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a server over registry.
func NewServer(registry *Registry, logger *logging.Logger) *Server {
	return &Server{
		registry: registry,
		logger:   logging.OrNop(logger).WithComponent("control"),
		sessions: make(map[string]*session),
	}
}

// Listen binds the socket at path. A leftover socket file is removed when
// nothing answers on it; a live one yields ErrAddressInUse.
func (s *Server) Listen(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		conn, dialErr := net.DialTimeout("unix", path, 200*time.Millisecond)
		if dialErr == nil {
			conn.Close()
			return fmt.Errorf("%w: %s", ErrAddressInUse, path)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
		s.logger.Debug("removed stale socket", "path", path)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.path = path
	s.mu.Unlock()
	s.logger.Info("control socket listening", "path", path)
	return nil
}

// Path returns the bound socket path.
func (s *Server) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Serve accepts connections until ctx ends or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("control server not listening")
	}

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.ServeConn(ctx, conn); err != nil {
				s.logger.Debug("connection ended", "error", err)
			}
		}()
	}
}

// ServeConn serves a single connection until it closes.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) error {
	return s.serveStream(ctx, newLineStream(conn))
}

func (s *Server) serveStream(ctx context.Context, st stream) error {
	sess := newSession(uuid.NewString(), s.registry, st, s.logger)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		st.Close()
		return ErrClosed
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	sess.logger.Debug("connection opened")
	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()
		sess.logger.Debug("connection closed")
	}()
	return sess.run(ctx)
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops accepting, closes open connections and removes the socket.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln, path := s.listener, s.path
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, sess := range sessions {
		sess.stream.Close()
	}
	if path != "" {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}
	return err
}
