package dispatch

import (
	"bufio"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/omotayoh/vRvoice/pkg/wire"
)

// DefaultShutdownTimeout bounds how long Shutdown waits for connection
// handlers after closing their sockets.
const DefaultShutdownTimeout = 2 * time.Second

// Server accepts NDJSON command connections and feeds validated actions to
// the queue. Every request line gets exactly one ack line; a rejected line
// never closes the connection, so a client can pipeline through mistakes.
type Server struct {
	queue  *ActionQueue
	secret string

	ln net.Listener

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool

	wg sync.WaitGroup
}

// NewServer builds a server over queue. An empty secret disables the token
// check entirely.
func NewServer(queue *ActionQueue, secret string) *Server {
	return &Server{
		queue:  queue,
		secret: secret,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Listen binds addr ("host:port"). Call Serve afterwards; Addr is valid in
// between, which lets tests bind ":0" and read back the port.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dispatch: listen %s: %w", addr, err)
	}
	s.ln = ln
	log.Info("Command listener bound", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve runs the accept loop until Shutdown closes the listener. It returns
// nil on orderly shutdown.
func (s *Server) Serve() error {
	if s.ln == nil {
		return errors.New("dispatch: Serve called before Listen")
	}
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return fmt.Errorf("dispatch: accept: %w", err)
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handle(conn)
		}()
	}
}

// Shutdown closes the listener and all live connections, then waits up to
// timeout for handlers to finish. A zero timeout uses the default.
func (s *Server) Shutdown(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	s.mu.Lock()
	s.closed = true
	if s.ln != nil {
		s.ln.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("dispatch: shutdown: %d handlers still running after %s", s.liveConns(), timeout)
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) liveConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// handle serves one connection: read lines, ack each, until EOF or error.
func (s *Server) handle(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	log.Debug("Command connection open", "remote", remote)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		resp := s.process(line, remote)
		ack, err := wire.EncodeLine(resp)
		if err != nil {
			log.Error("Ack encode failed", "err", err)
			return
		}
		if _, err := conn.Write(ack); err != nil {
			log.Debug("Ack write failed", "remote", remote, "err", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Debug("Command connection error", "remote", remote, "err", err)
	}
	log.Debug("Command connection closed", "remote", remote)
}

// process validates one request line and enqueues accepted actions. The
// check order is fixed: parse, authenticate, recognise the action, then
// require its fields.
func (s *Server) process(line []byte, remote string) wire.Response {
	req, err := wire.DecodeRequest(line)
	if err != nil {
		log.Warn("Rejected request", "remote", remote, "reason", wire.ErrInvalidJSON)
		return wire.Response{Ok: false, Error: wire.ErrInvalidJSON}
	}
	if s.secret != "" && req.Token != s.secret {
		log.Warn("Rejected request", "remote", remote, "reason", wire.ErrUnauthorized, "action", req.Action)
		return wire.Response{Ok: false, Error: wire.ErrUnauthorized}
	}

	switch req.Action {
	case wire.ActionPing:
		return wire.Response{Ok: true, Pong: true}

	case wire.ActionActivateVset:
		if req.VsetName == "" {
			return wire.Response{Ok: false, Error: wire.ErrMissingVsetName}
		}
		s.queue.Put(Action{Kind: ActivateByName, Name: req.VsetName})
		return wire.Response{Ok: true}

	case wire.ActionActivatePair:
		if req.Name == "" {
			return wire.Response{Ok: false, Error: wire.ErrMissingName}
		}
		s.queue.Put(Action{Kind: ActivatePair, Group: req.Group, Name: req.Name})
		return wire.Response{Ok: true}

	default:
		log.Warn("Rejected request", "remote", remote, "reason", wire.ErrUnknownAction, "action", req.Action)
		return wire.Response{Ok: false, Error: wire.ErrUnknownAction}
	}
}
