/*
Package cachekit: the connection driver (C6).

Server owns the TCP accept loop, pairs each accepted connection with a
ConnectionState, reads raw bytes into it, drains fully parsed commands in a
loop, and writes each dispatch result back. On a protocol error it writes a
"-ERR <message>\r\n" reply and closes the connection, per §7.

The goroutine-per-connection model, timeout/limit configuration, idle
checker, and graceful shutdown sequencing follow the usual accept-loop
pattern for a Go TCP server; the per-command blocking read/parse/write loop
common to that pattern has been replaced here by a buffer-feed architecture
that supports resumable parsing (C1/C2), and command routing goes through a
fixed Dispatcher instead of a pluggable handler map.
*/
package cachekit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// readChunkSize is how many bytes Server reads from a connection per Read
// call before handing them to the connection's ConnectionState.
const readChunkSize = 4096

// NewServer creates a cache server bound to address, wired to dispatch
// commands against ks and log through log.
func NewServer(address string, ks *Keyspace, log *logrus.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = NewLogger()
	}

	return &Server{
		Address:        address,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxConnections: 1000,
		MaxBufferSize:  DefaultMaxBufferSize,
		Log:            log,
		dispatcher:     NewDispatcher(ks, log),
		activeConns:    make(map[*Connection]struct{}),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Listen binds the server's network listener. Idempotent.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	var err error
	s.listener, err = net.Listen("tcp", s.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}
	s.Log.Infof("cachekit server listening on %s", s.Address)
	return nil
}

// Serve accepts connections until shutdown, handling each on its own
// goroutine. Returns nil on clean shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	defer s.listener.Close()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return nil
			}
			s.Log.Errorf("accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go func(netConn net.Conn) {
			defer s.wg.Done()

			if s.MaxConnections > 0 && s.connCount.Add(1) > int64(s.MaxConnections) {
				s.connCount.Add(-1)
				netConn.Close()
				s.Log.Warnf("connection limit reached, rejecting %s", netConn.RemoteAddr())
				return
			}

			s.handleConnection(netConn)
			s.connCount.Add(-1)
		}(conn)
	}
}

// ListenAndServe is a convenience wrapper over Listen + Serve.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown stops accepting new connections, closes active ones, runs
// shutdown hooks, and waits for connection goroutines to finish or ctx to
// expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.cancel()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			return err
		}
	}

	s.mu.RLock()
	for conn := range s.activeConns {
		conn.Close()
	}
	s.mu.RUnlock()

	s.mu.Lock()
	for _, fn := range s.onShutdown {
		fn()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// OnShutdown registers a cleanup function to run during graceful shutdown.
func (s *Server) OnShutdown(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onShutdown = append(s.onShutdown, f)
}

// GetActiveConnections reports the current connection count.
func (s *Server) GetActiveConnections() int64 {
	return s.connCount.Load()
}

// IsShutdown reports whether the server is shutting down.
func (s *Server) IsShutdown() bool {
	return s.inShutdown.Load()
}

func (s *Server) handleConnection(netConn net.Conn) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	conn := &Connection{
		conn:     netConn,
		writer:   bufio.NewWriter(netConn),
		parser:   NewConnectionState(ServerMode),
		server:   s,
		ctx:      ctx,
		cancel:   cancel,
		lastUsed: time.Now(),
	}
	if s.MaxBufferSize > 0 {
		conn.parser.maxBuffer = s.MaxBufferSize
	}
	conn.state.Store(int32(StateNew))

	s.mu.Lock()
	s.activeConns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.activeConns, conn)
		s.mu.Unlock()
	}()

	if s.ConnStateHook != nil {
		s.ConnStateHook(netConn, StateNew)
	}
	conn.setState(StateActive)

	buf := make([]byte, readChunkSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if s.ReadTimeout > 0 {
			if err := netConn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
				s.Log.Errorf("failed to set read deadline: %v", err)
				return
			}
		}

		n, err := netConn.Read(buf)
		if n > 0 {
			conn.mu.Lock()
			conn.lastUsed = time.Now()
			conn.mu.Unlock()
			s.setConnectionActive(conn)

			if feedErr := conn.parser.Feed(buf[:n]); feedErr != nil {
				s.writeProtocolError(conn, feedErr)
				return
			}

			if !s.drainCommands(conn) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.Log.Errorf("read error from %s: %v", netConn.RemoteAddr(), err)
			}
			return
		}
	}
}

// drainCommands dispatches every fully parsed command currently queued on
// conn, writing each reply back. It returns false if the connection should
// be torn down (write failure).
func (s *Server) drainCommands(conn *Connection) bool {
	for {
		frame, ok := conn.parser.NextCommand()
		if !ok {
			return true
		}

		cmd, err := CommandFromFrame(frame)
		var reply []byte
		if err != nil {
			reply = EncodeSimpleError("empty command")
		} else {
			reply = s.dispatcher.Dispatch(cmd)
		}

		if s.WriteTimeout > 0 {
			if err := conn.conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout)); err != nil {
				return false
			}
		}
		if err := conn.writeReply(reply); err != nil {
			s.Log.Errorf("write error to %s: %v", conn.RemoteAddr(), err)
			return false
		}
	}
}

// writeProtocolError replies "-ERR <message>\r\n" and lets the caller close
// the connection, per §7's fatal-protocol-error handling.
func (s *Server) writeProtocolError(conn *Connection, err error) {
	var protoErr *ProtocolError
	msg := err.Error()
	if errors.As(err, &protoErr) {
		msg = protoErr.Msg
	}
	_ = conn.writeReply(EncodeSimpleError(msg))
}

func (s *Server) setConnectionActive(conn *Connection) {
	if ConnState(conn.state.Load()) == StateIdle {
		conn.setState(StateActive)
	}
}

// StartIdleChecker launches a background goroutine that marks connections
// idle once they exceed IdleTimeout without activity. Runs until the
// server's context is cancelled.
func (s *Server) StartIdleChecker() {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.checkIdleConnections()
			}
		}
	}()
}

func (s *Server) checkIdleConnections() {
	if s.IdleTimeout <= 0 {
		return
	}
	threshold := time.Now().Add(-s.IdleTimeout)

	s.mu.RLock()
	conns := make([]*Connection, 0, len(s.activeConns))
	for c := range s.activeConns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.mu.RLock()
		lastUsed := c.lastUsed
		c.mu.RUnlock()
		if ConnState(c.state.Load()) == StateActive && lastUsed.Before(threshold) {
			c.setState(StateIdle)
		}
	}
}
