/*
Package cachekit: per-connection driver state.

Connection wraps one accepted net.Conn together with the ConnectionState
(C2) that turns its byte stream into command frames, and a buffered writer
for replies, flushed after each reply. It tracks connection lifecycle (StateNew -> StateActive
-> StateIdle -> StateClosed) so operators can observe connection churn via
ConnStateHook, independent of how command routing underneath it works.
*/
package cachekit

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Connection represents a single client connection to the cache server.
type Connection struct {
	conn      net.Conn
	writer    *bufio.Writer
	parser    *ConnectionState
	server    *Server
	state     atomic.Int32
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	lastUsed  time.Time
}

// setState updates the connection state and fires the server's
// ConnStateHook, if configured.
func (c *Connection) setState(state ConnState) {
	c.state.Store(int32(state))
	if c.server.ConnStateHook != nil {
		c.server.ConnStateHook(c.conn, state)
	}
}

// Close performs thread-safe connection cleanup exactly once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// GetState returns the current connection state without side effects.
func (c *Connection) GetState() ConnState {
	return ConnState(c.state.Load())
}

// RemoteAddr returns the client's network address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the server's local address for this connection.
func (c *Connection) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// writeReply writes and flushes one reply.
func (c *Connection) writeReply(b []byte) error {
	if _, err := c.writer.Write(b); err != nil {
		return err
	}
	return c.writer.Flush()
}
