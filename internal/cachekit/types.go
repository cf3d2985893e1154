/*
Package cachekit implements an in-memory, Redis-protocol-compatible cache
server: a streaming RESP codec, a typed keyspace with TTL expiry, a fixed
command dispatcher, and a background expiry reaper, fronted by a
connection driver that owns one TCP connection per accepted client.

Core Types:
- ConnState: client connection lifecycle state
- RespType / RespValue: RESP wire value representation
- Command: a parsed command name plus its arguments
- Server: listener, connection tracking, and graceful shutdown

Usage Example:

	ks := cachekit.NewKeyspace()
	log := cachekit.NewLogger()
	server := cachekit.NewServer(":8888", ks, log)
	reaper := cachekit.NewReaper(ks, log)
	go reaper.Run()
	log.Fatal(server.ListenAndServe())
*/
package cachekit

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ConnState represents the state of a client connection.
//
// StateNew -> StateActive -> StateIdle -> StateClosed
//                     ^         |
//                     +---------+
//                   (can cycle between Active/Idle)
type ConnState int

const (
	StateNew    ConnState = iota // Initial connection established
	StateActive                  // Connection actively processing commands
	StateIdle                    // Connection idle, waiting for commands
	StateClosed                  // Connection terminated and cleaned up
)

// RespType identifies which RESP wire type a RespValue carries.
type RespType int

const (
	SimpleString RespType = iota // +OK\r\n style status replies
	ErrorReply                   // -ERR message\r\n
	Integer                      // :42\r\n
	BulkString                   // $<n>\r\n<n bytes>\r\n, or $-1\r\n when Bulk == nil
	Array                        // *<n>\r\n followed by n nested frames
)

// RespValue is a tagged union over the five RESP wire types this server
// speaks. Exactly one of Str/Int/Bulk/Array is meaningful, selected by Type.
//
//   - SimpleString: Str holds the text (no CR/LF).
//   - ErrorReply: Str holds the message, Prefix the error class (default "ERR").
//   - Integer: Int holds the value.
//   - BulkString: Bulk holds the payload; Bulk == nil encodes the RESP null
//     bulk string ($-1\r\n), distinct from an empty payload ($0\r\n\r\n).
//   - Array: Array holds the nested values.
type RespValue struct {
	Type   RespType
	Str    string
	Prefix string
	Int    int64
	Bulk   []byte
	Array  []RespValue
}

// Command is a parsed command frame: a non-empty RESP array whose first
// element named the command and whose remaining elements are arguments.
type Command struct {
	Name string
	Args []string
}

// Server is the connection driver (C6): it accepts TCP connections, feeds
// their bytes through a per-connection ConnectionState, and dispatches each
// fully parsed command to the shared Keyspace via a Dispatcher.
type Server struct {
	// Network configuration
	Address string

	// Timeout configuration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Resource limits
	MaxConnections int
	MaxBufferSize  int

	// Monitoring
	Log           *logrus.Logger
	ConnStateHook func(net.Conn, ConnState)

	// Command processing
	dispatcher *Dispatcher

	// Runtime state
	listener    net.Listener
	activeConns map[*Connection]struct{}
	connCount   atomic.Int64
	inShutdown  atomic.Bool
	mu          sync.RWMutex
	onShutdown  []func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}
