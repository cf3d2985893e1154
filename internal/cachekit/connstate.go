/*
Package cachekit: connection parser state (C2).

ConnectionState pairs a growable input buffer with a FIFO of fully parsed
top-level frames, and drives the codec (C1) incrementally. It is cheap to
construct and keeps no reference to caller-owned buffers beyond a Feed call:
Feed copies its argument into the internal buffer.
*/
package cachekit

// ParseMode selects which top-level frame shapes a ConnectionState accepts.
type ParseMode int

const (
	// ServerMode accepts only top-level arrays of bulk strings (requests).
	ServerMode ParseMode = iota
	// ClientMode accepts any of the five top-level RESP types (replies).
	ClientMode
)

// DefaultMaxBufferSize bounds per-connection buffer growth, matching the
// RESP bulk-string ceiling of 512 MiB. Feed returns a *ProtocolError once
// the buffer would grow past this without yielding a complete frame.
const DefaultMaxBufferSize = 512 * 1024 * 1024

// ConnectionState is the per-connection buffer + command queue described by
// spec §3 (ConnectionState) and driven via §4.2 (C2).
type ConnectionState struct {
	mode      ParseMode
	buf       []byte
	queue     []RespValue
	maxBuffer int
}

// NewConnectionState creates connection state for the given parse mode.
func NewConnectionState(mode ParseMode) *ConnectionState {
	return &ConnectionState{mode: mode, maxBuffer: DefaultMaxBufferSize}
}

// Feed appends data to the internal buffer and extracts as many complete
// top-level frames as possible, enqueueing each. It is resumable: partial
// input leaves the buffer intact and the queue unchanged past the last
// complete frame (I3). A malformed (not merely incomplete) frame returns an
// error and the connection must be treated as fatal.
func (c *ConnectionState) Feed(data []byte) error {
	c.buf = append(c.buf, data...)

	for {
		var v RespValue
		var consumed int
		var err error

		switch c.mode {
		case ClientMode:
			v, consumed, err = decodeReply(c.buf, 0)
		default:
			v, consumed, err = decodeCommand(c.buf, 0)
		}
		if err != nil {
			return err
		}
		if consumed == 0 {
			break
		}

		c.queue = append(c.queue, v)
		c.buf = c.buf[consumed:]
	}

	if len(c.buf) > c.maxBuffer {
		return protocolErrorf("input buffer exceeds %d bytes", c.maxBuffer)
	}
	return nil
}

// NextCommand dequeues one fully parsed frame in FIFO order, or reports
// false if none is ready yet.
func (c *ConnectionState) NextCommand() (RespValue, bool) {
	if len(c.queue) == 0 {
		return RespValue{}, false
	}
	v := c.queue[0]
	c.queue = c.queue[1:]
	return v, true
}

// CommandFromFrame extracts a Command from a parsed top-level array frame.
// An empty array is reported back to the caller as an error so the
// dispatcher can reply "-ERR empty command" without special-casing nil
// commands everywhere.
func CommandFromFrame(v RespValue) (Command, error) {
	if v.Type != Array {
		return Command{}, protocolErrorf("expected array, got type %d", v.Type)
	}
	if len(v.Array) == 0 {
		return Command{}, errEmptyCommand
	}

	args := make([]string, len(v.Array)-1)
	for i := 1; i < len(v.Array); i++ {
		args[i-1] = string(v.Array[i].Bulk)
	}

	return Command{Name: string(v.Array[0].Bulk), Args: args}, nil
}
