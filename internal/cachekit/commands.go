/*
Package cachekit: the command dispatcher (C4).

Dispatcher consumes a parsed Command and returns reply bytes, ready to write
back to the connection. Command name matching is case-insensitive; arguments
are passed verbatim. Arity and option validation always run before any
keyspace mutation (P7): a rejected command never has a side effect.

This server implements a fixed seven-command protocol subset rather than a
pluggable multi-command framework, so CommandType is kept only for the
commands actually dispatched, and command routing goes through direct
methods on Dispatcher instead of a registered-handler indirection.
*/
package cachekit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CommandType names one of the commands this server understands.
type CommandType string

const (
	PING  CommandType = "PING"
	ECHO  CommandType = "ECHO"
	SET   CommandType = "SET"
	GET   CommandType = "GET"
	DEL   CommandType = "DEL"
	LPUSH CommandType = "LPUSH"
	LPOP  CommandType = "LPOP"
)

// Dispatcher routes parsed commands to the keyspace and encodes replies.
type Dispatcher struct {
	ks  *Keyspace
	log *logrus.Logger
}

// NewDispatcher builds a dispatcher over the given keyspace.
func NewDispatcher(ks *Keyspace, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{ks: ks, log: log}
}

// Dispatch routes cmd to its handler and returns RESP reply bytes. Unknown
// commands and empty command arrays never reach the keyspace; they are
// answered directly.
func (d *Dispatcher) Dispatch(cmd Command) []byte {
	name := strings.ToUpper(cmd.Name)
	switch name {
	case string(PING):
		return d.ping(cmd.Args)
	case string(ECHO):
		return d.echo(cmd.Args)
	case string(SET):
		return d.set(cmd.Args)
	case string(GET):
		return d.get(cmd.Args)
	case string(DEL):
		return d.del(cmd.Args)
	case string(LPUSH):
		return d.lpush(cmd.Args)
	case string(LPOP):
		return d.lpop(cmd.Args)
	default:
		return EncodeSimpleError(fmt.Sprintf("unknown command '%s'", name))
	}
}

func (d *Dispatcher) ping(args []string) []byte {
	switch len(args) {
	case 0:
		return EncodeSimpleString("PONG")
	case 1:
		return EncodeBulkString([]byte(args[0]))
	default:
		return EncodeSimpleError("wrong number of arguments for 'ping' command")
	}
}

func (d *Dispatcher) echo(args []string) []byte {
	if len(args) != 1 {
		return EncodeSimpleError("wrong number of arguments for 'echo' command")
	}
	return EncodeBulkString([]byte(args[0]))
}

// set implements SET key value [EX seconds | PX millis]. With two args, any
// existing TTL on key is left untouched (a prior SET ... EX n still expires
// the key even after a bare SET overwrites its value). With four args, the
// TTL is replaced. All validation happens before any keyspace mutation.
func (d *Dispatcher) set(args []string) []byte {
	if len(args) != 2 && len(args) != 4 {
		return EncodeSimpleError("wrong number of arguments for 'set' command")
	}

	key, val := args[0], args[1]
	var deadline time.Time
	hasExpiry := false

	if len(args) == 4 {
		opt := strings.ToUpper(args[2])
		amountStr := args[3]
		if (opt != "EX" && opt != "PX") || !isDigits(amountStr) {
			return EncodeSimpleError("Incorrect args")
		}

		amount, err := strconv.ParseInt(amountStr, 10, 64)
		if err != nil {
			return EncodeSimpleError("Incorrect args")
		}

		now := time.Now()
		if opt == "EX" {
			deadline = now.Add(time.Duration(amount) * time.Second)
		} else {
			deadline = now.Add(time.Duration(amount) * time.Millisecond)
		}
		hasExpiry = true
	}

	if hasExpiry {
		d.ks.SetExpiry(key, deadline)
	}
	d.ks.SetString(key, []byte(val))
	return EncodeSimpleString("OK")
}

func (d *Dispatcher) get(args []string) []byte {
	if len(args) != 1 {
		return EncodeSimpleError("wrong number of arguments for 'get' command")
	}

	val, ok, evicted := d.ks.GetStringWithEviction(args[0], time.Now())
	if evicted {
		d.log.WithField("key", args[0]).WithField("kind", "passive").Debug("evicting expired key")
	}
	if !ok {
		return EncodeBulkStringNull()
	}
	return EncodeBulkString(val)
}

func (d *Dispatcher) del(args []string) []byte {
	if len(args) == 0 {
		return EncodeSimpleError("wrong number of arguments for 'del' command")
	}

	var deleted int64
	for _, key := range args {
		if d.ks.Del(key) {
			deleted++
		}
	}
	return EncodeInteger(deleted)
}

func (d *Dispatcher) lpush(args []string) []byte {
	if len(args) < 2 {
		return EncodeSimpleError("wrong number of arguments for 'lpush' command")
	}

	items := make([][]byte, len(args)-1)
	for i, a := range args[1:] {
		items[i] = []byte(a)
	}

	length, err := d.ks.LPush(args[0], items)
	if err != nil {
		return EncodeSimpleError("wrong type")
	}
	return EncodeInteger(int64(length))
}

// lpop preserves the source's bug-compatible behavior (§9): a missing key
// (or an empty list, which the keyspace layer reports the same way) replies
// "-ERR wrong key" rather than a null bulk, and a successful pop replies a
// simple string rather than a bulk string.
func (d *Dispatcher) lpop(args []string) []byte {
	if len(args) != 1 {
		return EncodeSimpleError("wrong number of arguments for 'lpop' command")
	}

	val, ok, err := d.ks.LPop(args[0])
	if err != nil {
		return EncodeSimpleError("wrong type")
	}
	if !ok {
		return EncodeSimpleError("wrong key")
	}
	return EncodeSimpleString(string(val))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
