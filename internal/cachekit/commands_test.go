package cachekit

import (
	"strings"
	"testing"
	"time"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(NewKeyspace(), NewLogger())
}

func TestPingDefault(t *testing.T) {
	d := newTestDispatcher()
	got := d.Dispatch(Command{Name: "PING"})
	if string(got) != "+PONG\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestPingWithMessage(t *testing.T) {
	d := newTestDispatcher()
	got := d.Dispatch(Command{Name: "ping", Args: []string{"hello"}})
	if string(got) != "$5\r\nhello\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestEchoArity(t *testing.T) {
	d := newTestDispatcher()
	got := d.Dispatch(Command{Name: "ECHO"})
	if !strings.HasPrefix(string(got), "-ERR") {
		t.Fatalf("got %q, want arity error", got)
	}
}

func TestSetGet(t *testing.T) {
	d := newTestDispatcher()
	got := d.Dispatch(Command{Name: "SET", Args: []string{"k", "v"}})
	if string(got) != "+OK\r\n" {
		t.Fatalf("got %q", got)
	}
	got = d.Dispatch(Command{Name: "GET", Args: []string{"k"}})
	if string(got) != "$1\r\nv\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestGetMissingReturnsNullBulk(t *testing.T) {
	d := newTestDispatcher()
	got := d.Dispatch(Command{Name: "GET", Args: []string{"missing"}})
	if string(got) != "$-1\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestSetRejectsBadExpiryOptionWithoutMutating(t *testing.T) {
	d := newTestDispatcher()
	d.Dispatch(Command{Name: "SET", Args: []string{"k", "v"}})

	got := d.Dispatch(Command{Name: "SET", Args: []string{"k", "v2", "XX", "10"}})
	if !strings.HasPrefix(string(got), "-ERR") {
		t.Fatalf("got %q, want error for bad option", got)
	}

	check := d.Dispatch(Command{Name: "GET", Args: []string{"k"}})
	if string(check) != "$1\r\nv\r\n" {
		t.Fatalf("rejected SET mutated keyspace: %q", check)
	}
}

func TestSetRejectsNonDigitExpiryAmount(t *testing.T) {
	d := newTestDispatcher()
	got := d.Dispatch(Command{Name: "SET", Args: []string{"k", "v", "EX", "abc"}})
	if !strings.HasPrefix(string(got), "-ERR") {
		t.Fatalf("got %q, want error for non-digit amount", got)
	}
}

func TestSetBareDoesNotClearExistingExpiry(t *testing.T) {
	d := newTestDispatcher()
	d.Dispatch(Command{Name: "SET", Args: []string{"k", "v1", "PX", "1"}})
	d.Dispatch(Command{Name: "SET", Args: []string{"k", "v2"}})
	time.Sleep(5 * time.Millisecond)

	got := d.Dispatch(Command{Name: "GET", Args: []string{"k"}})
	if string(got) != "$-1\r\n" {
		t.Fatalf("expected prior PX deadline to still apply after bare SET, got %q", got)
	}
}

func TestDelCounts(t *testing.T) {
	d := newTestDispatcher()
	d.Dispatch(Command{Name: "SET", Args: []string{"a", "1"}})
	d.Dispatch(Command{Name: "SET", Args: []string{"b", "1"}})

	got := d.Dispatch(Command{Name: "DEL", Args: []string{"a", "b", "c"}})
	if string(got) != ":2\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestLPushLPopBugCompatibleReplies(t *testing.T) {
	d := newTestDispatcher()
	got := d.Dispatch(Command{Name: "LPUSH", Args: []string{"k", "a", "b", "c"}})
	if string(got) != ":3\r\n" {
		t.Fatalf("got %q", got)
	}

	got = d.Dispatch(Command{Name: "LPOP", Args: []string{"k"}})
	if string(got) != "+c\r\n" {
		t.Fatalf("got %q, want simple-string bug-compatible reply", got)
	}
}

func TestLPopMissingKeyWrongKeyError(t *testing.T) {
	d := newTestDispatcher()
	got := d.Dispatch(Command{Name: "LPOP", Args: []string{"missing"}})
	if string(got) != "-ERR wrong key\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestLPushWrongType(t *testing.T) {
	d := newTestDispatcher()
	d.Dispatch(Command{Name: "SET", Args: []string{"k", "v"}})
	got := d.Dispatch(Command{Name: "LPUSH", Args: []string{"k", "a"}})
	if string(got) != "-ERR wrong type\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	d := newTestDispatcher()
	got := d.Dispatch(Command{Name: "FLUBBER"})
	if string(got) != "-ERR unknown command 'FLUBBER'\r\n" {
		t.Fatalf("got %q", got)
	}
}

func TestUnknownCommandUppercasesMixedCaseName(t *testing.T) {
	d := newTestDispatcher()
	got := d.Dispatch(Command{Name: "FlUbBeR"})
	if string(got) != "-ERR unknown command 'FLUBBER'\r\n" {
		t.Fatalf("got %q", got)
	}
}
