/*
Package cachekit: the keyspace and expiry engine (C3).

The stored value (entry) is a closed tagged variant over two cases (string, list) rather than an
interface with dynamic dispatch, per the design notes: a key's tag is
immutable once set (I2), so the zero-value-detection dance of an interface
buys nothing here. Lists are backed by container/list so LPUSH/LPOP at the
head are O(1).
*/
package cachekit

import (
	"container/list"
	"math/rand"
	"sync"
	"time"
)

type valueKind int

const (
	kindString valueKind = iota
	kindList
)

// entry is the internal tagged value stored per key. Only one of str/list
// is ever populated, selected by kind.
type entry struct {
	kind valueKind
	str  []byte
	list *list.List // elements are []byte, head-to-tail
}

// Keyspace is the typed map of keys to values plus the parallel expiry
// table (§3's Keyspace + ExpiryTable). A single mutex protects both, which
// is one of the two concurrency strategies §5 allows for implementations
// choosing true parallelism (the other being striped maps); a coarse mutex
// is simpler and the command path here is already O(1)/O(args).
type Keyspace struct {
	mu     sync.Mutex
	data   map[string]*entry
	expiry map[string]time.Time
}

// NewKeyspace returns an empty keyspace.
func NewKeyspace() *Keyspace {
	return &Keyspace{
		data:   make(map[string]*entry),
		expiry: make(map[string]time.Time),
	}
}

// SetString installs String(val) at key, overwriting any prior value
// (including a list). It does not touch the expiry table.
func (k *Keyspace) SetString(key string, val []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = &entry{kind: kindString, str: val}
}

// SetExpiry records deadline for key, overwriting any previous deadline.
func (k *Keyspace) SetExpiry(key string, deadline time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.expiry[key] = deadline
}

// ClearExpiry removes key from the expiry table. No-op if absent.
func (k *Keyspace) ClearExpiry(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.expiry, key)
}

// GetString returns the stored string iff the value at key is a String.
// Per I5, a key holding a List is treated the same as a missing key here —
// callers get ok == false either way, never an error.
func (k *Keyspace) GetString(key string) (val []byte, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, exists := k.data[key]
	if !exists || e.kind != kindString {
		return nil, false
	}
	return e.str, true
}

// GetStringWithEviction implements GET's full read path (§4.4): if key has
// a deadline strictly before now, it is evicted from both tables before the
// read is evaluated (I4, passive eviction), and ok is false. evicted
// reports whether this call performed that eviction, so callers can log it.
func (k *Keyspace) GetStringWithEviction(key string, now time.Time) (val []byte, ok bool, evicted bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if deadline, has := k.expiry[key]; has && now.After(deadline) {
		delete(k.expiry, key)
		delete(k.data, key)
		return nil, false, true
	}

	e, exists := k.data[key]
	if !exists || e.kind != kindString {
		return nil, false, false
	}
	return e.str, true, false
}

// Del removes key from both the keyspace and the expiry table (upholding
// I1: no expiry entry may outlive its keyspace entry), and reports whether
// the key existed.
func (k *Keyspace) Del(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, existed := k.data[key]
	delete(k.data, key)
	delete(k.expiry, key)
	return existed
}

// LPush prepends items to the list at key, one at a time in argument order,
// so the last element of items ends up at the head. Creates the list if key
// is absent. Returns ErrWrongType if key holds a String.
func (k *Keyspace) LPush(key string, items [][]byte) (length int, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, exists := k.data[key]
	if exists && e.kind != kindList {
		return 0, ErrWrongType
	}
	if !exists {
		e = &entry{kind: kindList, list: list.New()}
		k.data[key] = e
	}
	for _, item := range items {
		e.list.PushFront(item)
	}
	return e.list.Len(), nil
}

// LPop removes and returns the head of the list at key. ok is false if key
// is absent or its list is empty; err is ErrWrongType if key holds a String.
func (k *Keyspace) LPop(key string) (val []byte, ok bool, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, exists := k.data[key]
	if !exists {
		return nil, false, nil
	}
	if e.kind != kindList {
		return nil, false, ErrWrongType
	}
	front := e.list.Front()
	if front == nil {
		return nil, false, nil
	}
	e.list.Remove(front)
	return front.Value.([]byte), true, nil
}

// EvictSampled uniformly samples up to n distinct keys from the expiry
// table and deletes those among them whose deadline is strictly before now,
// returning the evicted keys — the reaper's per-tick work (§4.5 steps 1-3).
// Sample, filter, and delete all happen under a single lock acquisition, so
// a tick is one linearization point (§5): a concurrent SET that refreshes a
// sampled key's TTL either happens entirely before this call (the refreshed
// deadline is read and the key survives) or entirely after it (the key was
// already deleted and the SET simply recreates it), never interleaved with
// the decision to evict.
func (k *Keyspace) EvictSampled(n int, now time.Time) []string {
	k.mu.Lock()
	defer k.mu.Unlock()

	keys := make([]string, 0, len(k.expiry))
	for key := range k.expiry {
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil
	}
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	if len(keys) > n {
		keys = keys[:n]
	}

	evicted := make([]string, 0, len(keys))
	for _, key := range keys {
		if deadline, ok := k.expiry[key]; ok && deadline.Before(now) {
			delete(k.expiry, key)
			delete(k.data, key)
			evicted = append(evicted, key)
		}
	}
	return evicted
}
