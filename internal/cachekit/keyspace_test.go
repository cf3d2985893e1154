package cachekit

import (
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	ks := NewKeyspace()
	ks.SetString("k", []byte("v"))
	val, ok := ks.GetString("k")
	if !ok || string(val) != "v" {
		t.Fatalf("got %q, %v", val, ok)
	}
}

func TestGetMissingKey(t *testing.T) {
	ks := NewKeyspace()
	_, ok := ks.GetString("missing")
	if ok {
		t.Fatal("expected missing key to report not-ok")
	}
}

func TestPassiveEvictionOnRead(t *testing.T) {
	ks := NewKeyspace()
	ks.SetString("k", []byte("v"))
	ks.SetExpiry("k", time.Now().Add(-time.Second))

	val, ok, evicted := ks.GetStringWithEviction("k", time.Now())
	if ok || val != nil {
		t.Fatalf("expected expired read to miss, got %q, %v", val, ok)
	}
	if !evicted {
		t.Fatal("expected evicted to be true")
	}

	if _, stillThere := ks.GetString("k"); stillThere {
		t.Fatal("expired key should be removed from the keyspace")
	}
}

func TestUnexpiredKeySurvivesRead(t *testing.T) {
	ks := NewKeyspace()
	ks.SetString("k", []byte("v"))
	ks.SetExpiry("k", time.Now().Add(time.Hour))

	val, ok, evicted := ks.GetStringWithEviction("k", time.Now())
	if !ok || string(val) != "v" {
		t.Fatalf("got %q, %v", val, ok)
	}
	if evicted {
		t.Fatal("unexpired key should not be evicted")
	}
}

func TestDelRemovesBothTables(t *testing.T) {
	ks := NewKeyspace()
	ks.SetString("k", []byte("v"))
	ks.SetExpiry("k", time.Now().Add(time.Hour))

	if !ks.Del("k") {
		t.Fatal("expected Del to report the key existed")
	}
	if evicted := ks.EvictSampled(10, time.Now().Add(2*time.Hour)); len(evicted) != 0 {
		t.Fatalf("expected no residual expiry entry, got %v", evicted)
	}
	if ks.Del("k") {
		t.Fatal("second Del of the same key should report false")
	}
}

func TestValueTypeImmutableOnceSet(t *testing.T) {
	ks := NewKeyspace()
	if _, err := ks.LPush("k", [][]byte{[]byte("a")}); err != nil {
		t.Fatalf("LPush: %v", err)
	}
	ks.SetString("k", []byte("overwrite"))

	if _, _, err := ks.LPop("k"); err == nil {
		t.Fatal("expected ErrWrongType after a String overwrote a List")
	}

	ks2 := NewKeyspace()
	ks2.SetString("k", []byte("v"))
	if _, err := ks2.LPush("k", [][]byte{[]byte("a")}); err != ErrWrongType {
		t.Fatalf("got %v, want ErrWrongType", err)
	}
}

func TestListGetTreatedAsMissing(t *testing.T) {
	ks := NewKeyspace()
	if _, err := ks.LPush("k", [][]byte{[]byte("a")}); err != nil {
		t.Fatalf("LPush: %v", err)
	}
	if _, ok := ks.GetString("k"); ok {
		t.Fatal("GET on a list-valued key should report not-ok, not an error")
	}
}

func TestLPushLPopOrder(t *testing.T) {
	ks := NewKeyspace()
	length, err := ks.LPush("k", [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	if err != nil {
		t.Fatalf("LPush: %v", err)
	}
	if length != 3 {
		t.Fatalf("got length %d, want 3", length)
	}

	want := []string{"c", "b", "a"}
	for _, w := range want {
		v, ok, err := ks.LPop("k")
		if err != nil || !ok {
			t.Fatalf("LPop: %v, %v", err, ok)
		}
		if string(v) != w {
			t.Fatalf("got %q, want %q", v, w)
		}
	}

	_, ok, err := ks.LPop("k")
	if err != nil {
		t.Fatalf("LPop on drained list: %v", err)
	}
	if ok {
		t.Fatal("expected LPop on an emptied list to report not-ok")
	}
}

func TestEvictSampledBoundsSampleSize(t *testing.T) {
	ks := NewKeyspace()
	now := time.Now()
	for i := 0; i < 100; i++ {
		key := string(rune('a' + i%26))
		ks.SetString(key, []byte("v"))
		ks.SetExpiry(key, now.Add(-time.Second))
	}

	evicted := ks.EvictSampled(10, now)
	if len(evicted) > 10 {
		t.Fatalf("got %d evictions, want at most 10", len(evicted))
	}
}

func TestEvictSampledNeverEvictsFutureDeadlines(t *testing.T) {
	ks := NewKeyspace()
	now := time.Now()
	ks.SetString("future", []byte("v"))
	ks.SetExpiry("future", now.Add(time.Hour))

	evicted := ks.EvictSampled(10, now)
	for _, k := range evicted {
		if k == "future" {
			t.Fatal("EvictSampled evicted a key whose deadline has not passed")
		}
	}
	if _, ok := ks.GetString("future"); !ok {
		t.Fatal("EvictSampled deleted a key whose deadline has not passed")
	}
}
