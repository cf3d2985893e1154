/*
Package cachekit: the expiry reaper (C5).

Reaper runs on its own goroutine, ticking every 100ms. Each tick draws a
uniform sample of up to sampleSize keys from the expiry table and actively
evicts those whose deadline has passed, bounding reaper work per tick
independent of keyspace size.
*/
package cachekit

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	reaperInterval   = 100 * time.Millisecond
	reaperSampleSize = 10
)

// Reaper periodically evicts expired keys independent of client access.
type Reaper struct {
	ks         *Keyspace
	log        *logrus.Logger
	interval   time.Duration
	sampleSize int
	stop       chan struct{}
	done       chan struct{}
}

// NewReaper builds a reaper over ks with the fixed interval and sample
// size above (reaperInterval, reaperSampleSize).
func NewReaper(ks *Keyspace, log *logrus.Logger) *Reaper {
	return &Reaper{
		ks:         ks,
		log:        log,
		interval:   reaperInterval,
		sampleSize: reaperSampleSize,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run ticks until Stop is called. Intended to be launched with `go`.
func (r *Reaper) Run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.done)

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// Stop halts the reaper and waits for its goroutine to exit. Safe to call
// at most once.
func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reaper) tick() {
	evicted := r.ks.EvictSampled(r.sampleSize, time.Now())
	for _, key := range evicted {
		r.log.WithField("key", key).WithField("kind", "active").Debug("evicting expired key")
	}
}
