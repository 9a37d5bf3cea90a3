package results

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Options bounds the store. Zero values disable the corresponding bound.
type Options struct {
	TTL        time.Duration
	MaxEntries int
}

type entry struct {
	value    json.RawMessage
	storedAt time.Time
	seq      uint64
}

// Store maps execution ids to the raw result their callback delivered.
//
// Every method holds the lock for a single map operation only, so a waiter
// polling one id never blocks a callback writing another.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	notify  chan struct{}
	seq     uint64
	opts    Options
	now     func() time.Time

	onEvict func(id string)
}

// New creates an empty store.
func New(opts Options) *Store {
	return &Store{
		entries: make(map[string]entry),
		notify:  make(chan struct{}),
		opts:    opts,
		now:     time.Now,
	}
}

// OnEvict registers a hook called (outside the lock) for every entry
// removed without being consumed.
func (s *Store) OnEvict(fn func(id string)) {
	s.mu.Lock()
	s.onEvict = fn
	s.mu.Unlock()
}

// Put stores value under id. A second write for the same id overwrites the
// first.
func (s *Store) Put(id string, value json.RawMessage) {
	s.mu.Lock()
	s.seq++
	s.entries[id] = entry{value: value, storedAt: s.now(), seq: s.seq}
	evicted := s.trim()
	close(s.notify)
	s.notify = make(chan struct{})
	hook := s.onEvict
	s.mu.Unlock()

	s.report(hook, evicted)
}

// TakeIfPresent removes and returns the value stored under id. It is the
// only way to consume a result, so each value reaches at most one caller.
func (s *Store) TakeIfPresent(id string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	delete(s.entries, id)
	return e.value, true
}

// Changed returns a channel that is closed by the next Put. Callers must
// fetch a fresh channel after each wake-up.
func (s *Store) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notify
}

// Len reports how many results are waiting to be consumed.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reap drops entries older than the TTL and returns how many were removed.
// These are results whose waiter timed out or never existed.
func (s *Store) Reap() int {
	if s.opts.TTL <= 0 {
		return 0
	}

	s.mu.Lock()
	cutoff := s.now().Add(-s.opts.TTL)
	var expired []string
	for id, e := range s.entries {
		if e.storedAt.Before(cutoff) {
			delete(s.entries, id)
			expired = append(expired, id)
		}
	}
	hook := s.onEvict
	s.mu.Unlock()

	s.report(hook, expired)
	return len(expired)
}

// Run reaps expired entries every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.opts.TTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap()
		}
	}
}

// trim evicts the earliest written entries beyond MaxEntries, so the entry
// the current Put wrote always survives. Caller holds mu.
func (s *Store) trim() []string {
	if s.opts.MaxEntries <= 0 || len(s.entries) <= s.opts.MaxEntries {
		return nil
	}
	var evicted []string
	for len(s.entries) > s.opts.MaxEntries {
		var oldestID string
		var oldest uint64
		for id, e := range s.entries {
			if oldestID == "" || e.seq < oldest {
				oldestID, oldest = id, e.seq
			}
		}
		delete(s.entries, oldestID)
		evicted = append(evicted, oldestID)
	}
	return evicted
}

func (s *Store) report(hook func(string), ids []string) {
	if hook == nil {
		return
	}
	for _, id := range ids {
		hook(id)
	}
}
