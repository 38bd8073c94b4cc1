package session

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryConfig tunes the in-process store.
type MemoryConfig struct {
	// TTL expires sessions idle for longer than this; 0 keeps them forever.
	TTL time.Duration
	// MaxSessions bounds the store; least recently used sessions go first.
	MaxSessions int
	// Now overrides the clock in tests.
	Now func() time.Time
}

// MemoryStore keeps sessions in process memory. It never returns errors.
type MemoryStore struct {
	mu sync.Mutex

	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	lru *list.List               // front=MRU
	m   map[string]*list.Element // sender id -> element(Value=*memItem)
}

type memItem struct {
	s        Session
	lastUsed time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		ttl:         cfg.TTL,
		maxSessions: cfg.MaxSessions,
		now:         now,
		lru:         list.New(),
		m:           map[string]*list.Element{},
	}
}

// Get returns the live session of senderID.
func (st *MemoryStore) Get(_ context.Context, senderID string) (Session, bool, error) {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.evictExpiredLocked(now)

	e := st.m[senderID]
	if e == nil {
		return Session{}, false, nil
	}
	it := e.Value.(*memItem)
	it.lastUsed = now
	st.lru.MoveToFront(e)
	return it.s, true, nil
}

// Put stores s, replacing any previous session of the sender.
func (st *MemoryStore) Put(_ context.Context, s Session) error {
	now := st.now()
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.evictExpiredLocked(now)

	if e := st.m[s.SenderID]; e != nil {
		it := e.Value.(*memItem)
		it.s = s
		it.lastUsed = now
		st.lru.MoveToFront(e)
		return nil
	}
	st.m[s.SenderID] = st.lru.PushFront(&memItem{s: s, lastUsed: now})
	st.evictOverLimitLocked()
	return nil
}

// Delete drops the session of senderID if present.
func (st *MemoryStore) Delete(_ context.Context, senderID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if e := st.m[senderID]; e != nil {
		st.deleteElemLocked(e)
	}
	return nil
}

// Prune evicts expired sessions and reports how many were removed.
func (st *MemoryStore) Prune(_ context.Context) (int, error) {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	before := st.lru.Len()
	st.evictExpiredLocked(now)
	return before - st.lru.Len(), nil
}

// Len returns the number of stored sessions, expired ones included.
func (st *MemoryStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lru.Len()
}

func (st *MemoryStore) evictExpiredLocked(now time.Time) {
	if st.ttl <= 0 {
		return
	}
	for e := st.lru.Back(); e != nil; {
		prev := e.Prev()
		if now.Sub(e.Value.(*memItem).lastUsed) <= st.ttl {
			break
		}
		st.deleteElemLocked(e)
		e = prev
	}
}

func (st *MemoryStore) evictOverLimitLocked() {
	if st.maxSessions <= 0 {
		return
	}
	for st.lru.Len() > st.maxSessions {
		e := st.lru.Back()
		if e == nil {
			return
		}
		st.deleteElemLocked(e)
	}
}

func (st *MemoryStore) deleteElemLocked(e *list.Element) {
	delete(st.m, e.Value.(*memItem).s.SenderID)
	st.lru.Remove(e)
}
