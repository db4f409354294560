package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/config"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/logging"
)

// ConversationStore is what the engine needs from persistence. Both
// the sqlite and in-memory stores satisfy it. Writes never fail from
// the engine's point of view.
type ConversationStore interface {
	SaveSession(sess *domain.Session)
	SaveMessage(sessionID string, m domain.Message)
	RecentMessages(sessionID string, limit int) []domain.Message
	SaveCustomer(sessionID string, c domain.Customer)
	LoadCustomer(sessionID string) domain.Customer
	SaveSummary(sessionID, summary string, updatedAt int64)
	LoadSummary(sessionID string) string
}

// SessionEntry is one live session plus its concurrency controls. The
// mutex serializes turns: a second message from the same buyer waits
// for the first turn to finish instead of interleaving with it. The
// limiter spaces model calls. Session fields must only be read or
// written inside Do; lastSeen mirrors the session's activity so the
// registry and heartbeats can check freshness without the turn lock.
type SessionEntry struct {
	mu       sync.Mutex
	lastSeen atomic.Int64 // unix ms
	Session  *domain.Session
	Limiter  *rate.Limiter
}

// Do runs fn with the turn lock held.
func (e *SessionEntry) Do(fn func(sess *domain.Session)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.Session)
	e.Touch(e.Session.LastSeenAt)
}

// Touch marks the entry active without taking the turn lock. The
// timestamp only ever moves forward.
func (e *SessionEntry) Touch(t time.Time) {
	ms := t.UnixMilli()
	for {
		cur := e.lastSeen.Load()
		if ms <= cur || e.lastSeen.CompareAndSwap(cur, ms) {
			return
		}
	}
}

// LastSeen reports when the entry was last active.
func (e *SessionEntry) LastSeen() time.Time {
	return time.UnixMilli(e.lastSeen.Load())
}

// Registry holds live sessions. The store is the source of truth:
// entries are hydrated from it on first touch and evicted after a
// period of inactivity, so memory only ever holds active buyers.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*SessionEntry

	store        ConversationStore
	hydrateLimit int
	idleTTL      time.Duration
	now          func() time.Time
	log          *logging.Logger
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store ConversationStore, cfg config.SessionConfig, log *logging.Logger) *Registry {
	return &Registry{
		entries:      make(map[string]*SessionEntry),
		store:        store,
		hydrateLimit: cfg.HydrateLimit,
		idleTTL:      time.Duration(cfg.IdleMinutes) * time.Minute,
		now:          time.Now,
		log:          log.Sub("sessions"),
	}
}

// GetOrCreate returns the live entry for a session id, hydrating it
// from the store when the buyer reconnects after an eviction. created
// is true only for a session with no prior history anywhere.
func (r *Registry) GetOrCreate(id string) (entry *SessionEntry, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.entries[id]; ok {
		e.Touch(now)
		return e, false
	}

	sess := domain.NewSession(id, now)
	created = true

	if hydrated := r.store.RecentMessages(id, r.hydrateLimit); len(hydrated) > 0 {
		sess.Messages = hydrated
		created = false
	}
	if c := r.store.LoadCustomer(id); !c.IsEmpty() {
		sess.Customer = c
		created = false
	}
	if !created {
		r.log.Debug().Str("session", id).Int("messages", len(sess.Messages)).Msg("session hydrated")
	}

	e := &SessionEntry{
		Session: sess,
		Limiter: rate.NewLimiter(rate.Every(llmSpacing), 1),
	}
	e.Touch(now)
	r.entries[id] = e
	r.store.SaveSession(sess)
	return e, created
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// EvictIdle drops sessions idle longer than the TTL. State is already
// in the store, so eviction loses nothing a reconnect can't recover.
// Entries mid-turn are skipped and picked up on the next sweep.
func (r *Registry) EvictIdle() int {
	if r.idleTTL <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	evicted := 0
	for id, e := range r.entries {
		if now.Sub(e.LastSeen()) < r.idleTTL {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		r.store.SaveSession(e.Session)
		e.mu.Unlock()
		delete(r.entries, id)
		evicted++
	}
	if evicted > 0 {
		r.log.Debug().Int("evicted", evicted).Int("remaining", len(r.entries)).Msg("idle sessions evicted")
	}
	return evicted
}

// StartEviction sweeps for idle sessions until ctx is done.
func (r *Registry) StartEviction(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.EvictIdle()
			}
		}
	}()
}
