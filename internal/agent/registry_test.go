package agent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/config"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/logging"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/store"
)

func testRegistry(cs ConversationStore) *Registry {
	return NewRegistry(cs, config.SessionConfig{
		HistoryLimit: 40,
		HydrateLimit: 16,
		IdleMinutes:  30,
	}, logging.New(nil, "silent"))
}

func TestRegistry_CreatesFreshSession(t *testing.T) {
	cs := store.NewMemoryConversationStore()
	r := testRegistry(cs)

	entry, created := r.GetOrCreate("s1")
	assert.True(t, created)
	assert.Equal(t, "s1", entry.Session.ID)
	assert.Equal(t, domain.StageWelcome, entry.Session.Stage)
	assert.True(t, cs.HasSession("s1"), "new sessions are persisted immediately")

	again, created := r.GetOrCreate("s1")
	assert.False(t, created)
	assert.Same(t, entry, again)
}

func TestRegistry_HydratesFromStore(t *testing.T) {
	cs := store.NewMemoryConversationStore()
	cs.SaveMessage("s1", domain.Message{Who: domain.WhoUser, Text: "ঘড়ি আছে?", TS: 1})
	cs.SaveMessage("s1", domain.Message{Who: domain.WhoBot, Text: "জি স্যার", TS: 2})
	cs.SaveCustomer("s1", domain.Customer{Name: "Rahim", Phone: "01712345678"})

	r := testRegistry(cs)
	entry, created := r.GetOrCreate("s1")

	assert.False(t, created, "stored history means this is a returning buyer")
	require.Len(t, entry.Session.Messages, 2)
	assert.Equal(t, "Rahim", entry.Session.Customer.Name)
}

func TestRegistry_HydrateLimit(t *testing.T) {
	cs := store.NewMemoryConversationStore()
	for i := range 50 {
		cs.SaveMessage("s1", domain.Message{Who: domain.WhoUser, Text: "m", TS: int64(i)})
	}

	r := testRegistry(cs)
	entry, _ := r.GetOrCreate("s1")
	assert.Len(t, entry.Session.Messages, 16)
	assert.Equal(t, int64(34), entry.Session.Messages[0].TS, "newest messages win")
}

func TestRegistry_EvictIdle(t *testing.T) {
	cs := store.NewMemoryConversationStore()
	r := testRegistry(cs)

	base := time.Now()
	r.now = func() time.Time { return base }
	r.GetOrCreate("old")
	r.GetOrCreate("fresh")

	r.now = func() time.Time { return base.Add(31 * time.Minute) }
	r.GetOrCreate("fresh") // touches it

	evicted := r.EvictIdle()
	assert.Equal(t, 2, r.Len()+evicted)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, r.Len())

	// Reconnect after eviction hydrates from the store.
	_, created := r.GetOrCreate("old")
	assert.True(t, created, "evicted session with no messages comes back fresh")
}

func TestRegistry_EvictSkipsSessionMidTurn(t *testing.T) {
	cs := store.NewMemoryConversationStore()
	r := testRegistry(cs)

	base := time.Now()
	r.now = func() time.Time { return base }
	entry, _ := r.GetOrCreate("busy")

	r.now = func() time.Time { return base.Add(time.Hour) }
	entry.mu.Lock()
	assert.Equal(t, 0, r.EvictIdle())
	entry.mu.Unlock()
	assert.Equal(t, 1, r.EvictIdle())
}

func TestRegistry_TouchWhileTurnRuns(t *testing.T) {
	cs := store.NewMemoryConversationStore()
	r := testRegistry(cs)

	base := time.Now()
	r.now = func() time.Time { return base }
	entry, _ := r.GetOrCreate("s1")

	// A turn is in progress; a reconnect must still resolve the entry
	// without blocking on the turn lock.
	entry.mu.Lock()
	r.now = func() time.Time { return base.Add(time.Minute) }
	again, created := r.GetOrCreate("s1")
	entry.mu.Unlock()

	assert.Same(t, entry, again)
	assert.False(t, created)
	assert.Equal(t, base.Add(time.Minute).UnixMilli(), entry.LastSeen().UnixMilli())
}

func TestRegistry_TurnKeepsEntryFresh(t *testing.T) {
	cs := store.NewMemoryConversationStore()
	r := testRegistry(cs)

	base := time.Now()
	r.now = func() time.Time { return base }
	entry, _ := r.GetOrCreate("s1")

	entry.Do(func(sess *domain.Session) { sess.Touch(base.Add(29 * time.Minute)) })

	r.now = func() time.Time { return base.Add(45 * time.Minute) }
	assert.Equal(t, 0, r.EvictIdle(), "activity inside a turn counts against the idle TTL")
}

func TestSessionEntry_ConcurrentTouchAndTurns(t *testing.T) {
	cs := store.NewMemoryConversationStore()
	r := testRegistry(cs)
	entry, _ := r.GetOrCreate("s1")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.GetOrCreate("s1")
		}()
		go func() {
			defer wg.Done()
			entry.Do(func(sess *domain.Session) { sess.Touch(time.Now()) })
		}()
	}
	wg.Wait()

	assert.False(t, entry.LastSeen().IsZero())
}

func TestRegistry_NoEvictionWhenDisabled(t *testing.T) {
	cs := store.NewMemoryConversationStore()
	r := NewRegistry(cs, config.SessionConfig{HydrateLimit: 16, IdleMinutes: 0}, logging.New(nil, "silent"))

	base := time.Now()
	r.now = func() time.Time { return base }
	r.GetOrCreate("s1")
	r.now = func() time.Time { return base.Add(100 * time.Hour) }
	assert.Equal(t, 0, r.EvictIdle())
}
