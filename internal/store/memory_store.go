package store

import (
	"sync"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
)

// MemoryConversationStore is an in-memory conversation store for tests
// and for running without a database file.
type MemoryConversationStore struct {
	mu        sync.RWMutex
	sessions  map[string]domain.Session
	messages  map[string][]domain.Message
	customers map[string]domain.Customer
	summaries map[string]string
}

// NewMemoryConversationStore creates an empty in-memory store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		sessions:  make(map[string]domain.Session),
		messages:  make(map[string][]domain.Message),
		customers: make(map[string]domain.Customer),
		summaries: make(map[string]string),
	}
}

func (s *MemoryConversationStore) SaveSession(sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	cp.Messages = nil
	s.sessions[sess.ID] = cp
}

func (s *MemoryConversationStore) HasSession(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}

func (s *MemoryConversationStore) SaveMessage(sessionID string, m domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sessionID] = append(s.messages[sessionID], m)
}

func (s *MemoryConversationStore) RecentMessages(sessionID string, limit int) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *MemoryConversationStore) SaveCustomer(sessionID string, c domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[sessionID] = c
}

func (s *MemoryConversationStore) LoadCustomer(sessionID string) domain.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customers[sessionID]
}

func (s *MemoryConversationStore) SaveSummary(sessionID, summary string, updatedAt int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sessionID] = summary
}

func (s *MemoryConversationStore) LoadSummary(sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaries[sessionID]
}
