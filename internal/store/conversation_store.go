package store

import (
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
)

// SQLiteConversationStore persists sessions, messages, customer profiles
// and summaries. Writes are best-effort from the caller's point of view:
// failures are logged, never surfaced into the conversation.
type SQLiteConversationStore struct {
	db *DB
}

// NewSQLiteConversationStore creates a conversation store using the given database.
func NewSQLiteConversationStore(db *DB) *SQLiteConversationStore {
	return &SQLiteConversationStore{db: db}
}

// SaveSession upserts the session row.
func (s *SQLiteConversationStore) SaveSession(sess *domain.Session) {
	_, err := s.db.sql.Exec(
		`INSERT INTO sessions (session_id, stage, locale, seq, last_seen_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   stage = excluded.stage,
		   locale = excluded.locale,
		   seq = excluded.seq,
		   last_seen_at = excluded.last_seen_at`,
		sess.ID, sess.Stage, sess.Locale, sess.Seq, sess.LastSeenAt.UnixMilli(),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("session", sess.ID).Msg("failed to save session")
	}
}

// HasSession reports whether a session row exists.
func (s *SQLiteConversationStore) HasSession(sessionID string) bool {
	var one int
	err := s.db.sql.QueryRow(
		`SELECT 1 FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&one)
	return err == nil
}

// SaveMessage appends one message to the history.
func (s *SQLiteConversationStore) SaveMessage(sessionID string, m domain.Message) {
	_, err := s.db.sql.Exec(
		`INSERT INTO messages (session_id, who, text, ts) VALUES (?, ?, ?, ?)`,
		sessionID, m.Who, m.Text, m.TS,
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to save message")
	}
}

// RecentMessages returns up to limit of the newest messages, oldest first.
func (s *SQLiteConversationStore) RecentMessages(sessionID string, limit int) []domain.Message {
	rows, err := s.db.sql.Query(
		`SELECT who, text, ts FROM (
		   SELECT id, who, text, ts FROM messages
		   WHERE session_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		sessionID, limit,
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to load messages")
		return nil
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.Who, &m.Text, &m.TS); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// SaveCustomer upserts the buyer's delivery profile.
func (s *SQLiteConversationStore) SaveCustomer(sessionID string, c domain.Customer) {
	_, err := s.db.sql.Exec(
		`INSERT INTO customers (session_id, name, phone, address, district, upazila, email)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   name = excluded.name,
		   phone = excluded.phone,
		   address = excluded.address,
		   district = excluded.district,
		   upazila = excluded.upazila,
		   email = excluded.email`,
		sessionID, c.Name, c.Phone, c.Address, c.District, c.Upazila, c.Email,
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to save customer")
	}
}

// LoadCustomer returns the saved profile, or a zero Customer if none.
func (s *SQLiteConversationStore) LoadCustomer(sessionID string) domain.Customer {
	var c domain.Customer
	err := s.db.sql.QueryRow(
		`SELECT name, phone, address, district, upazila, email
		 FROM customers WHERE session_id = ?`, sessionID,
	).Scan(&c.Name, &c.Phone, &c.Address, &c.District, &c.Upazila, &c.Email)
	if err != nil {
		return domain.Customer{}
	}
	return c
}

// SaveSummary upserts the rolling conversation summary.
func (s *SQLiteConversationStore) SaveSummary(sessionID, summary string, updatedAt int64) {
	_, err := s.db.sql.Exec(
		`INSERT INTO summaries (session_id, summary, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   summary = excluded.summary,
		   updated_at = excluded.updated_at`,
		sessionID, summary, updatedAt,
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to save summary")
	}
}

// LoadSummary returns the saved summary, or "" if none.
func (s *SQLiteConversationStore) LoadSummary(sessionID string) string {
	var summary string
	err := s.db.sql.QueryRow(
		`SELECT summary FROM summaries WHERE session_id = ?`, sessionID,
	).Scan(&summary)
	if err != nil {
		return ""
	}
	return summary
}
