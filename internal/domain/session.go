package domain

import "time"

// Conversation stages. WELCOME is the only stage assigned automatically;
// the rest are reserved for future funnel tracking.
const (
	StageWelcome = "WELCOME"
	StageBrowse  = "BROWSE"
	StageOrder   = "ORDER"
)

// DefaultLocale is the locale assumed for every buyer unless the client
// declares otherwise during connect.
const DefaultLocale = "bn-BD"

// Session is the live conversational state for one buyer. A session is
// keyed by a stable id supplied by the client (or minted by the server)
// and survives reconnects through the store.
type Session struct {
	ID         string    `json:"sessionId"`
	Stage      string    `json:"stage"`
	Locale     string    `json:"locale"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`

	// Seq counts user turns. It only ever increases.
	Seq int64 `json:"seq"`

	Messages []Message `json:"messages,omitempty"`
	Customer Customer  `json:"customer"`

	// LastProducts holds the most recent search results so a buyer can
	// say "order the first one" without repeating the search.
	LastProducts []ProductRef `json:"lastProducts,omitempty"`

	// Rate-limit bookkeeping.
	CoolDownUntil time.Time `json:"-"`
	LastLLMAt     time.Time `json:"-"`
	LastWaitAt    time.Time `json:"-"`
}

// NewSession creates a fresh session in the welcome stage.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		Stage:      StageWelcome,
		Locale:     DefaultLocale,
		CreatedAt:  now,
		LastSeenAt: now,
	}
}

// Touch updates the last-seen timestamp.
func (s *Session) Touch(now time.Time) {
	s.LastSeenAt = now
}

// AppendUser records a user turn and bumps the turn counter.
func (s *Session) AppendUser(text string, now time.Time) Message {
	s.Seq++
	m := Message{Who: WhoUser, Text: text, TS: now.UnixMilli()}
	s.Messages = append(s.Messages, m)
	return m
}

// AppendBot records a bot turn. Bot turns do not advance Seq.
func (s *Session) AppendBot(text string, now time.Time) Message {
	m := Message{Who: WhoBot, Text: text, TS: now.UnixMilli()}
	s.Messages = append(s.Messages, m)
	return m
}

// MessagesSince returns stored messages strictly newer than lastTs, in
// original order. lastTs of 0 returns everything.
func (s *Session) MessagesSince(lastTs int64) []Message {
	out := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.TS > lastTs {
			out = append(out, m)
		}
	}
	return out
}

// RecentMessages returns up to n of the newest messages, oldest first.
func (s *Session) RecentMessages(n int) []Message {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
