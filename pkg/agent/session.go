package agent

import (
	"context"
	"sync"
	"time"

	"github.com/dotsetgreg/factkeeper/pkg/facts"
)

// State is the conversation stage of one sender.
type State string

const (
	StateAwaitingName      State = "awaiting_name"
	StateAwaitingNameReply State = "awaiting_name_reply"
	StateConversing        State = "conversing"
)

const defaultHistorySize = 5

// PendingUpdate is a proposed overwrite waiting for a yes/no reply.
type PendingUpdate struct {
	Existing  facts.Fact       `json:"existing"`
	Proposed  facts.Extraction `json:"proposed"`
	Context   string           `json:"context"`
	CreatedAt time.Time        `json:"created_at"`
}

// Subjective names the series under update, e.g. "birthday" or "Adam's birthday".
func (p *PendingUpdate) Subjective() string {
	return facts.Subjective(p.Proposed)
}

// Session is the per-sender dialogue state.
type Session struct {
	SenderKey   string         `json:"sender_key"`
	State       State          `json:"state"`
	DisplayName string         `json:"display_name,omitempty"`
	Recent      []string       `json:"recent,omitempty"`
	Pending     *PendingUpdate `json:"pending,omitempty"`
	// Notice holds a reply whose delivery failed; it is prepended to
	// the next reply sent to this sender.
	Notice    string    `json:"notice,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(senderKey string) *Session {
	return &Session{
		SenderKey: senderKey,
		State:     StateAwaitingName,
		UpdatedAt: time.Now().UTC(),
	}
}

// Remember appends an utterance, keeping only the last max entries.
func (s *Session) Remember(text string, max int) {
	if max <= 0 {
		max = defaultHistorySize
	}
	s.Recent = append(s.Recent, text)
	if over := len(s.Recent) - max; over > 0 {
		s.Recent = append([]string(nil), s.Recent[over:]...)
	}
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Recent = append([]string(nil), s.Recent...)
	if s.Pending != nil {
		p := *s.Pending
		cp.Pending = &p
	}
	return &cp
}

// SessionStore persists sessions by sender key. Load reports false for
// unseen senders.
type SessionStore interface {
	Load(ctx context.Context, senderKey string) (*Session, bool, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, senderKey string) error
}

// MemorySessionStore keeps sessions for the process lifetime.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (m *MemorySessionStore) Load(_ context.Context, senderKey string) (*Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[senderKey]
	if !ok {
		return nil, false, nil
	}
	return s.clone(), true, nil
}

func (m *MemorySessionStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	m.sessions[s.SenderKey] = s.clone()
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, senderKey string) error {
	m.mu.Lock()
	delete(m.sessions, senderKey)
	m.mu.Unlock()
	return nil
}

// Len reports how many senders have a session.
func (m *MemorySessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
