package service

import (
	"sync"

	"github.com/whisperwave/whisperwave/internal/domain"
	"github.com/whisperwave/whisperwave/internal/repository"
)

// Session is the client-side state of the currently open conversation: the
// canonical ordered message list, reconciled from the initial snapshot, the
// realtime feed, and optimistic entries for in-flight writes.
//
// All mutation goes through the pure reducer under s.mu, so overlapping
// realtime callbacks and pipeline steps serialize cleanly.
type Session struct {
	conversation domain.Conversation
	me           string

	mu       sync.Mutex
	messages []domain.Message

	sub      repository.Subscription
	onChange func([]domain.Message)
	notifyMu sync.Mutex
	once     sync.Once
}

func newSession(conversation domain.Conversation, me string, onChange func([]domain.Message)) *Session {
	return &Session{
		conversation: conversation,
		me:           me,
		onChange:     onChange,
	}
}

// Conversation returns the conversation this session is bound to.
func (s *Session) Conversation() domain.Conversation {
	return s.conversation
}

// Me returns the acting participant.
func (s *Session) Me() string {
	return s.me
}

// Messages returns a copy of the current ordered projection.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Close cancels the realtime subscription. Safe to call more than once;
// cleanup runs exactly once.
func (s *Session) Close() {
	s.once.Do(func() {
		if s.sub != nil {
			s.sub.Cancel()
		}
	})
}

// handleEvent is the realtime callback registered on subscribe.
func (s *Session) handleEvent(ev domain.ChangeEvent) {
	s.transition(func(state []domain.Message) []domain.Message {
		return applyEvent(state, ev, s.conversation.Participants)
	})
}

func (s *Session) restore(snapshot []domain.Message) {
	s.transition(func([]domain.Message) []domain.Message {
		return applySnapshot(snapshot, s.conversation.Participants)
	})
}

func (s *Session) insert(msg domain.Message) {
	s.transition(func(state []domain.Message) []domain.Message {
		return upsertMessage(state, msg)
	})
}

func (s *Session) confirm(tempID string, stored domain.Message) {
	s.transition(func(state []domain.Message) []domain.Message {
		return confirmPending(state, tempID, stored)
	})
}

func (s *Session) remove(id string) {
	s.transition(func(state []domain.Message) []domain.Message {
		return removeMessage(state, id)
	})
}

// get returns a copy of the message with the given id.
func (s *Session) get(id string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

func (s *Session) transition(fn func([]domain.Message) []domain.Message) {
	s.mu.Lock()
	s.messages = fn(s.messages)
	projection := make([]domain.Message, len(s.messages))
	copy(projection, s.messages)
	// notifyMu is taken before mu is released: projections reach the
	// observer in mutation order, while onChange itself runs outside mu.
	s.notifyMu.Lock()
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(projection)
	}
	s.notifyMu.Unlock()
}
