package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/whisperwave/whisperwave/internal/domain"
	"github.com/whisperwave/whisperwave/internal/repository"
)

// Inbox is the live conversation list for one participant, sorted most
// recently active first.
type Inbox struct {
	me string

	mu    sync.Mutex
	convs []domain.Conversation

	sub      repository.Subscription
	onChange func([]domain.Conversation)
	notifyMu sync.Mutex
	once     sync.Once
}

// OpenInbox fetches the participant's conversations and keeps the list
// current from the conversations realtime feed.
func (s *ChatService) OpenInbox(ctx context.Context, me string, onChange func([]domain.Conversation)) (*Inbox, error) {
	if me == "" {
		return nil, ErrUnauthenticated
	}

	list, err := s.convs.ListByParticipant(ctx, me)
	if err != nil {
		return nil, fmt.Errorf("loading conversations: %w", err)
	}

	inbox := &Inbox{me: me, onChange: onChange}
	inbox.replace(list)

	sub, err := s.realtime.SubscribeConversations(ctx, me, inbox.handleEvent)
	if err != nil {
		return nil, fmt.Errorf("subscribing to conversations: %w", err)
	}
	inbox.sub = sub

	s.logger.Info("inbox opened", zap.Int("conversations", len(list)))
	return inbox, nil
}

// Conversations returns a copy of the current sorted list.
func (i *Inbox) Conversations() []domain.Conversation {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]domain.Conversation, len(i.convs))
	copy(out, i.convs)
	return out
}

// Close cancels the realtime subscription; cleanup runs exactly once.
func (i *Inbox) Close() {
	i.once.Do(func() {
		if i.sub != nil {
			i.sub.Cancel()
		}
	})
}

func (i *Inbox) handleEvent(ev domain.ConversationEvent) {
	i.mu.Lock()
	switch ev.Type {
	case domain.EventInsert, domain.EventUpdate:
		if !ev.Record.HasParticipant(i.me) {
			i.mu.Unlock()
			return
		}
		next := make([]domain.Conversation, 0, len(i.convs)+1)
		for _, c := range i.convs {
			if c.ID != ev.Record.ID {
				next = append(next, c)
			}
		}
		i.convs = append(next, ev.Record)
		sortByActivity(i.convs)
	case domain.EventDelete:
		next := make([]domain.Conversation, 0, len(i.convs))
		for _, c := range i.convs {
			if c.ID != ev.Record.ID {
				next = append(next, c)
			}
		}
		i.convs = next
	default:
		i.mu.Unlock()
		return
	}
	projection := make([]domain.Conversation, len(i.convs))
	copy(projection, i.convs)
	// Same discipline as Session.transition: notifyMu bridges the unlock
	// so deliveries keep mutation order.
	i.notifyMu.Lock()
	i.mu.Unlock()

	if i.onChange != nil {
		i.onChange(projection)
	}
	i.notifyMu.Unlock()
}

func (i *Inbox) replace(list []domain.Conversation) {
	sorted := make([]domain.Conversation, len(list))
	copy(sorted, list)
	sortByActivity(sorted)

	i.mu.Lock()
	i.convs = sorted
	i.notifyMu.Lock()
	i.mu.Unlock()

	if i.onChange != nil {
		i.onChange(append([]domain.Conversation(nil), sorted...))
	}
	i.notifyMu.Unlock()
}

// sortByActivity orders by last activity descending; conversations that
// never had a message sink to the end.
func sortByActivity(convs []domain.Conversation) {
	sort.SliceStable(convs, func(a, b int) bool {
		at, bt := convs[a].LastMessageAt, convs[b].LastMessageAt
		switch {
		case at == nil:
			return false
		case bt == nil:
			return true
		default:
			return at.After(*bt)
		}
	})
}
