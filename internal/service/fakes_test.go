package service

import (
	"context"
	"fmt"
	"time"

	"github.com/whisperwave/whisperwave/internal/domain"
	"github.com/whisperwave/whisperwave/internal/repository"
)

type summaryUpdate struct {
	id          string
	lastMessage string
	at          *time.Time
}

type fakeConvStore struct {
	byID map[string]*domain.Conversation

	upserts   []domain.Conversation
	upsertErr error

	getErr error

	summaries  []summaryUpdate
	summaryErr error

	listOut []domain.Conversation
	listErr error
}

var _ repository.ConversationStore = (*fakeConvStore)(nil)

func (f *fakeConvStore) Upsert(_ context.Context, conv *domain.Conversation) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, *conv)
	return nil
}

func (f *fakeConvStore) GetByID(_ context.Context, id string) (*domain.Conversation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.byID[id], nil
}

func (f *fakeConvStore) UpdateSummary(_ context.Context, id, lastMessage string, at *time.Time) error {
	if f.summaryErr != nil {
		return f.summaryErr
	}
	f.summaries = append(f.summaries, summaryUpdate{id: id, lastMessage: lastMessage, at: at})
	return nil
}

func (f *fakeConvStore) ListByParticipant(_ context.Context, _ string) ([]domain.Conversation, error) {
	return append([]domain.Conversation(nil), f.listOut...), f.listErr
}

type fakeMsgStore struct {
	inserts   int
	insertErr error
	serverAt  time.Time

	updates   []string
	updateErr error

	deletes   []string
	deleteErr error

	listOut []domain.Message
	listErr error

	latestOut *domain.Message
	latestErr error
}

var _ repository.MessageStore = (*fakeMsgStore)(nil)

func (f *fakeMsgStore) Insert(_ context.Context, msg *domain.Message) (*domain.Message, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserts++
	stored := *msg
	stored.ID = fmt.Sprintf("m-%d", f.inserts)
	stored.Timestamp = f.serverAt
	stored.Pending = false
	return &stored, nil
}

func (f *fakeMsgStore) Update(_ context.Context, id, _ string, _ time.Time) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, id)
	return nil
}

func (f *fakeMsgStore) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeMsgStore) List(_ context.Context, _ string) ([]domain.Message, error) {
	return append([]domain.Message(nil), f.listOut...), f.listErr
}

func (f *fakeMsgStore) Latest(_ context.Context, _ string) (*domain.Message, error) {
	return f.latestOut, f.latestErr
}

type fakeRealtime struct {
	msgHandlers  map[string]func(domain.ChangeEvent)
	convHandlers map[string]func(domain.ConversationEvent)
	subErr       error
	cancelled    []string
}

var _ repository.Realtime = (*fakeRealtime)(nil)

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{
		msgHandlers:  make(map[string]func(domain.ChangeEvent)),
		convHandlers: make(map[string]func(domain.ConversationEvent)),
	}
}

func (f *fakeRealtime) SubscribeMessages(_ context.Context, conversationID string, fn func(domain.ChangeEvent)) (repository.Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.msgHandlers[conversationID] = fn
	return &fakeSub{rt: f, topic: "messages:" + conversationID}, nil
}

func (f *fakeRealtime) SubscribeConversations(_ context.Context, participantID string, fn func(domain.ConversationEvent)) (repository.Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.convHandlers[participantID] = fn
	return &fakeSub{rt: f, topic: "chats:" + participantID}, nil
}

func (f *fakeRealtime) emitMessage(conversationID string, ev domain.ChangeEvent) {
	if fn, ok := f.msgHandlers[conversationID]; ok {
		fn(ev)
	}
}

func (f *fakeRealtime) emitConversation(participantID string, ev domain.ConversationEvent) {
	if fn, ok := f.convHandlers[participantID]; ok {
		fn(ev)
	}
}

type fakeSub struct {
	rt    *fakeRealtime
	topic string
}

func (s *fakeSub) Cancel() {
	s.rt.cancelled = append(s.rt.cancelled, s.topic)
}

type fakeBlobStore struct {
	calls int
	url   string
	err   error
}

var _ repository.BlobStore = (*fakeBlobStore)(nil)

func (f *fakeBlobStore) Upload(_ context.Context, key, _ string, _ []byte, onProgress func(int)) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if onProgress != nil {
		onProgress(0)
		onProgress(100)
	}
	if f.url != "" {
		return f.url, nil
	}
	return "http://blob/" + key, nil
}
