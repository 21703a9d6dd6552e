package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whisperwave/whisperwave/internal/convid"
	"github.com/whisperwave/whisperwave/internal/domain"
	"github.com/whisperwave/whisperwave/internal/repository"
	"github.com/whisperwave/whisperwave/pkg/validator"
)

const defaultOpTimeout = 15 * time.Second

// ChatService drives the send/edit/delete/upload pipelines and owns the
// realtime session for the currently open conversation. All collaborators
// are injected; the service never reads ambient auth or client state.
type ChatService struct {
	convs    repository.ConversationStore
	msgs     repository.MessageStore
	realtime repository.Realtime
	blobs    repository.BlobStore
	logger   *zap.Logger

	now       func() time.Time
	opTimeout time.Duration

	mu     sync.Mutex
	active *Session
}

func NewChatService(
	convs repository.ConversationStore,
	msgs repository.MessageStore,
	realtime repository.Realtime,
	blobs repository.BlobStore,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		convs:     convs,
		msgs:      msgs,
		realtime:  realtime,
		blobs:     blobs,
		logger:    logger,
		now:       time.Now,
		opTimeout: defaultOpTimeout,
	}
}

// ResolveConversationID derives the deterministic conversation id for a
// participant pair. The Postgres store enforces a UUID primary key, so the
// hashed form is used.
func (s *ChatService) ResolveConversationID(me, other string) (string, error) {
	id, err := convid.Hash(me, other)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return id, nil
}

// Open starts a session for the conversation between me and other: fetch
// the snapshot, subscribe to the realtime feed, and hand the ordered
// projection to onChange after every change. Opening a new conversation
// cancels the previously active session, so stale subscriptions never keep
// mutating a view that is no longer displayed.
func (s *ChatService) Open(ctx context.Context, me, other string, onChange func([]domain.Message)) (*Session, error) {
	if me == "" {
		return nil, ErrUnauthenticated
	}
	id, err := s.ResolveConversationID(me, other)
	if err != nil {
		return nil, err
	}

	conv, err := s.convs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		// Not persisted yet; the row is created lazily on first send.
		conv = &domain.Conversation{
			ID:           id,
			Participants: orderedPair(me, other),
			CreatedAt:    s.now(),
		}
	}

	snapshot, err := s.msgs.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}

	sess := newSession(*conv, me, onChange)
	sess.restore(snapshot)

	sub, err := s.realtime.SubscribeMessages(ctx, id, sess.handleEvent)
	if err != nil {
		return nil, fmt.Errorf("subscribing to conversation: %w", err)
	}
	sess.sub = sub

	s.mu.Lock()
	prev := s.active
	s.active = sess
	s.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	s.logger.Info("conversation opened",
		zap.String("conversation_id", id),
		zap.Int("messages", len(snapshot)))
	return sess, nil
}

// Close cancels the active session, if any.
func (s *ChatService) Close() {
	s.mu.Lock()
	active := s.active
	s.active = nil
	s.mu.Unlock()
	if active != nil {
		active.Close()
	}
}

// Send submits a new message. The optimistic copy lands in the session
// list before any network call; when the upsert or insert fails it is
// rolled back. Failures surface as ErrSendFailed.
func (s *ChatService) Send(ctx context.Context, sess *Session, text, attachmentURL string) (*domain.Message, error) {
	if sess == nil {
		return nil, fmt.Errorf("%w: no open session", ErrInvalidArgument)
	}
	if strings.TrimSpace(text) == "" && attachmentURL == "" {
		return nil, fmt.Errorf("%w: message needs text or an attachment", ErrInvalidArgument)
	}

	conv := sess.Conversation()

	optimistic := domain.Message{
		ID:             "temp-" + uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       sess.Me(),
		Text:           text,
		AttachmentURL:  attachmentURL,
		Timestamp:      s.now(),
		Pending:        true,
	}
	sess.insert(optimistic)

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	clientAt := optimistic.Timestamp
	row := domain.Conversation{
		ID:            conv.ID,
		Participants:  conv.Participants,
		LastMessage:   optimistic.Summary(),
		LastMessageAt: &clientAt,
		CreatedAt:     conv.CreatedAt,
	}
	if err := s.convs.Upsert(ctx, &row); err != nil {
		sess.remove(optimistic.ID)
		return nil, classify(ErrSendFailed, err)
	}

	stored, err := s.msgs.Insert(ctx, &optimistic)
	if err != nil {
		sess.remove(optimistic.ID)
		return nil, classify(ErrSendFailed, err)
	}

	// The insert's return value carries the authoritative id and
	// timestamp, so the temporary entry is replaced directly instead of
	// being matched against the event echo.
	sess.confirm(optimistic.ID, *stored)

	// The message itself is committed and stays in the session; a summary
	// failure surfaces like any other remote failure and heals on the next
	// write to this conversation.
	if err := s.convs.UpdateSummary(ctx, conv.ID, stored.Summary(), &stored.Timestamp); err != nil {
		return nil, classify(ErrSendFailed, err)
	}

	return stored, nil
}

// Edit rewrites a message's text. The change is applied optimistically and
// rolled back to the pre-edit value when the remote update fails.
func (s *ChatService) Edit(ctx context.Context, sess *Session, messageID, newText string) (*domain.Message, error) {
	if sess == nil {
		return nil, fmt.Errorf("%w: no open session", ErrInvalidArgument)
	}
	if strings.TrimSpace(newText) == "" {
		return nil, fmt.Errorf("%w: edited text must not be blank", ErrInvalidArgument)
	}

	prev, ok := sess.get(messageID)
	if !ok {
		return nil, fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	if prev.SenderID != sess.Me() {
		return nil, ErrNotOwner
	}

	editedAt := s.now()
	edited := prev
	edited.Text = newText
	edited.Edited = true
	edited.EditedAt = &editedAt
	edited.Pending = true
	sess.insert(edited)

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.msgs.Update(ctx, messageID, newText, editedAt); err != nil {
		sess.insert(prev)
		return nil, classify(ErrEditFailed, err)
	}

	edited.Pending = false
	sess.insert(edited)

	// Only an edit of the chronologically latest message moves the
	// conversation's summary line.
	latest, err := s.msgs.Latest(ctx, prev.ConversationID)
	if err != nil {
		return nil, classify(ErrEditFailed, err)
	}
	if latest != nil && latest.ID == messageID {
		if err := s.convs.UpdateSummary(ctx, prev.ConversationID, latest.Summary(), &latest.Timestamp); err != nil {
			return nil, classify(ErrEditFailed, err)
		}
	}

	return &edited, nil
}

// Delete removes a message. The local removal is optimistic; if the remote
// delete fails the authoritative list is re-fetched rather than manually
// undone, because intervening events may have arrived meanwhile.
func (s *ChatService) Delete(ctx context.Context, sess *Session, messageID string) error {
	if sess == nil {
		return fmt.Errorf("%w: no open session", ErrInvalidArgument)
	}

	prev, ok := sess.get(messageID)
	if !ok {
		return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	if prev.SenderID != sess.Me() {
		return ErrNotOwner
	}

	sess.remove(messageID)

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.msgs.Delete(ctx, messageID); err != nil {
		// The op context may already be expired when the delete failed on
		// its deadline; the restore gets its own.
		restoreCtx, restoreCancel := context.WithTimeout(context.Background(), s.opTimeout)
		defer restoreCancel()
		if snapshot, listErr := s.msgs.List(restoreCtx, prev.ConversationID); listErr == nil {
			sess.restore(snapshot)
		} else {
			s.logger.Error("restore after failed delete also failed",
				zap.String("conversation_id", prev.ConversationID), zap.Error(listErr))
		}
		return classify(ErrDeleteFailed, err)
	}

	// Recompute the summary from the latest remaining message; clear it
	// when the conversation is now empty.
	latest, err := s.msgs.Latest(ctx, prev.ConversationID)
	if err != nil {
		return classify(ErrDeleteFailed, err)
	}
	if latest == nil {
		if err := s.convs.UpdateSummary(ctx, prev.ConversationID, "", nil); err != nil {
			return classify(ErrDeleteFailed, err)
		}
		return nil
	}
	if err := s.convs.UpdateSummary(ctx, prev.ConversationID, latest.Summary(), &latest.Timestamp); err != nil {
		return classify(ErrDeleteFailed, err)
	}
	return nil
}

// UploadAttachment validates and uploads an image, returning its durable
// URL. Validation failures never touch the network. The caller hands the
// URL to Send afterwards; the two steps are sequential for one message.
func (s *ChatService) UploadAttachment(ctx context.Context, conversationID, filename, contentType string, data []byte, onProgress func(int)) (string, error) {
	if conversationID == "" {
		return "", fmt.Errorf("%w: empty conversation id", ErrInvalidArgument)
	}
	if errs := validator.ValidateAttachment(filename, contentType, int64(len(data))); errs.HasErrors() {
		return "", fmt.Errorf("%w: %s", ErrInvalidAttachment, errs)
	}

	key := fmt.Sprintf("%s/%d_%s", conversationID, s.now().UnixMilli(), validator.SanitizeFileName(filename))

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	url, err := s.blobs.Upload(ctx, key, contentType, data, onProgress)
	if err != nil {
		return "", classify(ErrUploadFailed, err)
	}
	return url, nil
}

func orderedPair(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}
