package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/whisperwave/whisperwave/internal/domain"
)

// echoChangeServer accepts one connection, records the handshake auth
// header, and answers the first subscribe frame with a single INSERT.
func echoChangeServer(t *testing.T, record string, gotAuth *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotAuth = r.Header.Get("Authorization")

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return
		}
		if f.Type != frameSubscribe {
			t.Errorf("first frame type = %q, want subscribe", f.Type)
			return
		}

		payload, _ := json.Marshal(changePayload{
			Type:   domain.EventInsert,
			Record: json.RawMessage(record),
		})
		if err := wsjson.Write(ctx, conn, frame{Type: frameChange, Topic: f.Topic, Payload: payload}); err != nil {
			return
		}

		// Drain until the client unsubscribes or hangs up.
		for {
			if err := wsjson.Read(ctx, conn, &f); err != nil {
				return
			}
		}
	}))
}

func TestClient_SubscribeMessages_DeliversEvents(t *testing.T) {
	var gotAuth string
	record := `{"id":"m1","conversation_id":"c1","sender_id":"u1","text":"hi","timestamp":"2024-05-01T10:00:00Z"}`
	srv := echoChangeServer(t, record, &gotAuth)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "tok-123", zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	events := make(chan domain.ChangeEvent, 1)
	sub, err := client.SubscribeMessages(ctx, "c1", func(ev domain.ChangeEvent) {
		events <- ev
	})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, domain.EventInsert, ev.Type)
		assert.Equal(t, "m1", ev.Record.ID)
		assert.Equal(t, "hi", ev.Record.Text)
		assert.Equal(t, "u1", ev.Record.SenderID)
	case <-ctx.Done():
		t.Fatal("no event delivered before timeout")
	}

	assert.Equal(t, "Bearer tok-123", gotAuth)

	// Cancel is idempotent.
	sub.Cancel()
	sub.Cancel()
}

func TestClient_DropsEventsAfterCancel(t *testing.T) {
	var gotAuth string
	record := `{"id":"c9","participants":["u1","u2"]}`
	srv := echoChangeServer(t, record, &gotAuth)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "", zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	events := make(chan domain.ConversationEvent, 4)
	sub, err := client.SubscribeConversations(ctx, "u1", func(ev domain.ConversationEvent) {
		events <- ev
	})
	require.NoError(t, err)

	select {
	case <-events:
	case <-ctx.Done():
		t.Fatal("no event delivered before timeout")
	}

	sub.Cancel()

	// Dispatch after cancel finds no handler and must not panic or block.
	client.dispatch(frame{Type: frameChange, Topic: "chats:u1", Payload: json.RawMessage(`{"type":"UPDATE","record":{}}`)})
	assert.Empty(t, events)
}
