// Package ws implements the realtime feed client: one websocket connection
// carrying per-topic subscriptions to row-level change events.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/whisperwave/whisperwave/internal/domain"
	"github.com/whisperwave/whisperwave/internal/repository"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 1 << 20
)

// Client multiplexes topic subscriptions over a single realtime
// connection. It implements repository.Realtime.
type Client struct {
	conn   *websocket.Conn
	logger *zap.Logger

	// writeMu serializes frame writes; reads happen on one goroutine only.
	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[string]func(changePayload)

	done      chan struct{}
	closeOnce sync.Once
}

var _ repository.Realtime = (*Client)(nil)

// Dial connects to the realtime endpoint. A non-empty token is sent as a
// bearer credential during the handshake.
func Dial(ctx context.Context, rawURL, token string, logger *zap.Logger) (*Client, error) {
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if token != "" {
		opts.HTTPHeader.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.Dial(ctx, rawURL, opts)
	if err != nil {
		return nil, fmt.Errorf("realtime dial: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	c := &Client{
		conn:     conn,
		logger:   logger,
		handlers: make(map[string]func(changePayload)),
		done:     make(chan struct{}),
	}
	go c.readPump()
	go c.pingLoop()
	return c, nil
}

// SubscribeMessages delivers message-row changes for one conversation.
func (c *Client) SubscribeMessages(ctx context.Context, conversationID string, fn func(domain.ChangeEvent)) (repository.Subscription, error) {
	topic := "messages:" + conversationID
	handler := func(p changePayload) {
		var rec domain.Message
		if err := json.Unmarshal(p.Record, &rec); err != nil {
			c.logger.Warn("realtime: bad message record", zap.String("topic", topic), zap.Error(err))
			return
		}
		fn(domain.ChangeEvent{Type: p.Type, Record: rec})
	}
	return c.subscribe(ctx, topic, "messages", "chat_id=eq."+conversationID, handler)
}

// SubscribeConversations delivers conversation-row changes for one participant.
func (c *Client) SubscribeConversations(ctx context.Context, participantID string, fn func(domain.ConversationEvent)) (repository.Subscription, error) {
	topic := "chats:" + participantID
	handler := func(p changePayload) {
		var rec domain.Conversation
		if err := json.Unmarshal(p.Record, &rec); err != nil {
			c.logger.Warn("realtime: bad conversation record", zap.String("topic", topic), zap.Error(err))
			return
		}
		fn(domain.ConversationEvent{Type: p.Type, Record: rec})
	}
	return c.subscribe(ctx, topic, "chats", "participant=eq."+participantID, handler)
}

// Close tears down the connection and stops both pumps.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close(websocket.StatusNormalClosure, "")
	})
}

func (c *Client) subscribe(ctx context.Context, topic, table, filter string, handler func(changePayload)) (repository.Subscription, error) {
	c.mu.Lock()
	c.handlers[topic] = handler
	c.mu.Unlock()

	if err := c.write(ctx, frame{Type: frameSubscribe, Topic: topic, Table: table, Filter: filter}); err != nil {
		c.mu.Lock()
		delete(c.handlers, topic)
		c.mu.Unlock()
		return nil, fmt.Errorf("realtime subscribe %s: %w", topic, err)
	}
	return &subscription{client: c, topic: topic}, nil
}

func (c *Client) unsubscribe(topic string) {
	c.mu.Lock()
	delete(c.handlers, topic)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	// The connection may already be gone; dropping the handler is what matters.
	if err := c.write(ctx, frame{Type: frameUnsubscribe, Topic: topic}); err != nil {
		c.logger.Debug("realtime: unsubscribe write failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (c *Client) write(ctx context.Context, f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsjson.Write(ctx, c.conn, f)
}

func (c *Client) readPump() {
	defer c.Close()

	for {
		var f frame
		if err := wsjson.Read(context.Background(), c.conn, &f); err != nil {
			select {
			case <-c.done:
			default:
				if websocket.CloseStatus(err) != -1 {
					c.logger.Info("realtime: connection closed")
				} else {
					c.logger.Warn("realtime: read error", zap.Error(err))
				}
			}
			return
		}

		switch f.Type {
		case frameChange:
			c.dispatch(f)
		case frameError:
			var p errorPayload
			if err := json.Unmarshal(f.Payload, &p); err == nil {
				c.logger.Warn("realtime: server error",
					zap.String("code", p.Code), zap.String("message", p.Message))
			}
		}
	}
}

func (c *Client) dispatch(f frame) {
	c.mu.Lock()
	handler, ok := c.handlers[f.Topic]
	c.mu.Unlock()
	if !ok {
		// Event for a topic we already left; drop it.
		return
	}

	var p changePayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		c.logger.Warn("realtime: bad change payload", zap.String("topic", f.Topic), zap.Error(err))
		return
	}
	handler(p)
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.logger.Warn("realtime: ping failed", zap.Error(err))
				c.Close()
				return
			}
		}
	}
}

// subscription cancels a topic exactly once.
type subscription struct {
	client *Client
	topic  string
	once   sync.Once
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.client.unsubscribe(s.topic)
	})
}
