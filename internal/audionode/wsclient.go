package audionode

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// WSClient is the concrete Client binding talking to an andesite-style
// audio node over a single long-lived WebSocket connection, issuing
// fire-and-forget ops and request/reply queries over one shared socket
// the way the original's andesite.AndesiteWebSocketInterface does.
type WSClient struct {
	mu   sync.Mutex
	conn *websocket.Conn

	pending   map[string]chan json.RawMessage
	pendingMu sync.Mutex
}

// DialWSClient connects to an audio node at url and starts its read loop.
func DialWSClient(ctx context.Context, url string, header map[string][]string) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial audio node: %w", err)
	}

	c := &WSClient{
		conn:    conn,
		pending: make(map[string]chan json.RawMessage),
	}
	go c.readLoop()
	return c, nil
}

func (c *WSClient) readLoop() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			log.WithError(err).Warn("audio node connection closed")
			c.failAllPending(err)
			return
		}

		var envelope struct {
			ReqID string `json:"requestId"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			log.WithError(err).Warn("malformed audio node frame")
			continue
		}
		if envelope.ReqID == "" {
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[envelope.ReqID]
		delete(c.pending, envelope.ReqID)
		c.pendingMu.Unlock()

		if ok {
			ch <- json.RawMessage(raw)
		}
	}
}

func (c *WSClient) failAllPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *WSClient) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// request sends v and waits for a reply frame carrying the same
// requestId, honoring ctx cancellation.
func (c *WSClient) request(ctx context.Context, reqID string, v any) (json.RawMessage, error) {
	ch := make(chan json.RawMessage, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = ch
	c.pendingMu.Unlock()

	if err := c.send(v); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
		return nil, err
	}

	select {
	case raw, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("audio node connection closed while awaiting reply")
		}
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *WSClient) Play(ctx context.Context, guildID uint64, track string, start, end float64) error {
	return c.send(struct {
		Op      string  `json:"op"`
		GuildID uint64  `json:"guildId"`
		Track   string  `json:"track"`
		Start   float64 `json:"start,omitempty"`
		End     float64 `json:"end,omitempty"`
	}{"play", guildID, track, start, end})
}

func (c *WSClient) Stop(ctx context.Context, guildID uint64) error {
	return c.send(struct {
		Op      string `json:"op"`
		GuildID uint64 `json:"guildId"`
	}{"stop", guildID})
}

func (c *WSClient) Pause(ctx context.Context, guildID uint64, paused bool) error {
	return c.send(struct {
		Op      string `json:"op"`
		GuildID uint64 `json:"guildId"`
		Pause   bool   `json:"pause"`
	}{"pause", guildID, paused})
}

func (c *WSClient) Seek(ctx context.Context, guildID uint64, position float64) error {
	return c.send(struct {
		Op       string  `json:"op"`
		GuildID  uint64  `json:"guildId"`
		Position float64 `json:"position"`
	}{"seek", guildID, position})
}

func (c *WSClient) Volume(ctx context.Context, guildID uint64, volume float64) error {
	return c.send(struct {
		Op      string  `json:"op"`
		GuildID uint64  `json:"guildId"`
		Volume  float64 `json:"volume"`
	}{"volume", guildID, volume * 100})
}

func (c *WSClient) GetPlayer(ctx context.Context, guildID uint64) (PlayerView, error) {
	reqID := fmt.Sprintf("%d-%d", guildID, time.Now().UnixNano())
	raw, err := c.request(ctx, reqID, struct {
		Op      string `json:"op"`
		GuildID uint64 `json:"guildId"`
		ReqID   string `json:"requestId"`
	}{"get-player", guildID, reqID})
	if err != nil {
		return nil, err
	}

	var view PlayerView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, fmt.Errorf("decode player view: %w", err)
	}
	return view, nil
}

func (c *WSClient) VoiceServerUpdate(ctx context.Context, update VoiceServerUpdate) error {
	return c.send(struct {
		Op        string         `json:"op"`
		GuildID   uint64         `json:"guildId"`
		SessionID string         `json:"sessionId"`
		Event     map[string]any `json:"event"`
	}{"voice-server-update", update.GuildID, update.SessionID, update.Raw})
}

// Close releases the underlying connection.
func (c *WSClient) Close() error {
	return c.conn.Close()
}

var _ Client = (*WSClient)(nil)
