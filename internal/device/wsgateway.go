package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// frame is the wire format spoken with the device edge: inbound lifecycle
// events and outbound connection commands share one envelope.
type frame struct {
	Event        string            `json:"event,omitempty"`
	Action       string            `json:"action,omitempty"`
	ConnectionID string            `json:"connection_id,omitempty"`
	Params       map[string]string `json:"params,omitempty"`
	From         string            `json:"from,omitempty"`
	Muted        bool              `json:"muted,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// WSGateway is the production Gateway: a websocket client against the
// device edge, registered with a backend-minted token.
type WSGateway struct {
	url           string
	token         string
	conn          *websocket.Conn
	handlers      []func(Event)
	logger        zerolog.Logger
	reconnectChan chan struct{}
	mutex         sync.RWMutex
	connected     bool
	ready         bool
	loopStarted   bool
	ctx           context.Context
	cancel        context.CancelFunc
}

type WSGatewayConfig struct {
	URL    string
	Logger zerolog.Logger
}

func NewWSGateway(cfg WSGatewayConfig) *WSGateway {
	ctx, cancel := context.WithCancel(context.Background())

	return &WSGateway{
		url:           cfg.URL,
		logger:        cfg.Logger,
		reconnectChan: make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Register dials the device edge with the given credential. The gateway
// reports Ready only after the edge acknowledges with a ready event; a
// failed dial leaves it unregistered until the next attempt.
func (g *WSGateway) Register(ctx context.Context, token string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.connected {
		return nil
	}

	g.token = token

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{
		HandshakeTimeout: 30 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, g.url, headers)
	if err != nil {
		g.ready = false
		return fmt.Errorf("failed to connect to device edge: %w", err)
	}

	g.conn = conn
	g.connected = true

	g.logger.Info().Str("url", g.url).Msg("Connected to device edge")

	go g.readEvents()
	if !g.loopStarted {
		g.loopStarted = true
		go g.handleReconnect()
	}

	return nil
}

func (g *WSGateway) Close() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.cancel()

	if !g.connected {
		return nil
	}

	if g.conn != nil {
		err := g.conn.Close()
		g.conn = nil
		g.connected = false
		g.ready = false
		g.logger.Info().Msg("Disconnected from device edge")
		return err
	}

	return nil
}

func (g *WSGateway) Ready() bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.connected && g.ready
}

func (g *WSGateway) OnEvent(fn func(Event)) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.handlers = append(g.handlers, fn)
}

// Connect opens an outbound connection on the device.
func (g *WSGateway) Connect(params ConnectParams) (Connection, error) {
	if !g.Ready() {
		return nil, errors.New("device not ready")
	}

	id := uuid.New().String()
	if err := g.send(frame{
		Action:       "connect",
		ConnectionID: id,
		Params:       map[string]string{"To": params.To},
	}); err != nil {
		return nil, err
	}

	g.logger.Info().
		Str("connection_id", id).
		Str("to", params.To).
		Msg("Device connection opened")

	return &wsConnection{gateway: g, id: id}, nil
}

func (g *WSGateway) send(f frame) error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if !g.connected || g.conn == nil {
		return errors.New("device edge not connected")
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	g.logger.Debug().RawJSON("frame", data).Msg("Sending device command")

	if err := g.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		g.logger.Error().Err(err).Msg("Failed to send device command")
		return fmt.Errorf("failed to send device command: %w", err)
	}

	return nil
}

func (g *WSGateway) readEvents() {
	defer func() {
		g.mutex.Lock()
		g.connected = false
		g.ready = false
		g.mutex.Unlock()
	}()

	for {
		select {
		case <-g.ctx.Done():
			return
		default:
			g.mutex.RLock()
			conn := g.conn
			g.mutex.RUnlock()
			if conn == nil {
				return
			}

			_, data, err := conn.ReadMessage()
			if err != nil {
				g.logger.Error().Err(err).Msg("Failed to read device event")
				g.triggerReconnect()
				return
			}

			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				g.logger.Error().Err(err).Str("data", string(data)).Msg("Failed to unmarshal device event")
				continue
			}

			g.logger.Debug().
				Str("event", f.Event).
				Str("connection_id", f.ConnectionID).
				Msg("Received device event")

			g.dispatch(f)
		}
	}
}

func (g *WSGateway) dispatch(f frame) {
	event := Event{Type: EventType(f.Event), Muted: f.Muted}

	switch event.Type {
	case EventReady:
		g.mutex.Lock()
		g.ready = true
		g.mutex.Unlock()
	case EventError:
		g.mutex.Lock()
		g.ready = false
		g.mutex.Unlock()
		if f.Error != "" {
			event.Err = errors.New(f.Error)
		}
	case EventIncoming:
		event.Conn = &wsConnection{gateway: g, id: f.ConnectionID}
		event.From = f.From
	}

	g.mutex.RLock()
	handlers := make([]func(Event), len(g.handlers))
	copy(handlers, g.handlers)
	g.mutex.RUnlock()

	for _, fn := range handlers {
		fn(event)
	}
}

func (g *WSGateway) handleReconnect() {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-g.reconnectChan:
			g.logger.Info().Msg("Attempting to reconnect to device edge")

		retry:
			for {
				select {
				case <-g.ctx.Done():
					return
				default:
					if err := g.Register(g.ctx, g.token); err != nil {
						g.logger.Error().Err(err).
							Dur("backoff", backoff).
							Msg("Device reconnection failed, retrying")

						time.Sleep(backoff)
						if backoff < maxBackoff {
							backoff *= 2
						}
					} else {
						g.logger.Info().Msg("Reconnected to device edge")
						backoff = time.Second
						break retry
					}
				}
			}
		}
	}
}

func (g *WSGateway) triggerReconnect() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.connected {
		g.connected = false
		g.ready = false
		if g.conn != nil {
			g.conn.Close()
			g.conn = nil
		}

		select {
		case g.reconnectChan <- struct{}{}:
		default:
		}
	}
}

type wsConnection struct {
	gateway *WSGateway
	id      string
}

func (c *wsConnection) Accept() error {
	return c.gateway.send(frame{Action: "accept", ConnectionID: c.id})
}

func (c *wsConnection) Disconnect() error {
	return c.gateway.send(frame{Action: "disconnect", ConnectionID: c.id})
}

func (c *wsConnection) Mute(muted bool) error {
	return c.gateway.send(frame{Action: "mute", ConnectionID: c.id, Muted: muted})
}
