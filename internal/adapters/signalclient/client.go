// Package signalclient is the websocket signaling channel a huddle client
// keeps open toward the relay for the duration of one call.
package signalclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrSignalingConnection = errors.New("signaling connection failed")
	ErrSignalingFailed     = errors.New("signaling reconnect attempts exhausted")
	ErrNotConnected        = errors.New("signaling not connected")
	ErrBackpressure        = errors.New("backpressure")
	ErrAlreadyConnected    = errors.New("signaling already connected")
)

// Handler receives inbound events. Calls are made one at a time from the
// channel's read goroutine.
type Handler interface {
	OnOffer(from domain.UserID, offer webrtc.SessionDescription)
	OnAnswer(from domain.UserID, answer webrtc.SessionDescription)
	OnICECandidate(from domain.UserID, c webrtc.ICECandidateInit)
	OnParticipantJoined(id domain.UserID, joinedAt time.Time)
	OnParticipantLeft(id domain.UserID)
	OnParticipantToggled(id domain.UserID, kind domain.MediaKind, enabled bool)
	OnStateChange(s State)
}

type Config struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	PingPeriod        time.Duration
	WriteTimeout      time.Duration
	SendBuffer        int
	Dialer            *websocket.Dialer
}

func (c Config) withDefaults() Config {
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = 5
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = 25 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 32
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	return c
}

// SignalURL maps the relay base url (http, https, ws or wss) to its signaling endpoint.
func SignalURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported relay url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/ws/signal"
	return u.String(), nil
}

// Channel is bound to one room for its whole life. It is not reusable after Disconnect.
type Channel struct {
	cfg     Config
	handler Handler

	mu     sync.RWMutex
	room   domain.RoomID
	token  string
	send   chan []byte
	state  State
	err    error
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, h Handler) *Channel {
	return &Channel{cfg: cfg.withDefaults(), handler: h}
}

// Connect dials the relay and announces the room. The token is replayed on every reconnect.
func (c *Channel) Connect(ctx context.Context, room domain.RoomID, token string) error {
	c.mu.Lock()
	if c.closed || c.done != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.room = room
	c.token = token
	c.mu.Unlock()
	c.setState(StateConnecting)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateIdle)
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		return ErrNotConnected
	}
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.supervise(runCtx, conn)
	return nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrSignalingConnection, c.cfg.URL, resp.Status)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSignalingConnection, c.cfg.URL, err)
	}
	return conn, nil
}

// supervise owns the transport: it runs one session per socket and redials on loss.
func (c *Channel) supervise(ctx context.Context, conn *websocket.Conn) {
	defer close(c.done)
	for {
		err := c.runSession(ctx, conn)
		if c.isClosed() {
			c.setState(StateClosed)
			return
		}
		log.Warn().Err(err).Str("module", "signalclient").Str("room", string(c.room)).Msg("transport lost")

		conn = c.reconnect(ctx)
		if conn == nil {
			if c.isClosed() {
				c.setState(StateClosed)
				return
			}
			c.mu.Lock()
			c.err = ErrSignalingFailed
			c.mu.Unlock()
			log.Error().Str("module", "signalclient").Str("room", string(c.room)).Msg("signaling failed")
			c.setState(StateFailed)
			return
		}
	}
}

func (c *Channel) reconnect(ctx context.Context) *websocket.Conn {
	c.setState(StateReconnecting)
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
		conn, err := c.dial(ctx)
		if err == nil {
			log.Info().Str("module", "signalclient").Int("attempt", attempt).Msg("reconnected")
			return conn
		}
		log.Warn().Err(err).Str("module", "signalclient").Int("attempt", attempt).Msg("reconnect failed")
	}
	return nil
}

// runSession pumps one socket until it dies. join-room is always the first frame.
func (c *Channel) runSession(ctx context.Context, conn *websocket.Conn) error {
	join, err := protocol.Encode(protocol.EventJoinRoom, protocol.RoomPayload{RoomID: c.room})
	if err != nil {
		_ = conn.Close()
		return err
	}
	send := make(chan []byte, c.cfg.SendBuffer)
	send <- join

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrNotConnected
	}
	c.send = send
	c.mu.Unlock()
	c.setState(StateConnected)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx, conn, send)
	}()

	err = c.readPump(conn)

	c.mu.Lock()
	if c.send == send {
		c.send = nil
		close(send)
	}
	c.mu.Unlock()
	_ = conn.Close()
	<-writerDone
	return err
}

func (c *Channel) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	log.Debug().Str("module", "signalclient").Str("state", s.String()).Msg("state")
	if c.handler != nil {
		c.handler.OnStateChange(s)
	}
}

func (c *Channel) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err reports ErrSignalingFailed once reconnection gave up.
func (c *Channel) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Disconnect sends leave-room, drains queued frames and closes the socket. Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	connected := c.send != nil
	if connected {
		if leave, err := protocol.Encode(protocol.EventLeaveRoom, protocol.RoomPayload{RoomID: c.room}); err == nil {
			select {
			case c.send <- leave:
			default:
				log.Warn().Str("module", "signalclient").Msg("leave-room dropped, queue full")
			}
		}
		close(c.send)
		c.send = nil
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if done == nil {
		c.setState(StateClosed)
		return
	}
	if !connected {
		// nothing to drain; stop a pending redial
		cancel()
	}
	// the writer drains and closes the socket, which ends the reader
	select {
	case <-done:
	case <-time.After(2 * c.cfg.WriteTimeout):
		log.Warn().Str("module", "signalclient").Msg("disconnect timed out")
	}
	cancel()
}

func (c *Channel) sendFrame(t protocol.Event, payload any) error {
	data, err := protocol.Encode(t, payload)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.send == nil {
		return ErrNotConnected
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Channel) roomID() domain.RoomID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room
}

func (c *Channel) SendOffer(to domain.UserID, offer webrtc.SessionDescription) error {
	return c.sendFrame(protocol.EventOffer, protocol.OfferPayload{To: to, RoomID: c.roomID(), Offer: offer})
}

func (c *Channel) SendAnswer(to domain.UserID, answer webrtc.SessionDescription) error {
	return c.sendFrame(protocol.EventAnswer, protocol.AnswerPayload{To: to, RoomID: c.roomID(), Answer: answer})
}

func (c *Channel) SendICECandidate(to domain.UserID, cand webrtc.ICECandidateInit) error {
	return c.sendFrame(protocol.EventCandidate, protocol.CandidatePayload{To: to, RoomID: c.roomID(), Candidate: cand})
}

func (c *Channel) SendToggle(kind domain.MediaKind, enabled bool) error {
	out, _ := protocol.ToggleEvents(kind)
	return c.sendFrame(out, protocol.TogglePayload{RoomID: c.roomID(), Enabled: enabled})
}
