// Package signal is the relay's websocket endpoint: it authenticates the
// socket, relays peer-addressed frames and fans out room events.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/auth"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("connection closed")

type Options struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	SendBuffer   int
	RateLimit    int
	RateInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 25 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 50
	}
	if o.RateInterval <= 0 {
		o.RateInterval = time.Second
	}
	return o
}

type SignalWSController struct {
	Orch    *app.Orchestrator
	Limiter *RoomRateLimiter
	opts    Options
}

func NewSignalWSController(orch *app.Orchestrator, opts Options) *SignalWSController {
	opts = opts.withDefaults()
	return &SignalWSController{
		Orch:    orch,
		Limiter: NewRoomRateLimiter(opts.RateLimit, opts.RateInterval),
		opts:    opts,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades an authenticated request and starts the socket pumps.
// ctx bounds the socket lifetime together with the registry cancel func.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	user, ok := auth.UserFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", user.ID.String()).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(sid, user, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
