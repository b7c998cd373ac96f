package signal

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nstepura/Ring/internal/auth"
	"github.com/nstepura/Ring/internal/core"
	"github.com/nstepura/Ring/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// anonymousDisplayName is shown for invite-link participants, who
// carry no identity of their own.
const anonymousDisplayName = "Guest"

// Controller owns the two WebSocket admission paths and the
// per-connection message loop.
type Controller struct {
	Registry *core.Registry
	Verifier *auth.Verifier

	readLimit  int64
	pingPeriod time.Duration
}

func NewController(reg *core.Registry, verifier *auth.Verifier, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		Registry:   reg,
		Verifier:   verifier,
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
}

// wsConn implements core.SignalConnection over a gorilla conn with a
// buffered outbound queue drained by writePump.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.conn.Close()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleAuthenticated serves /ws/tg/:room_id/:init_data: the caller
// proves its identity with signed init data and joins a public room
// named by the platform chat id.
func (ctl *Controller) HandleAuthenticated(c *gin.Context) {
	roomID := domain.RoomID(c.Param("room_id"))
	initData, err := url.PathUnescape(c.Param("init_data"))
	if err != nil {
		initData = c.Param("init_data")
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	conn := newWsConn(ws)
	go ctl.writePump(conn)

	user, err := ctl.Verifier.Verify(initData)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", string(roomID)).Msg("init data rejected")
		conn.Close(core.ClosePolicyViolation, "Forbidden: invalid init data")
		return
	}
	log.Info().Str("module", "signal").Str("room", string(roomID)).Str("user", string(user.ID)).Msg("init data validated")

	room := ctl.Registry.GetOrCreate(roomID, domain.VisibilityPublic)
	if !room.Join(conn, user) {
		return
	}
	ctl.readLoop(room, user.ID, conn)
}

// HandlePrivate serves /ws/private/:room_id: no identity proof, but
// the room must have been provisioned beforehand. The participant
// gets a server-generated id, announced via the identity notice on
// join.
func (ctl *Controller) HandlePrivate(c *gin.Context) {
	roomID := domain.RoomID(c.Param("room_id"))
	room, ok := ctl.Registry.Get(roomID)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	conn := newWsConn(ws)
	go ctl.writePump(conn)

	if !ok || !room.Meta().IsPrivate() {
		log.Warn().Str("module", "signal").Str("room", string(roomID)).Msg("private room rejected: not found or not private")
		conn.Close(core.ClosePolicyViolation, "Forbidden: room not found or not private")
		return
	}

	user := domain.NewAnonymousUser(anonymousDisplayName)
	if !room.Join(conn, user) {
		return
	}
	ctl.readLoop(room, user.ID, conn)
}
