package signal

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/nstepura/Ring/internal/core"
	"github.com/nstepura/Ring/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(c *wsConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drives one session until disconnect. The deferred calls
// are the cleanup guarantee: whatever interrupted the loop, the
// participant leaves the room exactly once and any call involving it
// is resolved there.
func (ctl *Controller) readLoop(room *core.Room, id domain.UserID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("room", string(room.Meta().ID)).Str("user", string(id)).Msg("session closing")
		room.Leave(id, c)
		c.Close(core.CloseNormal, "")
	}()

	c.conn.SetReadLimit(ctl.readLimit)
	pongWait := ctl.pingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("user", string(id)).Msg("read error")
			}
			return
		}
		ctl.dispatch(room, id, c, data)
	}
}

// dispatch routes one inbound envelope. A malformed or unknown
// message is logged and skipped; it never takes the session down or
// touches other sessions' state.
func (ctl *Controller) dispatch(room *core.Room, id domain.UserID, c *wsConn, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(id)).Msg("bad json")
		return
	}

	switch env.Type {
	case core.TypeCallUser:
		ctl.handleCallUser(room, id, c, env.Data)
	case core.TypeCallAccepted:
		ctl.handleCallAccepted(room, id, env.Data)
	case core.TypeHangup, core.TypeCallDeclined:
		ctl.handleCallEnd(room, id, env.Data)
	case core.TypeOffer, core.TypeAnswer:
		ctl.forwardSDP(room, id, env.Type, env.Data)
	case core.TypeCandidate:
		ctl.forwardCandidate(room, id, env.Data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}
