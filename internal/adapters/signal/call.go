package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/nstepura/Ring/internal/core"
	"github.com/nstepura/Ring/internal/domain"
)

type callUserPayload struct {
	TargetID domain.UserID `json:"target_id"`
	CallType string        `json:"call_type"`
}

type targetPayload struct {
	TargetID domain.UserID `json:"target_id"`
}

func (ctl *Controller) handleCallUser(room *core.Room, id domain.UserID, c *wsConn, data []byte) {
	var p callUserPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(id)).Msg("bad call_user payload")
		return
	}

	err := room.PlaceCall(id, p.TargetID, p.CallType)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrCallInProgress), errors.Is(err, core.ErrPeerBusy):
		// The caller's UI is waiting for a resolution; end it.
		log.Info().Str("module", "signal").Str("user", string(id)).Str("target", string(p.TargetID)).Msg("call rejected, peer busy")
		_ = c.TrySend(core.CallEndedMessage())
	default:
		// Target gone between user_list and call_user: best-effort drop.
		log.Debug().Err(err).Str("module", "signal").Str("user", string(id)).Str("target", string(p.TargetID)).Msg("call_user dropped")
	}
}

func (ctl *Controller) handleCallAccepted(room *core.Room, id domain.UserID, data []byte) {
	var p targetPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(id)).Msg("bad call_accepted payload")
		return
	}
	room.AcceptCall(id, p.TargetID)
}

func (ctl *Controller) handleCallEnd(room *core.Room, id domain.UserID, data []byte) {
	var p targetPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(id)).Msg("bad hangup payload")
		return
	}
	room.EndCall(id, p.TargetID)
}
