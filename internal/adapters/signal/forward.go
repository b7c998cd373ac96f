package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/nstepura/Ring/internal/core"
	"github.com/nstepura/Ring/internal/domain"
)

// Negotiation messages are routed, never interpreted: the relay only
// lifts target_id out and stamps the sender id in.

type sdpPayload struct {
	TargetID domain.UserID `json:"target_id,omitempty"`
	From     domain.UserID `json:"from,omitempty"`
	SDP      string        `json:"sdp"`
}

type candidatePayload struct {
	TargetID      domain.UserID `json:"target_id,omitempty"`
	From          domain.UserID `json:"from,omitempty"`
	Candidate     string        `json:"candidate"`
	SDPMid        *string       `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16       `json:"sdpMLineIndex,omitempty"`
}

func (ctl *Controller) forwardSDP(room *core.Room, id domain.UserID, msgType string, data []byte) {
	var p sdpPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", msgType).Msg("bad sdp payload")
		return
	}
	target := p.TargetID
	p.TargetID = ""
	p.From = id
	room.SendTo(target, core.Message(msgType, p))
}

func (ctl *Controller) forwardCandidate(room *core.Room, id domain.UserID, data []byte) {
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}
	target := p.TargetID
	p.TargetID = ""
	p.From = id
	room.SendTo(target, core.Message(core.TypeCandidate, p))
}
