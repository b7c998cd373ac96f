package core

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/nstepura/Ring/internal/domain"
)

// Envelope is the wire shape of every protocol message, both
// directions: {"type": ..., "data": {...}}. Data is omitted for bare
// notices such as call_ended.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound message types.
const (
	TypeCallUser     = "call_user"
	TypeCallAccepted = "call_accepted"
	TypeCallDeclined = "call_declined"
	TypeHangup       = "hangup"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeCandidate    = "candidate"
)

// Outbound message types.
const (
	TypeIdentity     = "identity"
	TypeUserList     = "user_list"
	TypeIncomingCall = "incoming_call"
	TypeCallMissed   = "call_missed"
	TypeCallEnded    = "call_ended"
	TypeRoomExpired  = "room_expired"
)

// ParticipantDTO is the user_list entry: identity plus presence.
type ParticipantDTO struct {
	domain.User
	Status domain.Status `json:"status"`
}

func encode(msgType string, data any) Frame {
	env := Envelope{Type: msgType}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			log.Error().Err(err).Str("module", "core").Str("type", msgType).Msg("marshal payload")
			return nil
		}
		env.Data = b
	}
	b, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "core").Str("type", msgType).Msg("marshal envelope")
		return nil
	}
	return b
}

// Message builds an envelope frame for an arbitrary payload. Used by
// the transport for forwarded negotiation messages.
func Message(msgType string, data any) Frame { return encode(msgType, data) }

func IdentityMessage(id domain.UserID) Frame {
	return encode(TypeIdentity, struct {
		ID domain.UserID `json:"id"`
	}{id})
}

func UserListMessage(participants []ParticipantDTO) Frame {
	return encode(TypeUserList, participants)
}

func IncomingCallMessage(from domain.UserID, fromUser ParticipantDTO, callType string) Frame {
	return encode(TypeIncomingCall, struct {
		From     domain.UserID  `json:"from"`
		FromUser ParticipantDTO `json:"from_user"`
		CallType string         `json:"call_type"`
	}{from, fromUser, callType})
}

func CallAcceptedMessage(from domain.UserID) Frame {
	return encode(TypeCallAccepted, struct {
		From domain.UserID `json:"from"`
	}{from})
}

func CallMissedMessage() Frame { return encode(TypeCallMissed, nil) }

func CallEndedMessage() Frame { return encode(TypeCallEnded, nil) }

func RoomExpiredMessage() Frame { return encode(TypeRoomExpired, nil) }
