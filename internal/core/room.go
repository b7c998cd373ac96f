package core

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nstepura/Ring/internal/domain"
)

var (
	ErrNotInRoom      = errors.New("caller not in room")
	ErrPeerNotFound   = errors.New("target not in room")
	ErrCallInProgress = errors.New("call already in progress for pair")
	ErrPeerBusy       = errors.New("participant busy")
)

// Participant is one live connection inside a room.
type Participant struct {
	User   *domain.User
	Status domain.Status
	Conn   SignalConnection
}

type callState int

const (
	callRinging callState = iota
	callActive
)

// call is one in-flight attempt between an unordered pair. The timer
// is armed while ringing; gen guards against a fired timer acting on
// a call that was re-armed or resolved in the meantime.
type call struct {
	key    domain.CallKey
	caller domain.UserID
	callee domain.UserID
	state  callState
	timer  *time.Timer
	gen    uint64
}

func (c *call) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Room owns the participants and in-flight calls of one room id.
// Every operation takes the room mutex, so operations are serialized
// per room and rooms stay independent of each other.
type Room struct {
	meta        *domain.Room
	callTimeout time.Duration

	mu           sync.Mutex
	participants map[domain.UserID]*Participant
	calls        map[domain.CallKey]*call
	timerGen     uint64
}

func NewRoom(meta *domain.Room, callTimeout time.Duration) *Room {
	return &Room{
		meta:         meta,
		callTimeout:  callTimeout,
		participants: make(map[domain.UserID]*Participant),
		calls:        make(map[domain.CallKey]*call),
	}
}

func (r *Room) Meta() *domain.Room { return r.meta }

func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// Join admits a connection as a participant. Admission check and
// registration happen in one critical section. On a full room the
// connection is closed with a policy-violation code and no state is
// created. Private rooms additionally tell the joiner its
// server-assigned id, since it does not know it in advance.
func (r *Room) Join(conn SignalConnection, user *domain.User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.meta.Capacity > 0 && len(r.participants) >= r.meta.Capacity {
		log.Warn().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("user", string(user.ID)).Msg("room is full, rejecting")
		conn.Close(ClosePolicyViolation, "Room is full")
		return false
	}

	if r.meta.IsPrivate() {
		if err := conn.TrySend(IdentityMessage(user.ID)); err != nil {
			log.Warn().Err(err).Str("module", "core.room").Str("room", string(r.meta.ID)).Msg("identity notice not delivered")
		}
	}

	if prev, ok := r.participants[user.ID]; ok {
		// Same id reconnected; the old transport is dead weight.
		prev.Conn.Close(ClosePolicyViolation, "superseded by a new connection")
	}
	r.participants[user.ID] = &Participant{User: user, Status: domain.StatusAvailable, Conn: conn}
	log.Info().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("user", string(user.ID)).Str("name", user.FirstName).Msg("participant joined")
	r.broadcastLocked(UserListMessage(r.participantsLocked()))
	return true
}

// Leave removes a participant and resolves any call involving it: the
// peer gets call_ended and goes back to available. conn, when not
// nil, guards against a stale cleanup from a superseded connection.
func (r *Room) Leave(id domain.UserID, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return
	}
	if conn != nil && p.Conn != conn {
		return
	}
	r.resolveCallsLocked(id)
	delete(r.participants, id)
	log.Info().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("user", string(id)).Msg("participant left")
	r.broadcastLocked(UserListMessage(r.participantsLocked()))
}

func (r *Room) resolveCallsLocked(id domain.UserID) {
	for key, c := range r.calls {
		if !key.Involves(id) {
			continue
		}
		c.stopTimer()
		delete(r.calls, key)
		peer, _ := key.Other(id)
		log.Warn().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("user", string(id)).Str("peer", string(peer)).Msg("disconnect during call, terminating")
		r.sendLocked(peer, CallEndedMessage())
		r.setStatusLocked(peer, domain.StatusAvailable)
	}
}

// SetStatus updates presence and re-broadcasts the participant list.
// No-op when the id already left.
func (r *Room) SetStatus(id domain.UserID, status domain.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[id]; !ok {
		return
	}
	r.setStatusLocked(id, status)
	r.broadcastLocked(UserListMessage(r.participantsLocked()))
}

func (r *Room) setStatusLocked(id domain.UserID, status domain.Status) {
	if p, ok := r.participants[id]; ok {
		p.Status = status
	}
}

// PlaceCall starts a ringing call from caller to callee: both go
// busy, the callee gets incoming_call and the timeout timer is armed.
// A pair has at most one call at a time, and a busy participant
// cannot be pulled into a second one.
func (r *Room) PlaceCall(caller, callee domain.UserID, callType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	callerP, ok := r.participants[caller]
	if !ok {
		return ErrNotInRoom
	}
	calleeP, ok := r.participants[callee]
	if !ok {
		return ErrPeerNotFound
	}
	key := domain.NewCallKey(caller, callee)
	if _, exists := r.calls[key]; exists {
		return ErrCallInProgress
	}
	if callerP.Status == domain.StatusBusy || calleeP.Status == domain.StatusBusy {
		return ErrPeerBusy
	}

	callerP.Status = domain.StatusBusy
	calleeP.Status = domain.StatusBusy
	c := &call{key: key, caller: caller, callee: callee, state: callRinging}
	r.calls[key] = c
	r.armTimeoutLocked(c)
	r.sendLocked(callee, IncomingCallMessage(caller, ParticipantDTO{User: *callerP.User, Status: callerP.Status}, callType))
	log.Info().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("caller", string(caller)).Str("callee", string(callee)).Str("call_type", callType).Msg("call placed")
	r.broadcastLocked(UserListMessage(r.participantsLocked()))
	return nil
}

// AcceptCall transitions a ringing call to active: the timer is
// cancelled and the caller is told who accepted. A call already gone
// (timed out, cancelled) is a no-op; the statuses were reset by
// whichever event won.
func (r *Room) AcceptCall(from, target domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[domain.NewCallKey(from, target)]
	if !ok {
		return
	}
	c.stopTimer()
	c.state = callActive
	log.Info().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("from", string(from)).Str("target", string(target)).Msg("call accepted")
	r.sendLocked(target, CallAcceptedMessage(from))
}

// EndCall resolves a call on decline or hangup: the peer gets
// call_ended and both sides go back to available. No-op when the
// call is already gone.
func (r *Room) EndCall(from, target domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := domain.NewCallKey(from, target)
	c, ok := r.calls[key]
	if !ok {
		return
	}
	c.stopTimer()
	delete(r.calls, key)
	log.Info().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("from", string(from)).Str("target", string(target)).Msg("call ended")
	r.sendLocked(target, CallEndedMessage())
	r.setStatusLocked(from, domain.StatusAvailable)
	r.setStatusLocked(target, domain.StatusAvailable)
	r.broadcastLocked(UserListMessage(r.participantsLocked()))
}

// StartCallTimeout re-arms the ringing timer for an existing call.
// Any previously armed timer for the pair is cancelled first.
func (r *Room) StartCallTimeout(a, b domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.calls[domain.NewCallKey(a, b)]; ok {
		r.armTimeoutLocked(c)
	}
}

// CancelCallTimeout drops the timer and the call record for the pair.
// Idempotent: cancelling twice or after the timer fired is a no-op.
func (r *Room) CancelCallTimeout(a, b domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := domain.NewCallKey(a, b)
	if c, ok := r.calls[key]; ok {
		c.stopTimer()
		delete(r.calls, key)
	}
}

func (r *Room) armTimeoutLocked(c *call) {
	c.stopTimer()
	r.timerGen++
	gen := r.timerGen
	c.gen = gen
	key := c.key
	c.timer = time.AfterFunc(r.callTimeout, func() {
		r.onCallTimeout(key, gen)
	})
}

// onCallTimeout fires on an unanswered ring. The generation check
// closes the race with a concurrent accept/cancel: whichever event
// is processed first wins, the loser is a no-op.
func (r *Room) onCallTimeout(key domain.CallKey, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[key]
	if !ok || c.gen != gen || c.state != callRinging {
		return
	}
	delete(r.calls, key)
	log.Warn().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("caller", string(c.caller)).Str("callee", string(c.callee)).Msg("call timed out")
	r.sendLocked(c.caller, CallMissedMessage())
	r.sendLocked(c.callee, CallEndedMessage())
	r.setStatusLocked(c.caller, domain.StatusAvailable)
	r.setStatusLocked(c.callee, domain.StatusAvailable)
	r.broadcastLocked(UserListMessage(r.participantsLocked()))
}

// SendTo delivers a frame to one participant. An absent target is a
// silent drop; the relay is best effort.
func (r *Room) SendTo(id domain.UserID, f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendLocked(id, f)
}

// Broadcast delivers a frame to every participant.
func (r *Room) Broadcast(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(f)
}

// Participants returns a presence snapshot as sent in user_list.
func (r *Room) Participants() []ParticipantDTO {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participantsLocked()
}

// Expire force-closes the room: every member is told room_expired,
// every connection is closed with a normal code and all state is
// dropped. Safe on an already-empty room.
func (r *Room) Expire() {
	r.mu.Lock()
	defer r.mu.Unlock()

	log.Warn().Str("module", "core.room").Str("room", string(r.meta.ID)).Int("participants", len(r.participants)).Msg("room lifetime expired, terminating connections")
	r.broadcastLocked(RoomExpiredMessage())
	for id, p := range r.participants {
		p.Conn.Close(CloseNormal, "Room lifetime expired")
		delete(r.participants, id)
	}
	for key, c := range r.calls {
		c.stopTimer()
		delete(r.calls, key)
	}
}

func (r *Room) sendLocked(id domain.UserID, f Frame) {
	p, ok := r.participants[id]
	if !ok {
		log.Debug().Str("module", "core.room").Str("room", string(r.meta.ID)).Str("target", string(id)).Msg("target not connected, dropping")
		return
	}
	if err := p.Conn.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "core.room").Str("room", string(r.meta.ID)).Str("target", string(id)).Msg("could not send to participant")
	}
}

func (r *Room) broadcastLocked(f Frame) {
	for id, p := range r.participants {
		if err := p.Conn.TrySend(f); err != nil {
			log.Warn().Err(err).Str("module", "core.room").Str("room", string(r.meta.ID)).Str("target", string(id)).Msg("could not broadcast to participant")
		}
	}
}

func (r *Room) participantsLocked() []ParticipantDTO {
	out := make([]ParticipantDTO, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, ParticipantDTO{User: *p.User, Status: p.Status})
	}
	return out
}
