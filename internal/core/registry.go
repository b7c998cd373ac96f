package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nstepura/Ring/internal/domain"
)

// Registry owns every room in the process, keyed by room id. Rooms
// are created lazily; private rooms get a capacity of two and a
// fixed-lifetime expiry armed exactly once at provisioning time.
type Registry struct {
	callTimeout time.Duration

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRegistry(callTimeout time.Duration) *Registry {
	return &Registry{
		callTimeout: callTimeout,
		rooms:       make(map[domain.RoomID]*Room),
	}
}

// GetOrCreate returns the room for id, creating it on first
// reference. Visibility only matters at creation time.
func (reg *Registry) GetOrCreate(id domain.RoomID, visibility domain.Visibility) *Room {
	reg.mu.RLock()
	room, ok := reg.rooms[id]
	reg.mu.RUnlock()
	if ok {
		return room
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok = reg.rooms[id]; ok {
		return room
	}
	meta := domain.NewPublicRoom(id)
	if visibility == domain.VisibilityPrivate {
		meta = domain.NewPrivateRoom(id)
	}
	room = NewRoom(meta, reg.callTimeout)
	reg.rooms[id] = room
	log.Info().Str("module", "core.registry").Str("room", string(id)).Str("visibility", string(visibility)).Msg("created room")
	return room
}

// Get looks a room up without creating it.
func (reg *Registry) Get(id domain.RoomID) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[id]
	return room, ok
}

// Remove drops a room from the registry.
func (reg *Registry) Remove(id domain.RoomID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, id)
}

// ScheduleExpiry arms a one-shot task that tears the room down after
// ttl, whatever happened to it in between: members get room_expired,
// connections are force-closed and the id becomes unreachable. The
// timer is never cancelled early; an invite link has a fixed
// lifetime regardless of usage, and an already-empty room simply
// expires without anyone to notify.
func (reg *Registry) ScheduleExpiry(id domain.RoomID, ttl time.Duration) {
	log.Info().Str("module", "core.registry").Str("room", string(id)).Dur("ttl", ttl).Msg("scheduled room expiry")
	time.AfterFunc(ttl, func() {
		reg.mu.Lock()
		room, ok := reg.rooms[id]
		delete(reg.rooms, id)
		reg.mu.Unlock()
		if !ok {
			return
		}
		room.Expire()
		log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("expired room removed")
	})
}
