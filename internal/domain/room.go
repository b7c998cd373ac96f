package domain

type RoomID string

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// PrivateRoomCapacity is the member limit of an invite-link room.
const PrivateRoomCapacity = 2

type Room struct {
	ID         RoomID
	Visibility Visibility
	// Capacity is the member limit; zero means unbounded.
	Capacity int
}

func NewPublicRoom(id RoomID) *Room {
	return &Room{ID: id, Visibility: VisibilityPublic}
}

func NewPrivateRoom(id RoomID) *Room {
	return &Room{ID: id, Visibility: VisibilityPrivate, Capacity: PrivateRoomCapacity}
}

func (r *Room) IsPrivate() bool { return r.Visibility == VisibilityPrivate }
