package core

import (
	"context"

	"github.com/dkeye/meetd/internal/domain"
)

// ControlPlane is the room CRUD surface of the remote provider. Every call
// is a plain request/response; retries are the caller's policy.
type ControlPlane interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	// CreateRoom creates a room named prefix plus a random suffix so a
	// second create can never overwrite an existing room.
	CreateRoom(ctx context.Context, namePrefix string) (domain.Room, error)
	// DeleteRoom is fire-and-confirm: re-list afterwards to observe the
	// authoritative catalog.
	DeleteRoom(ctx context.Context, name domain.RoomName) error
}
