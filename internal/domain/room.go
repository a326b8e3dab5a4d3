package domain

import "time"

type (
	// RoomURL is the opaque address of a room on the provider's domain.
	RoomURL string
	// RoomName is the provider-side resource name (last path segment of the URL).
	RoomName string
)

// Room is a control-plane resource. Read-only once created; the provider
// does not support room mutation.
type Room struct {
	URL       RoomURL   `json:"url"`
	Name      RoomName  `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
