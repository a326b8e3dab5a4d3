package core

import (
	"context"

	"github.com/dkeye/meetd/internal/domain"
)

// ContainerID names a visual container in the UI shell a widget instance
// can be bound to. The shell owns the containers; we only address them.
type ContainerID string

// Participant event kinds as the provider emits them.
const (
	EventParticipantJoined  = "participant-joined"
	EventParticipantUpdated = "participant-updated"
	EventParticipantLeft    = "participant-left"
	// EventError is the provider's forced-disconnect notification.
	EventError = "error"
)

// ParticipantEvent carries the provider's full participant snapshot, not a
// delta. Order of delivery is the order the provider emitted.
type ParticipantEvent struct {
	Kind         string
	Participants []domain.Participant
}

// EventListener receives participant events. Listeners run on the event
// delivery goroutine and must not block.
type EventListener func(ParticipantEvent)

// InstanceOptions configure a new widget instance.
type InstanceOptions struct {
	URL         domain.RoomURL
	IFrameStyle map[string]string
}

// WidgetInstance is the opaque provider object owning the live connection.
// Exclusively owned by the session handle; never aliased.
type WidgetInstance interface {
	// Join negotiates entry into the room. Blocking; settles with nil on
	// success or an error from the provider. Ctx cancellation abandons the
	// attempt on our side only.
	Join(ctx context.Context, url domain.RoomURL, userName string) error
	// Leave requests a graceful exit. Must resolve before Destroy.
	Leave(ctx context.Context) error
	// Destroy releases all resources. Safe to call once after Leave.
	Destroy()
	// SetContainer re-parents the instance to another container without
	// dropping the connection.
	SetContainer(id ContainerID) error
	// On registers a listener for one event kind and returns its
	// unsubscribe func.
	On(kind string, l EventListener) (unsubscribe func())
	// Participants returns the last snapshot the provider delivered.
	Participants() []domain.Participant

	// Host-only moderation pass-through. The provider rejects these for
	// non-hosts; we do not re-check here.
	RemoveParticipant(id domain.ParticipantID) error
	UpdateParticipant(id domain.ParticipantID, setAudio bool) error
}

// WidgetProvider creates widget instances. One implementation drives the
// real embedded widget over the bridge; tests substitute a double.
type WidgetProvider interface {
	CreateInstance(container ContainerID, opts InstanceOptions) (WidgetInstance, error)
}
