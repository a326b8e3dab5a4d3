// Package orch composes the control-plane client, the session handle and
// the participant registry into the two user-facing flows: the global
// minimizable session and the full-page meeting screen.
package orch

import (
	"sync"

	"github.com/dkeye/meetd/internal/app"
	"github.com/dkeye/meetd/internal/core"
	"github.com/dkeye/meetd/internal/domain"
)

// Container identifiers of the UI shell. The full-page view and the
// minimized corner view are the only two places a widget can live.
const (
	ContainerFullPage  core.ContainerID = "meeting-page"
	ContainerMinimized core.ContainerID = "global-mini"
)

type Orchestrator struct {
	Control  core.ControlPlane
	Handle   *app.SessionHandle
	Registry *app.ParticipantRegistry
	State    *app.SessionState

	// RoomPrefix seeds created room names; RoomBaseURL turns a user-typed
	// code into a full room address.
	RoomPrefix  string
	RoomBaseURL string

	// sessionMu serializes the session operations (start/end/minimize/
	// maximize) end to end. Phase checks are only valid under it: without
	// the lock a Minimize could pass its Active check, then run its Attach
	// after a concurrent EndMeeting destroyed the instance, leaving a
	// fresh never-joined widget behind a Minimized phase with no RoomURL.
	sessionMu sync.Mutex

	mu         sync.RWMutex
	rooms      []domain.Room
	catalogErr error
	unsub      func()
}

// SessionSnapshot is the combined read the UI shell renders from.
type SessionSnapshot struct {
	State        domain.SessionState  `json:"state"`
	Participants []domain.Participant `json:"participants"`
	IsHost       bool                 `json:"is_host"`
}

func (o *Orchestrator) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		State:        o.State.Snapshot(),
		Participants: o.Registry.CurrentParticipants(),
		IsHost:       o.Registry.AmIHost(),
	}
}

// MeetingLink is the copy-link payload of the in-meeting control bar.
// Empty when no session is running.
func (o *Orchestrator) MeetingLink() domain.RoomURL {
	return o.State.RoomURL()
}
