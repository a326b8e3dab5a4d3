package domain

import "errors"

const MaxDisplayNameLen = 36

var (
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrEmptyJoinCode      = errors.New("join code empty")
)

// Phase of the single per-process session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseJoining
	PhaseActive
	PhaseMinimized
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseJoining:
		return "joining"
	case PhaseActive:
		return "active"
	case PhaseMinimized:
		return "minimized"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// InSession reports whether a phase is one of the room-bound phases.
// Invariant: SessionState.RoomURL is set iff InSession is true.
func (p Phase) InSession() bool {
	return p == PhaseJoining || p == PhaseActive || p == PhaseMinimized
}

// SessionState is the tab-wide session snapshot. Exactly one exists per
// process; it is mutated only through the orchestrator.
type SessionState struct {
	RoomURL          RoomURL `json:"room_url,omitempty"`
	Phase            Phase   `json:"phase"`
	LocalDisplayName string  `json:"local_display_name"`
}

// ValidDisplayName mirrors the provider's own limits so a bad name fails
// before any network round-trip.
func ValidDisplayName(name string) error {
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	return nil
}
