package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetd/internal/domain"
)

// SessionState is the process-wide session state holder. One instance is
// constructed in main and injected into whatever needs it; any surface may
// read it, but only the orchestrator mutates it.
type SessionState struct {
	mu    sync.RWMutex
	state domain.SessionState
}

func NewSessionState(displayName string) *SessionState {
	return &SessionState{
		state: domain.SessionState{
			Phase:            domain.PhaseIdle,
			LocalDisplayName: displayName,
		},
	}
}

func (s *SessionState) Snapshot() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *SessionState) Phase() domain.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Phase
}

func (s *SessionState) RoomURL() domain.RoomURL {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RoomURL
}

func (s *SessionState) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LocalDisplayName
}

func (s *SessionState) SetDisplayName(name string) error {
	if err := domain.ValidDisplayName(name); err != nil {
		return err
	}
	s.mu.Lock()
	s.state.LocalDisplayName = name
	s.mu.Unlock()
	return nil
}

// set enforces the invariant that RoomURL is present exactly in the
// room-bound phases.
func (s *SessionState) set(phase domain.Phase, url domain.RoomURL) {
	s.mu.Lock()
	s.state.Phase = phase
	if phase.InSession() {
		s.state.RoomURL = url
	} else {
		s.state.RoomURL = ""
	}
	s.mu.Unlock()
	log.Info().Str("module", "app.state").Stringer("phase", phase).Str("room", string(url)).Msg("phase transition")
}

func (s *SessionState) ToJoining(url domain.RoomURL) { s.set(domain.PhaseJoining, url) }

func (s *SessionState) ToActive() { s.set(domain.PhaseActive, s.RoomURL()) }

func (s *SessionState) ToMinimized() { s.set(domain.PhaseMinimized, s.RoomURL()) }

func (s *SessionState) ToEnded() { s.set(domain.PhaseEnded, "") }

func (s *SessionState) ToIdle() { s.set(domain.PhaseIdle, "") }
