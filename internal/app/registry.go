package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetd/internal/core"
	"github.com/dkeye/meetd/internal/domain"
)

// ParticipantRegistry holds the last participant snapshot the provider
// delivered and the host flag derived from it. Every event replaces the
// whole set; there is no incremental patching and no caching beyond the
// latest snapshot.
type ParticipantRegistry struct {
	mu           sync.RWMutex
	participants []domain.Participant
	isHost       bool
}

func NewParticipantRegistry() *ParticipantRegistry {
	return &ParticipantRegistry{}
}

// Apply replaces the current set with the event's snapshot and recomputes
// the host flag. Must be called in delivery order; last snapshot wins.
func (r *ParticipantRegistry) Apply(ev core.ParticipantEvent) {
	snapshot := make([]domain.Participant, len(ev.Participants))
	copy(snapshot, ev.Participants)

	// A snapshot without the local participant should not happen while
	// active, but resolves to host=false rather than an error.
	host := false
	for _, p := range snapshot {
		if p.IsLocal {
			host = p.IsHost
			break
		}
	}

	r.mu.Lock()
	r.participants = snapshot
	r.isHost = host
	r.mu.Unlock()
	log.Debug().Str("module", "app.registry").Str("event", ev.Kind).Int("count", len(snapshot)).Bool("host", host).Msg("snapshot applied")
}

// CurrentParticipants returns a copy of the last snapshot.
func (r *ParticipantRegistry) CurrentParticipants() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

// AmIHost reports whether the local participant holds host privileges in
// the last snapshot. Derived, never set directly.
func (r *ParticipantRegistry) AmIHost() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isHost
}

// Reset discards the set; called when the session ends.
func (r *ParticipantRegistry) Reset() {
	r.mu.Lock()
	r.participants = nil
	r.isHost = false
	r.mu.Unlock()
	log.Debug().Str("module", "app.registry").Msg("registry reset")
}
