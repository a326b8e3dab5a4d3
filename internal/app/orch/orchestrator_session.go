package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetd/internal/app"
	"github.com/dkeye/meetd/internal/domain"
)

// StartMeeting drives the session from Idle through Joining into Active.
// A meeting already in progress is ended first; there is at most one
// session per process. On join failure the widget is fully torn down, the
// state returns to Idle and the error carries the user-facing cause.
func (o *Orchestrator) StartMeeting(ctx context.Context, url domain.RoomURL) error {
	o.sessionMu.Lock()
	defer o.sessionMu.Unlock()
	return o.startMeetingLocked(ctx, url)
}

func (o *Orchestrator) startMeetingLocked(ctx context.Context, url domain.RoomURL) error {
	if o.State.Phase() != domain.PhaseIdle {
		log.Info().Str("module", "orch").Msg("ending current meeting before starting a new one")
		o.endMeetingLocked(ctx)
	}

	o.State.ToJoining(url)

	if err := o.Handle.Attach(ContainerFullPage, url); err != nil {
		o.State.ToIdle()
		return err
	}

	// Registry subscription goes in before the join settles so the first
	// snapshot after Active cannot be missed.
	unsub := o.Handle.Subscribe(o.Registry.Apply)
	o.mu.Lock()
	o.unsub = unsub
	o.mu.Unlock()

	if err := o.Handle.Join(ctx, url, o.State.DisplayName()); err != nil {
		o.detachRegistry()
		o.Registry.Reset()
		o.State.ToIdle()
		return err
	}

	o.State.ToActive()
	return nil
}

// EndMeeting drives leave then destroy, in that strict order, and resets
// everything to Idle. Safe to call in any phase, including mid-join: a
// concurrent start holds the session lock until its join settles, so the
// teardown here always runs against a settled instance.
func (o *Orchestrator) EndMeeting(ctx context.Context) {
	o.sessionMu.Lock()
	defer o.sessionMu.Unlock()
	o.endMeetingLocked(ctx)
}

func (o *Orchestrator) endMeetingLocked(ctx context.Context) {
	if o.State.Phase() == domain.PhaseIdle && o.Handle.State() == app.StateUnattached {
		return
	}
	if err := o.Handle.Leave(ctx); err != nil {
		// The instance is still destroyed below; a failed graceful leave
		// must not leak it.
		log.Warn().Err(err).Str("module", "orch").Msg("graceful leave failed")
	}
	o.State.ToEnded()
	o.Handle.Destroy()
	o.detachRegistry()
	o.Registry.Reset()
	o.State.ToIdle()
}

func (o *Orchestrator) detachRegistry() {
	o.mu.Lock()
	unsub := o.unsub
	o.unsub = nil
	o.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Minimize moves the running widget into the corner container. The widget
// keeps its connection; only the container changes. The phase check is
// only decisive under the session lock, so it happens after acquiring it.
func (o *Orchestrator) Minimize() error {
	o.sessionMu.Lock()
	defer o.sessionMu.Unlock()
	if o.State.Phase() != domain.PhaseActive {
		return nil
	}
	if err := o.Handle.Attach(ContainerMinimized, o.State.RoomURL()); err != nil {
		return err
	}
	o.State.ToMinimized()
	return nil
}

// Maximize restores the widget to the full-page container.
func (o *Orchestrator) Maximize() error {
	o.sessionMu.Lock()
	defer o.sessionMu.Unlock()
	if o.State.Phase() != domain.PhaseMinimized {
		return nil
	}
	if err := o.Handle.Attach(ContainerFullPage, o.State.RoomURL()); err != nil {
		return err
	}
	o.State.ToActive()
	return nil
}

// MuteParticipant disables a participant's audio. Host-only: when the
// local participant is not host this is a no-op, gated here at the call
// site; the provider would reject it anyway.
func (o *Orchestrator) MuteParticipant(id domain.ParticipantID) error {
	return o.SetParticipantAudio(id, false)
}

// SetParticipantAudio toggles a participant's audio. Host-only, no-op for
// non-hosts.
func (o *Orchestrator) SetParticipantAudio(id domain.ParticipantID, enabled bool) error {
	if !o.Registry.AmIHost() {
		log.Debug().Str("module", "orch").Str("participant", string(id)).Msg("audio toggle ignored, not host")
		return nil
	}
	return o.Handle.SetParticipantAudio(id, enabled)
}

// RemoveParticipant ejects a participant from the meeting. Host-only,
// same gating as MuteParticipant.
func (o *Orchestrator) RemoveParticipant(id domain.ParticipantID) error {
	if !o.Registry.AmIHost() {
		log.Debug().Str("module", "orch").Str("participant", string(id)).Msg("remove ignored, not host")
		return nil
	}
	return o.Handle.RemoveParticipant(id)
}
