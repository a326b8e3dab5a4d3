package orch

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetd/internal/domain"
)

// ErrConfirmationRequired gates destructive catalog actions.
var ErrConfirmationRequired = errors.New("destructive action requires confirmation")

// ErrRoomBaseURLUnset is returned for a bare join code when no base URL is
// configured to resolve it against.
var ErrRoomBaseURLUnset = errors.New("room base URL not configured")

// RefreshRooms re-fetches the catalog. On failure the last good list is
// kept and the error is stored for the UI; nothing is retried here.
func (o *Orchestrator) RefreshRooms(ctx context.Context) error {
	rooms, err := o.Control.ListRooms(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.catalogErr = err
		log.Warn().Err(err).Str("module", "orch").Msg("room catalog refresh failed")
		return err
	}
	o.rooms = rooms
	o.catalogErr = nil
	log.Info().Str("module", "orch").Int("count", len(rooms)).Msg("room catalog refreshed")
	return nil
}

// Rooms returns the cached catalog together with the sticky error of the
// last failed refresh, if any.
func (o *Orchestrator) Rooms() ([]domain.Room, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]domain.Room, len(o.rooms))
	copy(out, o.rooms)
	return out, o.catalogErr
}

// ClearCatalogError dismisses the inline catalog error without retrying.
func (o *Orchestrator) ClearCatalogError() {
	o.mu.Lock()
	o.catalogErr = nil
	o.mu.Unlock()
}

// CreateRoom creates a room on the provider and immediately starts a
// meeting in it; the creator enters as host.
func (o *Orchestrator) CreateRoom(ctx context.Context) (domain.Room, error) {
	room, err := o.Control.CreateRoom(ctx, o.RoomPrefix)
	if err != nil {
		o.mu.Lock()
		o.catalogErr = err
		o.mu.Unlock()
		return domain.Room{}, err
	}
	// Catalog refresh failures here are already stored for the UI; the
	// created room is authoritative regardless.
	_ = o.RefreshRooms(ctx)

	if err := o.StartMeeting(ctx, room.URL); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

// JoinByCode builds a room address from a user-typed meeting code and
// starts a meeting as a regular participant.
func (o *Orchestrator) JoinByCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.ErrEmptyJoinCode
	}
	// Full links are accepted as-is; bare codes go under the room base URL.
	url := code
	if !strings.Contains(code, "://") {
		if o.RoomBaseURL == "" {
			return ErrRoomBaseURLUnset
		}
		url = strings.TrimSuffix(o.RoomBaseURL, "/") + "/" + code
	}
	return o.StartMeeting(ctx, domain.RoomURL(url))
}

// DeleteRoom removes a room from the provider after an explicit
// confirmation, then re-fetches the catalog to observe authoritative state.
func (o *Orchestrator) DeleteRoom(ctx context.Context, name domain.RoomName, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := o.Control.DeleteRoom(ctx, name); err != nil {
		o.mu.Lock()
		o.catalogErr = err
		o.mu.Unlock()
		return err
	}
	return o.RefreshRooms(ctx)
}
