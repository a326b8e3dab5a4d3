package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetd/internal/core"
	"github.com/dkeye/meetd/internal/domain"
)

var ErrNotAttached = errors.New("no widget instance attached")

// JoinError is a failed room entry. The instance is already torn down by
// the time the caller sees it; retry starts from Attach on a clean state.
type JoinError struct {
	RoomURL domain.RoomURL
	Err     error
}

func (e *JoinError) Error() string { return fmt.Sprintf("join %s: %v", e.RoomURL, e.Err) }
func (e *JoinError) Unwrap() error { return e.Err }

type HandleState int

const (
	StateUnattached HandleState = iota
	StateAttaching
	StateJoining
	StateActive
	StateLeaving
)

func (s HandleState) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateAttaching:
		return "attaching"
	case StateJoining:
		return "joining"
	case StateActive:
		return "active"
	case StateLeaving:
		return "leaving"
	default:
		return "unknown"
	}
}

// SessionHandle owns the single live widget instance. All lifecycle calls
// (Attach/Join/Leave/Destroy) are serialized on opMu: a call arriving while
// another is in flight blocks until the prior one settles, so the transient
// states are never observably re-entered and the underlying transport never
// sees concurrent lifecycle calls.
type SessionHandle struct {
	provider    core.WidgetProvider
	iframeStyle map[string]string

	opMu sync.Mutex

	mu        sync.RWMutex
	state     HandleState
	container core.ContainerID
	roomURL   domain.RoomURL
	instance  core.WidgetInstance
	gen       uint64 // bumped on every create; stale async teardowns check it
	unsubs    []func()

	lmu       sync.RWMutex
	listeners map[int]core.EventListener
	nextSub   int
}

func NewSessionHandle(provider core.WidgetProvider, iframeStyle map[string]string) *SessionHandle {
	return &SessionHandle{
		provider:    provider,
		iframeStyle: iframeStyle,
		listeners:   make(map[int]core.EventListener),
	}
}

func (h *SessionHandle) State() HandleState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Attach binds the widget instance to a visual container.
//   - no instance yet: a fresh one is created against container.
//   - same container, same room: no-op.
//   - different container, same room: the live instance is re-parented in
//     place; the connection is preserved.
//   - any room change: the old instance is destroyed and a fresh one
//     created (the transport cannot swap rooms in place).
func (h *SessionHandle) Attach(container core.ContainerID, url domain.RoomURL) error {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	h.mu.Lock()
	inst := h.instance
	sameContainer := h.container == container
	sameRoom := h.roomURL == url
	h.mu.Unlock()

	if inst != nil && sameContainer && sameRoom {
		return nil
	}
	if inst != nil && sameRoom {
		if err := inst.SetContainer(container); err != nil {
			return fmt.Errorf("reparent widget: %w", err)
		}
		h.mu.Lock()
		h.container = container
		h.mu.Unlock()
		log.Info().Str("module", "app.session").Str("container", string(container)).Msg("widget re-parented")
		return nil
	}
	if inst != nil {
		// Room changed under an existing instance: recreate from scratch.
		h.destroyLocked()
	}
	return h.createInstance(container, url)
}

func (h *SessionHandle) createInstance(container core.ContainerID, url domain.RoomURL) error {
	h.mu.Lock()
	h.state = StateAttaching
	h.mu.Unlock()

	inst, err := h.provider.CreateInstance(container, core.InstanceOptions{
		URL:         url,
		IFrameStyle: h.iframeStyle,
	})
	if err != nil {
		h.mu.Lock()
		h.state = StateUnattached
		h.mu.Unlock()
		return fmt.Errorf("create widget instance: %w", err)
	}

	h.mu.Lock()
	h.instance = inst
	h.container = container
	h.roomURL = url
	h.gen++
	h.mu.Unlock()
	log.Info().Str("module", "app.session").Str("container", string(container)).Str("room", string(url)).Msg("widget instance created")
	return nil
}

// Join enters the room. On failure the instance is destroyed before Join
// returns; a partial join is never left hanging. The handle becomes Active
// only after its event listeners are registered on the instance, so no
// snapshot emitted after Join returns can be missed.
func (h *SessionHandle) Join(ctx context.Context, url domain.RoomURL, displayName string) error {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	h.mu.Lock()
	inst := h.instance
	if inst == nil {
		h.mu.Unlock()
		return ErrNotAttached
	}
	h.state = StateJoining
	gen := h.gen
	h.mu.Unlock()

	if err := inst.Join(ctx, url, displayName); err != nil {
		h.destroyLocked()
		log.Warn().Err(err).Str("module", "app.session").Str("room", string(url)).Msg("join failed, widget torn down")
		return &JoinError{RoomURL: url, Err: err}
	}

	unsubs := []func(){
		inst.On(core.EventParticipantJoined, h.dispatch),
		inst.On(core.EventParticipantUpdated, h.dispatch),
		inst.On(core.EventParticipantLeft, h.dispatch),
		inst.On(core.EventError, func(core.ParticipantEvent) { go h.forceTeardown(gen) }),
	}

	h.mu.Lock()
	h.unsubs = unsubs
	h.roomURL = url
	h.state = StateActive
	h.mu.Unlock()
	log.Info().Str("module", "app.session").Str("room", string(url)).Msg("joined room")
	return nil
}

// Leave requests a graceful exit. A no-op without an instance: UI state
// should prevent that, but it must degrade gracefully when it happens.
func (h *SessionHandle) Leave(ctx context.Context) error {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	h.mu.Lock()
	inst := h.instance
	if inst == nil {
		h.mu.Unlock()
		log.Debug().Str("module", "app.session").Msg("leave with no instance, ignored")
		return nil
	}
	h.state = StateLeaving
	h.mu.Unlock()

	err := inst.Leave(ctx)

	h.mu.Lock()
	h.state = StateUnattached
	h.mu.Unlock()
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	log.Info().Str("module", "app.session").Msg("left room")
	return nil
}

// Destroy releases the instance. Leave must have resolved first; the
// strict ordering avoids use-after-teardown inside the provider transport.
func (h *SessionHandle) Destroy() {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	h.mu.RLock()
	state := h.state
	h.mu.RUnlock()
	if state == StateActive || state == StateJoining {
		log.Warn().Str("module", "app.session").Stringer("state", state).Msg("destroy before leave resolved")
	}
	h.destroyLocked()
}

// destroyLocked requires opMu to be held.
func (h *SessionHandle) destroyLocked() {
	h.mu.Lock()
	inst := h.instance
	unsubs := h.unsubs
	h.instance = nil
	h.unsubs = nil
	h.container = ""
	h.roomURL = ""
	h.state = StateUnattached
	h.mu.Unlock()

	if inst == nil {
		return
	}
	for _, u := range unsubs {
		u()
	}
	inst.Destroy()
	log.Info().Str("module", "app.session").Msg("widget instance destroyed")
}

// forceTeardown handles a provider-side disconnect event. The generation
// check drops it if the instance it belonged to is already gone.
func (h *SessionHandle) forceTeardown(gen uint64) {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	h.mu.RLock()
	stale := h.gen != gen || h.instance == nil
	h.mu.RUnlock()
	if stale {
		return
	}
	log.Warn().Str("module", "app.session").Msg("provider forced disconnect, tearing down")
	h.destroyLocked()
}

// Subscribe registers for participant events. The subscription survives
// re-parenting; events arrive in provider emission order.
func (h *SessionHandle) Subscribe(l core.EventListener) (unsubscribe func()) {
	h.lmu.Lock()
	id := h.nextSub
	h.nextSub++
	h.listeners[id] = l
	h.lmu.Unlock()
	return func() {
		h.lmu.Lock()
		delete(h.listeners, id)
		h.lmu.Unlock()
	}
}

func (h *SessionHandle) dispatch(ev core.ParticipantEvent) {
	h.lmu.RLock()
	defer h.lmu.RUnlock()
	for _, l := range h.listeners {
		l(ev)
	}
}

// RemoveParticipant is a host-only pass-through. Without an instance it is
// rejected silently, mirroring how the provider rejects a non-host's call.
func (h *SessionHandle) RemoveParticipant(id domain.ParticipantID) error {
	h.mu.RLock()
	inst := h.instance
	h.mu.RUnlock()
	if inst == nil {
		return nil
	}
	return inst.RemoveParticipant(id)
}

func (h *SessionHandle) SetParticipantAudio(id domain.ParticipantID, enabled bool) error {
	h.mu.RLock()
	inst := h.instance
	h.mu.RUnlock()
	if inst == nil {
		return nil
	}
	return inst.UpdateParticipant(id, enabled)
}
