package widget

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meetd/internal/core"
	"github.com/dkeye/meetd/internal/domain"
)

// Instance is the bridge-side view of the live widget on the host. It
// mirrors the provider's participant snapshot from the event stream so
// Participants() is a local read, same as the real widget object's.
type Instance struct {
	bridge *Bridge

	mu        sync.RWMutex
	snapshot  []domain.Participant
	listeners map[string]map[int]core.EventListener
	nextSub   int
}

var _ core.WidgetInstance = (*Instance)(nil)

func newInstance(b *Bridge) *Instance {
	return &Instance{
		bridge:    b,
		listeners: make(map[string]map[int]core.EventListener),
	}
}

func (i *Instance) Join(ctx context.Context, url domain.RoomURL, userName string) error {
	return i.bridge.request(ctx, command{
		Type:     cmdJoin,
		URL:      string(url),
		UserName: userName,
	})
}

func (i *Instance) Leave(ctx context.Context) error {
	return i.bridge.request(ctx, command{Type: cmdLeave})
}

// Destroy releases the widget on the host. Fire-and-forget: a host that is
// already gone has nothing left to destroy.
func (i *Instance) Destroy() {
	if err := i.bridge.post(command{Type: cmdDestroy}); err != nil {
		log.Debug().Err(err).Str("module", "adapters.widget").Msg("destroy not delivered")
	}
	i.bridge.dropInstance(i)
}

func (i *Instance) SetContainer(id core.ContainerID) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return i.bridge.request(ctx, command{Type: cmdSetContainer, Container: string(id)})
}

func (i *Instance) On(kind string, l core.EventListener) (unsubscribe func()) {
	i.mu.Lock()
	if i.listeners[kind] == nil {
		i.listeners[kind] = make(map[int]core.EventListener)
	}
	id := i.nextSub
	i.nextSub++
	i.listeners[kind][id] = l
	i.mu.Unlock()
	return func() {
		i.mu.Lock()
		delete(i.listeners[kind], id)
		i.mu.Unlock()
	}
}

func (i *Instance) Participants() []domain.Participant {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]domain.Participant, len(i.snapshot))
	copy(out, i.snapshot)
	return out
}

func (i *Instance) RemoveParticipant(id domain.ParticipantID) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return i.bridge.request(ctx, command{Type: cmdRemoveParticipant, Participant: string(id)})
}

func (i *Instance) UpdateParticipant(id domain.ParticipantID, setAudio bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return i.bridge.request(ctx, command{
		Type:        cmdUpdateParticipant,
		Participant: string(id),
		SetAudio:    &setAudio,
	})
}

// deliver runs on the bridge read pump; listeners must not block.
func (i *Instance) deliver(ev core.ParticipantEvent) {
	if isParticipantEvent(ev.Kind) {
		i.mu.Lock()
		i.snapshot = ev.Participants
		i.mu.Unlock()
	}

	i.mu.RLock()
	ls := make([]core.EventListener, 0, len(i.listeners[ev.Kind]))
	for _, l := range i.listeners[ev.Kind] {
		ls = append(ls, l)
	}
	i.mu.RUnlock()
	for _, l := range ls {
		l(ev)
	}
}
