// Package coretest provides an in-memory widget provider double for tests.
// It counts instance creates and destroys so the single-instance and
// teardown invariants can be asserted directly.
package coretest

import (
	"context"
	"sync"

	"github.com/dkeye/meetd/internal/core"
	"github.com/dkeye/meetd/internal/domain"
)

type AudioUpdate struct {
	ID      domain.ParticipantID
	Enabled bool
}

type FakeInstance struct {
	provider *FakeProvider

	mu        sync.Mutex
	container core.ContainerID
	url       domain.RoomURL
	joined    bool
	destroyed bool
	calls     []string
	reparents int
	removed   []domain.ParticipantID
	audio     []AudioUpdate
	snapshot  []domain.Participant
	listeners map[string]map[int]core.EventListener
	nextSub   int
}

var _ core.WidgetInstance = (*FakeInstance)(nil)

func (f *FakeInstance) Join(ctx context.Context, url domain.RoomURL, userName string) error {
	f.mu.Lock()
	f.calls = append(f.calls, "join")
	f.mu.Unlock()
	started, release := f.provider.joinGates()
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if err := f.provider.joinErr(); err != nil {
		return err
	}
	f.mu.Lock()
	f.joined = true
	f.url = url
	f.mu.Unlock()
	return nil
}

func (f *FakeInstance) Leave(ctx context.Context) error {
	f.mu.Lock()
	f.calls = append(f.calls, "leave")
	f.joined = false
	f.mu.Unlock()
	started, release := f.provider.leaveGates()
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return nil
}

func (f *FakeInstance) Destroy() {
	f.mu.Lock()
	f.calls = append(f.calls, "destroy")
	f.destroyed = true
	f.mu.Unlock()
	f.provider.instanceDestroyed()
}

func (f *FakeInstance) SetContainer(id core.ContainerID) error {
	f.mu.Lock()
	f.container = id
	f.reparents++
	f.mu.Unlock()
	return nil
}

func (f *FakeInstance) On(kind string, l core.EventListener) func() {
	f.mu.Lock()
	if f.listeners[kind] == nil {
		f.listeners[kind] = make(map[int]core.EventListener)
	}
	id := f.nextSub
	f.nextSub++
	f.listeners[kind][id] = l
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners[kind], id)
		f.mu.Unlock()
	}
}

func (f *FakeInstance) Participants() []domain.Participant {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Participant, len(f.snapshot))
	copy(out, f.snapshot)
	return out
}

func (f *FakeInstance) RemoveParticipant(id domain.ParticipantID) error {
	f.mu.Lock()
	f.removed = append(f.removed, id)
	f.mu.Unlock()
	return nil
}

func (f *FakeInstance) UpdateParticipant(id domain.ParticipantID, setAudio bool) error {
	f.mu.Lock()
	f.audio = append(f.audio, AudioUpdate{ID: id, Enabled: setAudio})
	f.mu.Unlock()
	return nil
}

// Emit delivers an event the way the provider would: full snapshot, in
// call order.
func (f *FakeInstance) Emit(kind string, participants []domain.Participant) {
	f.mu.Lock()
	f.snapshot = participants
	ls := make([]core.EventListener, 0, len(f.listeners[kind]))
	for _, l := range f.listeners[kind] {
		ls = append(ls, l)
	}
	f.mu.Unlock()
	ev := core.ParticipantEvent{Kind: kind, Participants: participants}
	for _, l := range ls {
		l(ev)
	}
}

func (f *FakeInstance) Container() core.ContainerID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.container
}

func (f *FakeInstance) Joined() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joined
}

func (f *FakeInstance) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeInstance) Reparents() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reparents
}

func (f *FakeInstance) Removed() []domain.ParticipantID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ParticipantID, len(f.removed))
	copy(out, f.removed)
	return out
}

func (f *FakeInstance) AudioUpdates() []AudioUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AudioUpdate, len(f.audio))
	copy(out, f.audio)
	return out
}

type FakeProvider struct {
	mu       sync.Mutex
	creates  int
	destroys int
	live     int
	maxLive  int
	current  *FakeInstance

	CreateErr error
	JoinErr   error

	// Gate channels for racing concurrent operations against an in-flight
	// call. Set before use; when non-nil, *Started receives one value as
	// the call begins and *Release is received from before it returns.
	JoinStarted  chan struct{}
	JoinRelease  chan struct{}
	LeaveStarted chan struct{}
	LeaveRelease chan struct{}
}

var _ core.WidgetProvider = (*FakeProvider)(nil)

func NewFakeProvider() *FakeProvider { return &FakeProvider{} }

func (p *FakeProvider) CreateInstance(container core.ContainerID, opts core.InstanceOptions) (core.WidgetInstance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	inst := &FakeInstance{
		provider:  p,
		container: container,
		url:       opts.URL,
		listeners: make(map[string]map[int]core.EventListener),
	}
	p.creates++
	p.live++
	if p.live > p.maxLive {
		p.maxLive = p.live
	}
	p.current = inst
	return inst, nil
}

func (p *FakeProvider) joinErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.JoinErr
}

func (p *FakeProvider) joinGates() (started, release chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.JoinStarted, p.JoinRelease
}

func (p *FakeProvider) leaveGates() (started, release chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.LeaveStarted, p.LeaveRelease
}

func (p *FakeProvider) instanceDestroyed() {
	p.mu.Lock()
	p.destroys++
	p.live--
	p.mu.Unlock()
}

func (p *FakeProvider) Creates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creates
}

func (p *FakeProvider) Destroys() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroys
}

func (p *FakeProvider) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *FakeProvider) MaxLive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxLive
}

func (p *FakeProvider) Current() *FakeInstance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
