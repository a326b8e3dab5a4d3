package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/meetd/internal/app"
	"github.com/dkeye/meetd/internal/core"
	"github.com/dkeye/meetd/internal/core/coretest"
	"github.com/dkeye/meetd/internal/domain"
)

// fakeControl is an in-memory core.ControlPlane.
type fakeControl struct {
	mu      sync.Mutex
	rooms   []domain.Room
	seq     int
	listErr error
	delErr  error
}

func (f *fakeControl) ListRooms(ctx context.Context) ([]domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Room, len(f.rooms))
	copy(out, f.rooms)
	return out, nil
}

func (f *fakeControl) CreateRoom(ctx context.Context, prefix string) (domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	name := fmt.Sprintf("%s-ab12c%d", prefix, f.seq)
	room := domain.Room{
		Name: domain.RoomName(name),
		URL:  domain.RoomURL("https://meet.example.com/" + name),
	}
	f.rooms = append(f.rooms, room)
	return room, nil
}

func (f *fakeControl) DeleteRoom(ctx context.Context, name domain.RoomName) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	for i, r := range f.rooms {
		if r.Name == name {
			f.rooms = append(f.rooms[:i], f.rooms[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func newOrchestrator(control *fakeControl, widgets *coretest.FakeProvider) *Orchestrator {
	return &Orchestrator{
		Control:     control,
		Handle:      app.NewSessionHandle(widgets, nil),
		Registry:    app.NewParticipantRegistry(),
		State:       app.NewSessionState("me"),
		RoomPrefix:  "meet",
		RoomBaseURL: "https://meet.example.com",
	}
}

func emitLocal(p *coretest.FakeProvider, host bool) {
	p.Current().Emit(core.EventParticipantJoined, []domain.Participant{
		{ID: "local", DisplayName: "me", IsLocal: true, IsHost: host, AudioEnabled: true},
		{ID: "guest", DisplayName: "alice", AudioEnabled: true},
	})
}

// The full happy path: create a room, join as host, minimize and restore
// without reconnecting, end with exactly one destroy.
func TestOrchestrator_MeetingLifecycle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	control := &fakeControl{}
	widgets := coretest.NewFakeProvider()
	o := newOrchestrator(control, widgets)

	req.Equal(domain.PhaseIdle, o.State.Phase())

	room, err := o.CreateRoom(ctx)
	req.NoError(err)
	req.Contains(string(room.URL), "meet-ab12c")

	req.Equal(domain.PhaseActive, o.State.Phase())
	req.Equal(room.URL, o.State.RoomURL())
	req.Equal(room.URL, o.MeetingLink())

	emitLocal(widgets, true)
	req.True(o.Registry.AmIHost())

	req.NoError(o.Minimize())
	req.Equal(domain.PhaseMinimized, o.State.Phase())
	req.NoError(o.Maximize())
	req.Equal(domain.PhaseActive, o.State.Phase())
	req.Equal(0, widgets.Destroys())
	req.Equal(1, widgets.Creates())

	o.EndMeeting(ctx)
	req.Equal(domain.PhaseIdle, o.State.Phase())
	req.Equal(domain.RoomURL(""), o.State.RoomURL())
	req.Equal(1, widgets.Destroys())
	req.Empty(o.Registry.CurrentParticipants())
	req.False(o.Registry.AmIHost())
	req.Equal([]string{"join", "leave", "destroy"}, widgets.Current().Calls())
}

func TestOrchestrator_JoinByCode(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	widgets := coretest.NewFakeProvider()
	o := newOrchestrator(&fakeControl{}, widgets)

	req.NoError(o.JoinByCode(ctx, " meet-ab12cd "))
	req.Equal(domain.RoomURL("https://meet.example.com/meet-ab12cd"), o.State.RoomURL())
	req.Equal(domain.PhaseActive, o.State.Phase())

	// A guest is not host until a snapshot says so.
	emitLocal(widgets, false)
	req.False(o.Registry.AmIHost())
}

func TestOrchestrator_JoinByCode_FullLink(t *testing.T) {
	req := require.New(t)
	widgets := coretest.NewFakeProvider()
	o := newOrchestrator(&fakeControl{}, widgets)

	req.NoError(o.JoinByCode(context.Background(), "https://meet.example.com/meet-zz99"))
	req.Equal(domain.RoomURL("https://meet.example.com/meet-zz99"), o.State.RoomURL())
}

func TestOrchestrator_JoinByCode_Empty(t *testing.T) {
	o := newOrchestrator(&fakeControl{}, coretest.NewFakeProvider())
	require.ErrorIs(t, o.JoinByCode(context.Background(), "  "), domain.ErrEmptyJoinCode)
	require.Equal(t, domain.PhaseIdle, o.State.Phase())
}

func TestOrchestrator_JoinByCode_NoBaseURL(t *testing.T) {
	req := require.New(t)
	widgets := coretest.NewFakeProvider()
	o := newOrchestrator(&fakeControl{}, widgets)
	o.RoomBaseURL = ""

	req.ErrorIs(o.JoinByCode(context.Background(), "meet-ab12cd"), ErrRoomBaseURLUnset)
	req.Equal(domain.PhaseIdle, o.State.Phase())
	req.Equal(0, widgets.Creates())

	// Full links do not need the base URL.
	req.NoError(o.JoinByCode(context.Background(), "https://meet.example.com/meet-ab12cd"))
	req.Equal(domain.PhaseActive, o.State.Phase())
}

func TestOrchestrator_JoinFailureReturnsToIdle(t *testing.T) {
	req := require.New(t)
	widgets := coretest.NewFakeProvider()
	widgets.JoinErr = errors.New("expired room code")
	o := newOrchestrator(&fakeControl{}, widgets)

	err := o.JoinByCode(context.Background(), "meet-gone")
	var je *app.JoinError
	req.ErrorAs(err, &je)

	req.Equal(domain.PhaseIdle, o.State.Phase())
	req.Equal(domain.RoomURL(""), o.State.RoomURL())
	req.Equal(1, widgets.Destroys())
	req.Equal(0, widgets.Live())
}

func TestOrchestrator_StartReplacesRunningMeeting(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	widgets := coretest.NewFakeProvider()
	o := newOrchestrator(&fakeControl{}, widgets)

	req.NoError(o.JoinByCode(ctx, "meet-one"))
	first := widgets.Current()
	req.NoError(o.JoinByCode(ctx, "meet-two"))

	req.Equal(2, widgets.Creates())
	req.Equal(1, widgets.Destroys())
	req.Equal([]string{"join", "leave", "destroy"}, first.Calls())
	req.Equal(domain.RoomURL("https://meet.example.com/meet-two"), o.State.RoomURL())
}

func TestOrchestrator_DeleteRoomConfirmationGate(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	control := &fakeControl{}
	o := newOrchestrator(control, coretest.NewFakeProvider())

	room, err := control.CreateRoom(ctx, "meet")
	req.NoError(err)
	req.NoError(o.RefreshRooms(ctx))

	req.ErrorIs(o.DeleteRoom(ctx, room.Name, false), ErrConfirmationRequired)
	rooms, _ := o.Rooms()
	req.Len(rooms, 1)

	req.NoError(o.DeleteRoom(ctx, room.Name, true))
	rooms, rerr := o.Rooms()
	req.NoError(rerr)
	req.Empty(rooms)
}

func TestOrchestrator_CatalogErrorSticky(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	control := &fakeControl{}
	o := newOrchestrator(control, coretest.NewFakeProvider())

	_, err := control.CreateRoom(ctx, "meet")
	req.NoError(err)
	req.NoError(o.RefreshRooms(ctx))

	control.mu.Lock()
	control.listErr = errors.New("control plane down")
	control.mu.Unlock()

	req.Error(o.RefreshRooms(ctx))

	// Last good list is kept, error stays until dismissed or a refresh
	// succeeds.
	rooms, rerr := o.Rooms()
	req.Len(rooms, 1)
	req.Error(rerr)

	o.ClearCatalogError()
	_, rerr = o.Rooms()
	req.NoError(rerr)

	control.mu.Lock()
	control.listErr = nil
	control.mu.Unlock()
	req.NoError(o.RefreshRooms(ctx))
	_, rerr = o.Rooms()
	req.NoError(rerr)
}

func TestOrchestrator_ModerationGatedOnHost(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	widgets := coretest.NewFakeProvider()
	o := newOrchestrator(&fakeControl{}, widgets)

	req.NoError(o.JoinByCode(ctx, "meet-ab12cd"))
	inst := widgets.Current()

	// Not host: both actions are silent no-ops.
	emitLocal(widgets, false)
	req.NoError(o.MuteParticipant("guest"))
	req.NoError(o.RemoveParticipant("guest"))
	req.Empty(inst.AudioUpdates())
	req.Empty(inst.Removed())

	// Host: actions pass through to the widget.
	emitLocal(widgets, true)
	req.NoError(o.MuteParticipant("guest"))
	req.NoError(o.RemoveParticipant("guest"))
	req.Equal([]coretest.AudioUpdate{{ID: "guest", Enabled: false}}, inst.AudioUpdates())
	req.Equal([]domain.ParticipantID{"guest"}, inst.Removed())
}

func TestOrchestrator_MinimizeOutsideActiveIsNoop(t *testing.T) {
	req := require.New(t)
	o := newOrchestrator(&fakeControl{}, coretest.NewFakeProvider())

	req.NoError(o.Minimize())
	req.Equal(domain.PhaseIdle, o.State.Phase())
	req.NoError(o.Maximize())
	req.Equal(domain.PhaseIdle, o.State.Phase())
}

func TestOrchestrator_EndMeetingWhenIdleIsNoop(t *testing.T) {
	widgets := coretest.NewFakeProvider()
	o := newOrchestrator(&fakeControl{}, widgets)
	o.EndMeeting(context.Background())
	require.Equal(t, domain.PhaseIdle, o.State.Phase())
	require.Equal(t, 0, widgets.Destroys())
}

func waitDone(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// Ending a meeting while the start's join is still in flight must wait for
// the join to settle and then tear everything down, ending at Idle with
// exactly one destroy.
func TestOrchestrator_EndMeetingDuringJoinInFlight(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	widgets := coretest.NewFakeProvider()
	widgets.JoinStarted = make(chan struct{}, 1)
	widgets.JoinRelease = make(chan struct{})
	o := newOrchestrator(&fakeControl{}, widgets)

	startErr := make(chan error, 1)
	go func() { startErr <- o.JoinByCode(ctx, "meet-ab12cd") }()
	<-widgets.JoinStarted

	ended := make(chan struct{})
	go func() {
		o.EndMeeting(ctx)
		close(ended)
	}()

	// The teardown must not run against the half-joined instance.
	select {
	case <-ended:
		t.Fatal("EndMeeting finished while the join was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(widgets.JoinRelease)
	req.NoError(<-startErr)
	waitDone(t, ended, "EndMeeting")

	req.Equal(domain.PhaseIdle, o.State.Phase())
	req.Equal(domain.RoomURL(""), o.State.RoomURL())
	req.Equal(app.StateUnattached, o.Handle.State())
	req.Equal(1, widgets.Destroys())
	req.Equal(0, widgets.Live())
	req.Equal([]string{"join", "leave", "destroy"}, widgets.Current().Calls())
}

// A minimize racing a teardown must not resurrect the widget: after both
// settle the session is Idle, the room URL is gone and no instance is live.
func TestOrchestrator_MinimizeDuringTeardown(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	widgets := coretest.NewFakeProvider()
	widgets.LeaveStarted = make(chan struct{}, 1)
	widgets.LeaveRelease = make(chan struct{})
	o := newOrchestrator(&fakeControl{}, widgets)

	req.NoError(o.JoinByCode(ctx, "meet-ab12cd"))

	ended := make(chan struct{})
	go func() {
		o.EndMeeting(ctx)
		close(ended)
	}()
	<-widgets.LeaveStarted

	minimized := make(chan struct{})
	go func() {
		_ = o.Minimize()
		close(minimized)
	}()

	select {
	case <-minimized:
		t.Fatal("Minimize completed mid-teardown")
	case <-time.After(50 * time.Millisecond):
	}

	close(widgets.LeaveRelease)
	waitDone(t, ended, "EndMeeting")
	waitDone(t, minimized, "Minimize")

	req.Equal(domain.PhaseIdle, o.State.Phase())
	req.Equal(domain.RoomURL(""), o.State.RoomURL())
	req.Equal(app.StateUnattached, o.Handle.State())
	req.Equal(1, widgets.Creates())
	req.Equal(1, widgets.Destroys())
	req.Equal(0, widgets.Live())
}

func TestOrchestrator_SnapshotAgreesWithState(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	widgets := coretest.NewFakeProvider()
	o := newOrchestrator(&fakeControl{}, widgets)

	snap := o.Snapshot()
	req.Equal(domain.PhaseIdle, snap.State.Phase)
	req.Empty(snap.Participants)
	req.False(snap.IsHost)

	req.NoError(o.JoinByCode(ctx, "meet-ab12cd"))
	emitLocal(widgets, true)

	snap = o.Snapshot()
	req.Equal(domain.PhaseActive, snap.State.Phase)
	req.Len(snap.Participants, 2)
	req.True(snap.IsHost)
}
