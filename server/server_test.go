package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flokli/display-profiled/config"
	"github.com/flokli/display-profiled/ipc"
	"github.com/flokli/display-profiled/outputs"
)

const testConfig = `
[profile.laptop]
exec = ["echo laptop"]

[[profile.laptop.settings]]
output = "eDP-1"
on = true

[profile.docked]
exec = ["echo docked"]

[[profile.docked.settings]]
output = "eDP-1"
on = false

[[profile.docked.settings]]
output = "HDMI-*"
on = true
`

const extraProfile = `
[profile.projector]
exec = ["echo projector"]

[[profile.projector.settings]]
output = "DP-*"
on = true
`

// recordingExecutor is safe for use from the event loop and the test.
type recordingExecutor struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recordingExecutor) Execute(commands []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, commands)
}

func (r *recordingExecutor) Batches() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

// fakeSource reports ready and hands its deliver function to the test.
type fakeSource struct {
	deliver   chan func(outputs.Notification)
	refreshed atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{deliver: make(chan func(outputs.Notification), 1)}
}

func (f *fakeSource) Run(ctx context.Context, deliver func(outputs.Notification), ready func()) error {
	ready()
	f.deliver <- deliver
	<-ctx.Done()
	return nil
}

// failingSource cannot connect.
type failingSource struct{}

func (failingSource) Run(context.Context, func(outputs.Notification), func()) error {
	return errors.New("no compositor")
}

func (failingSource) Refresh() {}

// recordingNotifier collects sd_notify states.
type recordingNotifier struct {
	mu     sync.Mutex
	states []string
}

func (n *recordingNotifier) notify(state string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
}

func (n *recordingNotifier) States() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.states...)
}

func (f *fakeSource) Refresh() {
	f.refreshed.Add(1)
}

type recordingPublisher struct {
	statuses []Status
}

func (p *recordingPublisher) PublishStatus(s Status) {
	p.statuses = append(p.statuses, s)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestServer(t *testing.T) (*Server, *recordingExecutor, *fakeSource) {
	t.Helper()
	cfg, err := config.Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	exec := &recordingExecutor{}
	source := newFakeSource()
	return New(cfg, source, exec), exec, source
}

func outputEvents(id uint32, name string) []outputs.Notification {
	return []outputs.Notification{
		{Kind: outputs.Announced, ID: id},
		{Kind: outputs.NameReceived, ID: id, Value: name},
		{Kind: outputs.DescriptionReceived, ID: id, Value: "Vendor Model " + name},
		{Kind: outputs.Done, ID: id},
	}
}

// feed applies notifications the same way the event loop does.
func feed(s *Server, notifications ...outputs.Notification) {
	for _, n := range notifications {
		if s.assembler.Apply(n) {
			s.Evaluate(false)
		}
	}
}

func TestStatusAfterActivation(t *testing.T) {
	s, exec, _ := newTestServer(t)
	feed(s, outputEvents(1, "eDP-1")...)

	require.Len(t, exec.Batches(), 1)
	assert.Equal(t, "echo laptop", exec.Batches()[0][1])

	msg, err := s.HandleCommand(ipc.Command{Kind: ipc.Status})
	require.NoError(t, err)

	var status Status
	require.NoError(t, json.Unmarshal([]byte(msg), &status))
	assert.Equal(t, "laptop", status.ActiveProfile)
	assert.Equal(t, []string{"eDP-1 (Vendor Model eDP-1)"}, status.ConnectedOutputs)
	assert.Equal(t, []string{"laptop", "docked"}, status.Profiles)
	assert.Zero(t, status.PendingOutputs)
}

func TestStatusNoActiveProfile(t *testing.T) {
	s, _, _ := newTestServer(t)
	feed(s, outputs.Notification{Kind: outputs.Announced, ID: 7})

	status := s.Status()
	assert.Equal(t, "None", status.ActiveProfile)
	assert.Empty(t, status.ConnectedOutputs)
	assert.Equal(t, 1, status.PendingOutputs)
}

func TestDockingSwitchesProfile(t *testing.T) {
	s, exec, _ := newTestServer(t)
	feed(s, outputEvents(1, "eDP-1")...)
	feed(s, outputEvents(2, "HDMI-1")...)

	active, _ := s.activator.Active()
	assert.Equal(t, "docked", active)
	require.Len(t, exec.Batches(), 2)

	// undocking goes back to the laptop profile
	feed(s, outputs.Notification{Kind: outputs.Removed, ID: 2})
	active, _ = s.activator.Active()
	assert.Equal(t, "laptop", active)
	assert.Len(t, exec.Batches(), 3)
}

func TestRepeatedDoneDoesNotReapply(t *testing.T) {
	s, exec, _ := newTestServer(t)
	feed(s, outputEvents(1, "eDP-1")...)
	feed(s, outputs.Notification{Kind: outputs.Done, ID: 1})

	assert.Len(t, exec.Batches(), 1)
}

func TestSwitchUnknownProfile(t *testing.T) {
	s, exec, _ := newTestServer(t)
	feed(s, outputEvents(1, "eDP-1")...)

	_, err := s.HandleCommand(ipc.Command{Kind: ipc.Switch, Profile: "nonexistent"})
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.ErrorContains(t, err, "nonexistent")

	active, ok := s.activator.Active()
	assert.True(t, ok)
	assert.Equal(t, "laptop", active)
	assert.Len(t, exec.Batches(), 1)
}

func TestSwitchForcesProfile(t *testing.T) {
	s, exec, _ := newTestServer(t)
	feed(s, outputEvents(1, "eDP-1")...)

	msg, err := s.HandleCommand(ipc.Command{Kind: ipc.Switch, Profile: "laptop"})
	require.NoError(t, err)
	assert.Equal(t, "Profile switched successfully to laptop", msg)
	assert.Len(t, exec.Batches(), 2)

	_, err = s.HandleCommand(ipc.Command{Kind: ipc.Switch, Profile: "docked"})
	require.NoError(t, err)
	active, _ := s.activator.Active()
	assert.Equal(t, "docked", active)
}

func TestReload(t *testing.T) {
	s, exec, source := newTestServer(t)
	feed(s, outputEvents(1, "eDP-1")...)
	require.Len(t, exec.Batches(), 1)

	require.NoError(t, os.WriteFile(s.config.Path(), []byte(testConfig+extraProfile), 0o600))

	msg, err := s.HandleCommand(ipc.Command{Kind: ipc.Reload})
	require.NoError(t, err)
	assert.Equal(t, "Configuration reloaded successfully.", msg)
	assert.Len(t, s.Status().Profiles, 3)
	assert.EqualValues(t, 1, source.refreshed.Load())

	// the active profile is re-applied even though it did not change
	assert.Len(t, exec.Batches(), 2)
}

func TestReloadKeepsConfigOnError(t *testing.T) {
	s, _, _ := newTestServer(t)
	require.NoError(t, os.WriteFile(s.config.Path(), []byte("[profile.broken\n"), 0o600))

	_, err := s.HandleCommand(ipc.Command{Kind: ipc.Reload})
	assert.Error(t, err)
	assert.Equal(t, []string{"laptop", "docked"}, s.Status().Profiles)
}

func TestNoMatchClearsActiveProfile(t *testing.T) {
	s, _, _ := newTestServer(t)
	feed(s, outputEvents(1, "eDP-1")...)

	feed(s, outputEvents(2, "DP-3")...)
	_, ok := s.activator.Active()
	assert.False(t, ok)
	assert.Equal(t, "None", s.Status().ActiveProfile)
}

func TestPublisherReceivesStatus(t *testing.T) {
	s, _, _ := newTestServer(t)
	pub := &recordingPublisher{}
	s.SetPublisher(pub)

	feed(s, outputEvents(1, "eDP-1")...)
	require.Len(t, pub.statuses, 1)
	assert.Equal(t, "laptop", pub.statuses[0].ActiveProfile)
}

func TestRunServesSocket(t *testing.T) {
	s, exec, source := newTestServer(t)
	notifier := &recordingNotifier{}
	s.notify = notifier.notify

	listener, err := ipc.Listen(filepath.Join(t.TempDir(), "test.sock"))
	require.NoError(t, err)
	path := listener.Path()

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- s.Run(ctx, listener)
	}()

	var deliver func(outputs.Notification)
	select {
	case deliver = <-source.deliver:
	case <-time.After(5 * time.Second):
		t.Fatal("source was not started")
	}

	// deliver only returns once the loop applied the notification
	for _, n := range outputEvents(1, "eDP-1") {
		deliver(n)
	}
	for _, n := range outputEvents(2, "HDMI-1") {
		deliver(n)
	}
	assert.Len(t, exec.Batches(), 2)

	resp, err := ipc.Send(path, ipc.Command{Kind: ipc.Status})
	require.NoError(t, err)
	require.True(t, resp.OK, resp.Message)

	var status Status
	require.NoError(t, json.Unmarshal([]byte(resp.Message), &status))
	assert.Equal(t, "docked", status.ActiveProfile)
	assert.Len(t, status.ConnectedOutputs, 2)

	resp, err = ipc.Send(path, ipc.Command{Kind: ipc.Switch, Profile: "nonexistent"})
	require.NoError(t, err)
	assert.False(t, resp.OK)

	resp, err = ipc.Send(path, ipc.Command{Kind: ipc.Switch, Profile: "laptop"})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Len(t, exec.Batches(), 3)

	// malformed requests get an error response, the loop keeps running
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	_, err = conn.Write([]byte("nonsense"))
	require.NoError(t, err)
	require.NoError(t, conn.CloseWrite())
	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	conn.Close()
	var failure ipc.Response
	require.NoError(t, json.Unmarshal(data, &failure))
	assert.False(t, failure.OK)

	resp, err = ipc.Send(path, ipc.Command{Kind: ipc.Status})
	require.NoError(t, err)
	assert.True(t, resp.OK)

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("event loop did not stop")
	}

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	states := notifier.States()
	require.NotEmpty(t, states)
	assert.Equal(t, "READY=1", states[0])
	assert.Equal(t, "STOPPING=1", states[len(states)-1])
}

func TestRunSourceFailsBeforeReady(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	s := New(cfg, failingSource{}, &recordingExecutor{})
	notifier := &recordingNotifier{}
	s.notify = notifier.notify

	listener, err := ipc.Listen(filepath.Join(t.TempDir(), "test.sock"))
	require.NoError(t, err)

	err = s.Run(context.Background(), listener)
	assert.ErrorContains(t, err, "no compositor")
	assert.NotContains(t, notifier.States(), "READY=1")

	_, err = os.Stat(listener.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestStalledClientDoesNotBlockOthers(t *testing.T) {
	s, _, source := newTestServer(t)

	listener, err := ipc.Listen(filepath.Join(t.TempDir(), "test.sock"))
	require.NoError(t, err)
	path := listener.Path()

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- s.Run(ctx, listener)
	}()
	<-source.deliver

	// connects, but never finishes its request
	stalled, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	defer stalled.Close()
	_, err = stalled.Write([]byte(`"Sta`))
	require.NoError(t, err)

	replied := make(chan ipc.Response, 1)
	go func() {
		resp, err := ipc.Send(path, ipc.Command{Kind: ipc.Status})
		if err == nil {
			replied <- resp
		}
	}()

	select {
	case resp := <-replied:
		assert.True(t, resp.OK, resp.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("status request blocked behind a stalled client")
	}

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("event loop did not stop")
	}
}
