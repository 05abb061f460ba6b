package ipc

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandWireFormat(t *testing.T) {
	cases := []struct {
		cmd  Command
		wire string
	}{
		{Command{Kind: Reload}, `"Reload"`},
		{Command{Kind: Status}, `"Status"`},
		{Command{Kind: Switch, Profile: "test-profile"}, `{"Switch":"test-profile"}`},
	}

	for _, c := range cases {
		data, err := json.Marshal(c.cmd)
		require.NoError(t, err)
		assert.Equal(t, c.wire, string(data))

		decoded, err := DecodeCommand([]byte(c.wire))
		require.NoError(t, err)
		assert.Equal(t, c.cmd, decoded)
	}
}

func TestDecodeCommandInvalid(t *testing.T) {
	for _, wire := range []string{``, `nonsense`, `"Explode"`, `{"Switch":42}`, `{"Reload":"x"}`, `{"Switch":"a","Status":""}`, `[]`} {
		_, err := DecodeCommand([]byte(wire))
		assert.ErrorIs(t, err, ErrInvalidRequest, wire)
	}
}

func TestResponseWireFormat(t *testing.T) {
	data, err := json.Marshal(Success("Profile switched"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Ok":"Profile switched"}`, string(data))

	data, err = json.Marshal(Failure(assert.AnError))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Err":"`+assert.AnError.Error()+`"}`, string(data))

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(`{"Err":"Profile 'x' not found."}`), &resp))
	assert.False(t, resp.OK)
	assert.EqualError(t, resp.Err(), "Profile 'x' not found.")

	assert.Error(t, json.Unmarshal([]byte(`{}`), &resp))
}

func TestSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1234")
	assert.Equal(t, "/run/user/1234/display-profiled/display-profiled.sock", SocketPath())

	t.Setenv("XDG_RUNTIME_DIR", "")
	assert.True(t, strings.HasSuffix(SocketPath(), "/display-profiled/display-profiled.sock"))
	assert.True(t, strings.HasPrefix(SocketPath(), "/run/user/"))
}

func TestListenerLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "test.sock")

	// a stale file from a previous run must not prevent binding
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	l, err := Listen(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSocket)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, l.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// closing twice is fine
	assert.NoError(t, l.Close())
}

func TestSendDaemonNotRunning(t *testing.T) {
	_, err := Send(filepath.Join(t.TempDir(), "missing.sock"), Command{Kind: Status})
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestSendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sock")
	l, err := Listen(path)
	require.NoError(t, err)
	defer l.Close()

	received := make(chan Command, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		cmd, err := DecodeCommand(data)
		if err != nil {
			return
		}
		received <- cmd
		out, _ := json.Marshal(Success("switched to " + cmd.Profile))
		conn.Write(out)
	}()

	resp, err := Send(path, Command{Kind: Switch, Profile: "docked"})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, "switched to docked", resp.Message)
	assert.Equal(t, Command{Kind: Switch, Profile: "docked"}, <-received)
}
