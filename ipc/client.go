package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

var ErrDaemonNotRunning = errors.New("daemon socket not found, is display-profiled running?")

// Send delivers cmd to the daemon listening at path and returns its
// response. A missing socket file is reported as ErrDaemonNotRunning
// without attempting to connect.
func Send(path string, cmd Command) (Response, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Response{}, fmt.Errorf("%w (%s)", ErrDaemonNotRunning, path)
		}
		return Response{}, err
	}

	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return Response{}, fmt.Errorf("unable to connect to daemon socket: %w", err)
	}
	defer conn.Close()

	request, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, err
	}
	if _, err := conn.Write(request); err != nil {
		return Response{}, fmt.Errorf("unable to send request: %w", err)
	}
	// shutting down the write half marks the end of the request
	if err := conn.CloseWrite(); err != nil {
		return Response{}, fmt.Errorf("unable to send request: %w", err)
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		return Response{}, fmt.Errorf("unable to read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("unable to parse response: %w", err)
	}
	return resp, nil
}
