package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// AppName names the runtime directory and the socket file.
const AppName = "display-profiled"

// SocketPath returns $XDG_RUNTIME_DIR/display-profiled/display-profiled.sock,
// or the same below /run/user/<uid> if XDG_RUNTIME_DIR is unset.
func SocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = fmt.Sprintf("/run/user/%d", unix.Getuid())
	}
	return filepath.Join(runtimeDir, AppName, AppName+".sock")
}

// Listener is the control socket. Binding it claims the socket file,
// Close releases it again.
type Listener struct {
	*net.UnixListener
	path string

	closeOnce sync.Once
	closeErr  error
}

// Listen creates the socket directory, removes a stale socket file left by
// an earlier run, and binds a new socket at path, accessible by the owner
// only.
func Listen(path string) (*Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("unable to bind socket at %s: %w", path, err)
	}
	// the file is removed by Close, not by the net package
	l.SetUnlinkOnClose(false)

	if err := os.Chmod(path, 0o600); err != nil {
		l.Close()
		os.Remove(path)
		return nil, fmt.Errorf("set socket permissions: %w", err)
	}

	return &Listener{UnixListener: l, path: path}, nil
}

// Path returns the socket file path.
func (l *Listener) Path() string {
	return l.path
}

// Close stops listening and removes the socket file. It is safe to call
// more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.UnixListener.Close()

		log.WithField("path", l.path).Debug("cleaning up socket file")
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Error("failed to remove socket file")
		}
	})
	return l.closeErr
}
