package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/flokli/display-profiled/ipc"
)

// acceptLoop serves each control connection on its own goroutine until the
// listener is closed. Commands still run one at a time on the event loop; a
// client that never finishes its request only stalls its own connection.
func (s *Server) acceptLoop(ctx context.Context, l *ipc.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("failed to accept control connection")
			time.Sleep(100 * time.Millisecond)
			continue
		}
		go s.serveConn(ctx, conn)
	}
}

// serveConn reads a request until the client shuts down its write half,
// runs it on the event loop and writes the response.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	// unblock a pending read on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	l := log.WithField("request", uuid.NewString())

	data, err := io.ReadAll(conn)
	if err != nil {
		l.WithError(err).Error("failed to read request")
		return
	}

	var resp ipc.Response
	cmd, err := ipc.DecodeCommand(data)
	if err != nil {
		l.WithError(err).Warn("failed to decode request")
		resp = ipc.Failure(err)
	} else {
		l.WithField("command", cmd.String()).Info("received command")
		resp = s.Submit(ctx, cmd)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		l.WithError(err).Error("failed to encode response")
		return
	}
	if _, err := conn.Write(out); err != nil {
		l.WithError(err).Error("failed to send response")
	}
}
