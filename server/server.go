package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"

	"github.com/flokli/display-profiled/config"
	"github.com/flokli/display-profiled/ipc"
	"github.com/flokli/display-profiled/outputs"
	"github.com/flokli/display-profiled/profile"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrSourceClosed    = errors.New("output source closed")
	ErrStopped         = errors.New("daemon is shutting down")
)

// Source delivers output notifications, e.g. from a Wayland connection.
type Source interface {
	// Run decodes protocol events and passes each notification to deliver,
	// which returns once the event loop has applied it. ready is called once
	// the source is connected and has reported the initial outputs. Run
	// returns when ctx is cancelled or the underlying connection fails.
	Run(ctx context.Context, deliver func(outputs.Notification), ready func()) error
	// Refresh asks the source to re-enumerate all outputs. It must not block.
	Refresh()
}

// StatePublisher mirrors the daemon status to an external system.
// PublishStatus is called from the event loop and must not block.
type StatePublisher interface {
	PublishStatus(Status)
}

// Server owns the daemon state. All state is mutated by the goroutine
// executing Run; other goroutines only talk to it through channels.
type Server struct {
	config    *config.Config
	assembler *outputs.Assembler
	activator *profile.Activator
	// pattern -> connector name, from the most recent successful match
	nameMap map[string]string

	source    Source
	publisher StatePublisher
	// set once the source called ready
	ready bool
	// sends a sd_notify(3) state
	notify func(state string)

	notifications chan delivery
	requests      chan request
	done          chan struct{}
}

type delivery struct {
	notification outputs.Notification
	applied      chan struct{}
}

type request struct {
	cmd   ipc.Command
	reply chan ipc.Response
}

func New(cfg *config.Config, source Source, executor profile.Executor) *Server {
	return &Server{
		config:        cfg,
		assembler:     outputs.NewAssembler(),
		activator:     profile.NewActivator(executor),
		nameMap:       make(map[string]string),
		source:        source,
		notify:        sdNotify,
		notifications: make(chan delivery),
		requests:      make(chan request),
		done:          make(chan struct{}),
	}
}

// SetPublisher registers a publisher notified after every evaluation.
// It must be called before Run.
func (s *Server) SetPublisher(p StatePublisher) {
	s.publisher = p
}

// Run is the event loop. It serves the control socket and applies output
// notifications until ctx is cancelled or the source fails. The listener is
// closed, and the socket file removed, on return.
func (s *Server) Run(ctx context.Context, listener *ipc.Listener) error {
	defer close(s.done)
	defer listener.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sourceReady := make(chan struct{})
	var readyOnce sync.Once
	ready := func() {
		readyOnce.Do(func() { close(sourceReady) })
	}

	sourceErr := make(chan error, 1)
	go func() {
		sourceErr <- s.source.Run(ctx, s.deliver, ready)
	}()
	go s.acceptLoop(ctx, listener)

	log.WithField("socket", listener.Path()).Info("event loop started, waiting for events")

	for {
		select {
		case <-ctx.Done():
			s.notify(daemon.SdNotifyStopping)
			log.Info("event loop stopped")
			return nil

		case <-sourceReady:
			// closed channel, stop selecting on it
			sourceReady = nil
			s.ready = true
			s.notify(daemon.SdNotifyReady)
			log.Info("output source ready")

		case err := <-sourceErr:
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = ErrSourceClosed
			}
			return fmt.Errorf("output source failed: %w", err)

		case d := <-s.notifications:
			if s.assembler.Apply(d.notification) {
				s.Evaluate(false)
			}
			close(d.applied)

		case r := <-s.requests:
			msg, err := s.HandleCommand(r.cmd)
			if err != nil {
				log.WithError(err).WithField("command", r.cmd.String()).Warn("command failed")
				r.reply <- ipc.Failure(err)
			} else {
				r.reply <- ipc.Success(msg)
			}
		}
	}
}

// deliver hands a notification to the event loop and waits until it has
// been applied. Sources call it from their own goroutine; while it blocks,
// the loop may release protocol objects owned by that source.
func (s *Server) deliver(n outputs.Notification) {
	d := delivery{notification: n, applied: make(chan struct{})}
	select {
	case s.notifications <- d:
	case <-s.done:
		return
	}
	select {
	case <-d.applied:
	case <-s.done:
	}
}

// Submit runs cmd on the event loop and returns its response.
func (s *Server) Submit(ctx context.Context, cmd ipc.Command) ipc.Response {
	r := request{cmd: cmd, reply: make(chan ipc.Response, 1)}
	select {
	case s.requests <- r:
	case <-ctx.Done():
		return ipc.Failure(ctx.Err())
	case <-s.done:
		return ipc.Failure(ErrStopped)
	}

	select {
	case resp := <-r.reply:
		return resp
	case <-s.done:
		return ipc.Failure(ErrStopped)
	}
}

// WatchConfig reloads the configuration whenever the config file changes.
// It must be called before Run.
func (s *Server) WatchConfig(ctx context.Context) error {
	path := s.config.Path()
	return config.Watch(ctx, path, func() {
		l := log.WithField("path", path)
		l.Info("config file changed, reloading")
		if err := s.Submit(ctx, ipc.Command{Kind: ipc.Reload}).Err(); err != nil {
			l.WithError(err).Error("automatic reload failed")
		}
	})
}

// Evaluate matches the connected outputs against the profiles and
// activates the result. force re-applies an already active profile.
func (s *Server) Evaluate(force bool) {
	connected := s.assembler.Outputs()

	match, ok := profile.FindMatchingProfile(connected, s.config)
	if !ok {
		if s.activator.Clear() {
			log.Warn("no matching profile found, clearing active profile")
		}
		if len(connected) == 0 {
			log.Warn("no profile matches, and no outputs are connected")
		} else {
			log.WithField("outputs", outputNames(connected)).Warn("no profile matches active outputs")
		}
		s.publish()
		return
	}

	s.nameMap = match.NameMap
	if s.activator.Activate(match.ID, match.Profile, match.NameMap, force) && s.ready {
		s.notify("WATCHDOG=1")
	}
	s.publish()
}

func sdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.WithError(err).WithField("state", state).Debug("unable to notify systemd")
	}
}

func (s *Server) publish() {
	if s.publisher != nil {
		s.publisher.PublishStatus(s.Status())
	}
}
