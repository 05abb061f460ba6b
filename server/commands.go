package server

import (
	"encoding/json"
	"fmt"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"

	"github.com/flokli/display-profiled/config"
	"github.com/flokli/display-profiled/ipc"
	"github.com/flokli/display-profiled/outputs"
)

// Status is the daemon state reported by the Status command.
type Status struct {
	ActiveProfile    string   `json:"active_profile"`
	ConnectedOutputs []string `json:"connected_outputs"`
	Profiles         []string `json:"profiles"`
	PendingOutputs   int      `json:"pending_outputs"`
}

// Status returns a snapshot of the daemon state. Only call it from the
// event loop.
func (s *Server) Status() Status {
	active, ok := s.activator.Active()
	if !ok {
		active = "None"
	}
	return Status{
		ActiveProfile:    active,
		ConnectedOutputs: outputNames(s.assembler.Outputs()),
		Profiles:         s.config.ProfileIDs(),
		PendingOutputs:   s.assembler.Pending(),
	}
}

// HandleCommand executes a control command against the daemon state and
// returns the message for a successful response.
func (s *Server) HandleCommand(cmd ipc.Command) (string, error) {
	switch cmd.Kind {
	case ipc.Reload:
		return s.reload()
	case ipc.Status:
		data, err := json.MarshalIndent(s.Status(), "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ipc.Switch:
		return s.switchTo(cmd.Profile)
	default:
		return "", fmt.Errorf("%w: %v", ipc.ErrInvalidRequest, cmd.Kind)
	}
}

// reload replaces the configuration and re-applies the matching profile.
// The current configuration stays in place if the file cannot be loaded.
func (s *Server) reload() (string, error) {
	if s.ready {
		s.notify(daemon.SdNotifyReloading)
		defer s.notify(daemon.SdNotifyReady)
	}

	cfg, err := config.Load(s.config.Path())
	if err != nil {
		return "", fmt.Errorf("unable to reload configuration: %w", err)
	}
	s.config = cfg
	log.WithFields(log.Fields{
		"path":     cfg.Path(),
		"profiles": len(cfg.Profiles),
	}).Info("configuration reloaded")

	s.source.Refresh()
	s.Evaluate(true)
	return "Configuration reloaded successfully.", nil
}

// switchTo applies the named profile regardless of the connected outputs,
// using the pattern mapping of the most recent match.
func (s *Server) switchTo(id string) (string, error) {
	p, ok := s.config.Profile(id)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrProfileNotFound, id)
	}
	s.activator.Activate(id, p, s.nameMap, true)
	s.publish()
	return fmt.Sprintf("Profile switched successfully to %s", id), nil
}

func outputNames(connected []outputs.ConnectedOutput) []string {
	names := make([]string, 0, len(connected))
	for _, o := range connected {
		names = append(names, o.String())
	}
	return names
}
