package profile

import (
	log "github.com/sirupsen/logrus"

	"github.com/flokli/display-profiled/config"
)

// Executor runs the commands produced for a profile. Implementations must
// not block on the commands' completion.
type Executor interface {
	Execute(commands []string)
}

// Activator tracks the active profile and runs a profile's commands when it
// becomes active.
type Activator struct {
	executor Executor
	active   string
	isActive bool
}

func NewActivator(executor Executor) *Activator {
	return &Activator{executor: executor}
}

// Active returns the id of the active profile, if any.
func (a *Activator) Active() (string, bool) {
	return a.active, a.isActive
}

// Activate applies profile p unless it is already active. force re-applies
// an already active profile. It reports whether commands were executed.
func (a *Activator) Activate(id string, p config.Profile, nameMap map[string]string, force bool) bool {
	l := log.WithField("profile", id)
	if p.Name != "" {
		l = l.WithField("profileName", p.Name)
	}

	if !force && a.isActive && a.active == id {
		l.Debug("profile is already active, skipping activation")
		return false
	}

	l.Info("applying profile")
	a.executor.Execute(GenerateCommands(p, nameMap))
	a.active = id
	a.isActive = true
	return true
}

// Clear forgets the active profile. It reports whether one was set.
func (a *Activator) Clear() bool {
	if !a.isActive {
		return false
	}
	a.active = ""
	a.isActive = false
	return true
}
