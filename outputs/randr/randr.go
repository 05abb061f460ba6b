// Package randr polls `wlr-randr --json` for compositors where binding
// wl_output directly is not an option, e.g. when running outside the
// session's Wayland socket namespace.
package randr

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	log "github.com/sirupsen/logrus"

	"github.com/flokli/display-profiled/outputs"
)

// Output is the subset of a `wlr-randr --json` entry needed for matching.
type Output struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Serial      string `json:"serial"`
	Enabled     bool   `json:"enabled"`
}

// Identity returns make, model and serial if the compositor reports them,
// the description otherwise.
func (o Output) Identity() string {
	if id := outputs.BuildIdentifier(o.Make, o.Model, o.Serial); id != "" {
		return id
	}
	return outputs.CleanDescription(o.Description, o.Name)
}

// QueryFunc lists the currently connected outputs.
type QueryFunc func(ctx context.Context) ([]Output, error)

// helper command, invokes wlr-randr
func randrcmd(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "wlr-randr", args...).Output()
	l := log.WithFields(log.Fields{
		"name": "wlr-randr",
		"args": args,
	})
	if err != nil {
		l.WithField("out", string(out)).Debug("failed running wlr-randr")
		return out, fmt.Errorf("failed running wlr-randr: %w", err)
	}
	l.Trace("ran wlr-randr")
	return out, nil
}

// Query invokes `wlr-randr --json`.
func Query(ctx context.Context) ([]Output, error) {
	out, err := randrcmd(ctx, "--json")
	if err != nil {
		return nil, err
	}
	var res []Output
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("failed to parse wlr-randr output: %w", err)
	}
	return res, nil
}
