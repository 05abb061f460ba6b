package outputs

import (
	"fmt"
	"strings"
)

// Handle is the protocol object backing an output that is still being
// assembled. It is released once the output is finalized or discarded.
type Handle interface {
	Release() error
}

// PendingOutput accumulates the fields of an output announced by the
// protocol until the protocol signals that its description is complete.
type PendingOutput struct {
	ID          uint32
	Name        *string
	Description *string
	Serial      *string

	handle Handle
}

func (p *PendingOutput) String() string {
	name, description := "<none>", "<none>"
	if p.Name != nil {
		name = *p.Name
	}
	if p.Description != nil {
		description = *p.Description
	}
	return fmt.Sprintf("#%d name=%q description=%q", p.ID, name, description)
}

// ConnectedOutput is a fully identified physical output.
type ConnectedOutput struct {
	ID uint32 `json:"-"`
	// Name is the connector name, e.g. "eDP-1" or "HDMI-A-1".
	Name string `json:"name"`
	// Identity is a vendor/model/serial derived description, empty if unknown.
	Identity string `json:"identity,omitempty"`
	Serial   string `json:"serial,omitempty"`
}

// Candidates returns all strings a profile pattern may match against:
// the name, the identity and the serial, skipping empty ones.
func (o ConnectedOutput) Candidates() []string {
	candidates := []string{o.Name}
	if o.Identity != "" {
		candidates = append(candidates, o.Identity)
	}
	if o.Serial != "" {
		candidates = append(candidates, o.Serial)
	}
	return candidates
}

func (o ConnectedOutput) String() string {
	identity := o.Identity
	if identity == "" {
		identity = "unknown"
	}
	return fmt.Sprintf("%s (%s)", o.Name, identity)
}

// BuildIdentifier joins make, model and serial into an identity string.
// The serial is only appended if present; without make and model there is
// no identity at all.
func BuildIdentifier(make, model, serial string) string {
	if make == "" || model == "" {
		return ""
	}
	if serial != "" {
		return fmt.Sprintf("%s %s %s", make, model, serial)
	}
	return fmt.Sprintf("%s %s", make, model)
}

// CleanDescription strips a trailing " (name)" from a compositor supplied
// description, as some compositors embed the connector name there.
func CleanDescription(description, name string) string {
	suffix := fmt.Sprintf("(%s)", name)
	if !strings.HasSuffix(description, suffix) {
		return description
	}
	return strings.TrimSpace(strings.TrimSuffix(description, suffix))
}
