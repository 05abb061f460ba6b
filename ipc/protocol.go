// Package ipc implements the control channel between the daemon and its
// command line client: one JSON request and one JSON response per
// connection over a Unix socket.
package ipc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidRequest = errors.New("invalid request")

// Kind identifies a control command.
type Kind int

const (
	Reload Kind = iota
	Status
	Switch
)

func (k Kind) String() string {
	switch k {
	case Reload:
		return "Reload"
	case Status:
		return "Status"
	case Switch:
		return "Switch"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Command is a control request. Profile is only used by Switch.
//
// On the wire, commands without arguments are bare strings ("Reload",
// "Status") and Switch is an object: {"Switch":"docked"}.
type Command struct {
	Kind    Kind
	Profile string
}

func (c Command) String() string {
	if c.Kind == Switch {
		return fmt.Sprintf("Switch(%s)", c.Profile)
	}
	return c.Kind.String()
}

func (c Command) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case Reload, Status:
		return json.Marshal(c.Kind.String())
	case Switch:
		return json.Marshal(map[string]string{"Switch": c.Profile})
	default:
		return nil, fmt.Errorf("%w: unknown command %v", ErrInvalidRequest, c.Kind)
	}
}

func (c *Command) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		switch name {
		case "Reload":
			*c = Command{Kind: Reload}
		case "Status":
			*c = Command{Kind: Status}
		default:
			return fmt.Errorf("%w: unknown command %q", ErrInvalidRequest, name)
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	raw, ok := obj["Switch"]
	if !ok || len(obj) != 1 {
		return fmt.Errorf("%w: expected a single Switch key", ErrInvalidRequest)
	}
	var profile string
	if err := json.Unmarshal(raw, &profile); err != nil {
		return fmt.Errorf("%w: Switch needs a profile name: %w", ErrInvalidRequest, err)
	}
	*c = Command{Kind: Switch, Profile: profile}
	return nil
}

// DecodeCommand parses a full request body.
func DecodeCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return Command{}, err
		}
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return c, nil
}

// Response is the outcome of a command, {"Ok":"..."} or {"Err":"..."}.
type Response struct {
	OK      bool
	Message string
}

func Success(message string) Response {
	return Response{OK: true, Message: message}
}

func Failure(err error) Response {
	return Response{Message: err.Error()}
}

// Err returns the failure message as an error, or nil on success.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	return errors.New(r.Message)
}

func (r Response) MarshalJSON() ([]byte, error) {
	if r.OK {
		return json.Marshal(map[string]string{"Ok": r.Message})
	}
	return json.Marshal(map[string]string{"Err": r.Message})
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if msg, ok := obj["Ok"]; ok {
		*r = Success(msg)
		return nil
	}
	if msg, ok := obj["Err"]; ok {
		*r = Response{Message: msg}
		return nil
	}
	return fmt.Errorf("response has neither Ok nor Err")
}
