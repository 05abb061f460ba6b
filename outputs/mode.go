package outputs

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode is a video mode in the notation wlr-randr accepts:
// WIDTHxHEIGHT with an optional @REFRESH[Hz] suffix.
type Mode struct {
	Width   int64   `json:"width"`
	Height  int64   `json:"height"`
	Refresh float64 `json:"refresh"`
}

func (m *Mode) String() string {
	if m.Refresh != 0 {
		return fmt.Sprintf("%vx%v@%vHz", m.Width, m.Height, m.Refresh)
	}
	return fmt.Sprintf("%vx%v", m.Width, m.Height)
}

func NewMode(s string) (*Mode, error) {
	// split an optional frequency
	xyStr, refreshStr, hasRefresh := strings.Cut(s, "@")

	var refresh float64
	if hasRefresh {
		v, err := strconv.ParseFloat(strings.TrimSuffix(refreshStr, "Hz"), 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse refresh rate: %w", err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("invalid refresh rate: %v", refreshStr)
		}
		refresh = v
	}

	xStr, yStr, found := strings.Cut(xyStr, "x")
	if !found {
		return nil, fmt.Errorf("invalid mode %q: expected WIDTHxHEIGHT", s)
	}

	x, err := strconv.ParseInt(xStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unable to parse width as int: %w", err)
	}
	y, err := strconv.ParseInt(yStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unable to parse height as int: %w", err)
	}
	if x <= 0 || y <= 0 {
		return nil, fmt.Errorf("invalid mode %q: dimensions must be positive", s)
	}

	return &Mode{
		Width:   x,
		Height:  y,
		Refresh: refresh,
	}, nil
}
