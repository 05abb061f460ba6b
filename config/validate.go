package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flokli/display-profiled/outputs"
)

var ErrInvalidSetting = errors.New("invalid output setting")

var transforms = map[string]bool{
	"normal":      true,
	"90":          true,
	"180":         true,
	"270":         true,
	"flipped":     true,
	"flipped-90":  true,
	"flipped-180": true,
	"flipped-270": true,
}

// Validate checks every profile's settings for values wlr-randr would
// reject. Patterns are not checked here: an invalid pattern only disables
// its profile at match time.
func (c *Config) Validate() error {
	var errs []error
	for _, id := range c.ProfileIDs() {
		for i, s := range c.Profiles[id].Settings {
			if err := s.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("profile %q, setting %d: %w", id, i, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Validate checks a single output setting.
func (s OutputSetting) Validate() error {
	if strings.TrimSpace(s.Output) == "" {
		return fmt.Errorf("%w: output must not be empty", ErrInvalidSetting)
	}
	if s.Mode != "" {
		if _, err := outputs.NewMode(s.Mode); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSetting, err)
		}
	}
	if s.Transform != "" && !transforms[s.Transform] {
		return fmt.Errorf("%w: unknown transform %q", ErrInvalidSetting, s.Transform)
	}
	if s.Scale != nil && *s.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidSetting, *s.Scale)
	}

	positioned := 0
	for _, v := range []string{s.Pos, s.LeftOf, s.RightOf, s.Above, s.Below} {
		if v != "" {
			positioned++
		}
	}
	if positioned > 1 {
		return fmt.Errorf("%w: pos, left_of, right_of, above and below are mutually exclusive", ErrInvalidSetting)
	}
	return nil
}
