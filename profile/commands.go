package profile

import (
	"strconv"

	"github.com/kballard/go-shellquote"

	"github.com/flokli/display-profiled/config"
)

// RandrCommand is the display configuration tool invoked for a profile.
const RandrCommand = "wlr-randr"

// GenerateCommands builds the shell commands applying p: one wlr-randr
// invocation covering all settings, followed by the profile's exec
// commands. Patterns are replaced by the connector names in nameMap; an
// unresolved pattern is passed through literally.
func GenerateCommands(p config.Profile, nameMap map[string]string) []string {
	commands := make([]string, 0, len(p.Exec)+1)
	if len(p.Settings) > 0 {
		commands = append(commands, shellquote.Join(randrArgs(p.Settings, nameMap)...))
	}
	return append(commands, p.Exec...)
}

func randrArgs(settings []config.OutputSetting, nameMap map[string]string) []string {
	args := []string{RandrCommand}
	for _, s := range settings {
		args = append(args, "--output", resolve(nameMap, s.Output))

		if s.On {
			args = append(args, "--on")
		} else {
			args = append(args, "--off")
		}
		if s.Mode != "" {
			args = append(args, "--mode", s.Mode)
		}
		if s.Preferred {
			args = append(args, "--preferred")
		}
		if s.Pos != "" {
			args = append(args, "--pos", s.Pos)
		}
		if s.LeftOf != "" {
			args = append(args, "--left-of", resolve(nameMap, s.LeftOf))
		}
		if s.RightOf != "" {
			args = append(args, "--right-of", resolve(nameMap, s.RightOf))
		}
		if s.Above != "" {
			args = append(args, "--above", resolve(nameMap, s.Above))
		}
		if s.Below != "" {
			args = append(args, "--below", resolve(nameMap, s.Below))
		}
		if s.Transform != "" {
			args = append(args, "--transform", s.Transform)
		}
		if s.Scale != nil {
			args = append(args, "--scale", strconv.FormatFloat(*s.Scale, 'f', -1, 64))
		}
		if s.AdaptiveSync != nil {
			if *s.AdaptiveSync {
				args = append(args, "--adaptive-sync", "enabled")
			} else {
				args = append(args, "--adaptive-sync", "disabled")
			}
		}
	}
	return args
}

// resolve maps a pattern to the connector it was matched to. Relative
// position targets go through the same lookup, so they may name another
// setting's pattern.
func resolve(nameMap map[string]string, pattern string) string {
	if name, ok := nameMap[pattern]; ok {
		return name
	}
	return pattern
}
