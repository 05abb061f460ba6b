// Package profile selects the profile matching the connected outputs and
// applies it.
package profile

import (
	"github.com/gobwas/glob"
	log "github.com/sirupsen/logrus"

	"github.com/flokli/display-profiled/config"
	"github.com/flokli/display-profiled/outputs"
)

// Match is the result of a successful profile match.
type Match struct {
	ID      string
	Profile config.Profile
	// NameMap maps each setting's output pattern to the connector name it
	// was assigned to.
	NameMap map[string]string
}

// FindMatchingProfile returns the first profile, in declaration order, whose
// settings can each be assigned a distinct connected output.
//
// Assignment is greedy: settings are walked in declared order and each takes
// the first free output (in the given order) that its pattern matches. There
// is no backtracking, so declaration order acts as a priority and a profile
// with overlapping patterns can be rejected although some permutation would
// fit.
func FindMatchingProfile(connected []outputs.ConnectedOutput, cfg *config.Config) (Match, bool) {
	for _, id := range cfg.ProfileIDs() {
		p := cfg.Profiles[id]
		if len(p.Settings) != len(connected) {
			continue
		}
		if len(p.Settings) == 0 {
			return Match{ID: id, Profile: p, NameMap: map[string]string{}}, true
		}

		nameMap, ok := assign(id, p, connected)
		if ok {
			return Match{ID: id, Profile: p, NameMap: nameMap}, true
		}
	}
	return Match{}, false
}

func assign(id string, p config.Profile, connected []outputs.ConnectedOutput) (map[string]string, bool) {
	used := make([]bool, len(connected))
	nameMap := make(map[string]string, len(p.Settings))

	for _, setting := range p.Settings {
		pattern, err := glob.Compile(setting.Output)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"profile": id,
				"pattern": setting.Output,
			}).Error("invalid output pattern")
			return nil, false
		}

		found := false
		for i, output := range connected {
			if used[i] || !matches(pattern, output) {
				continue
			}
			used[i] = true
			nameMap[setting.Output] = output.Name
			found = true
			break
		}
		if !found {
			return nil, false
		}
	}
	return nameMap, true
}

func matches(pattern glob.Glob, output outputs.ConnectedOutput) bool {
	for _, candidate := range output.Candidates() {
		if pattern.Match(candidate) {
			return true
		}
	}
	return false
}
