package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound      = errors.New("config file not found")
	ErrUnknownFields = errors.New("unknown config keys")
)

// Load reads, decodes and validates the config file at path. The format is
// chosen by extension: .yaml/.yml is YAML, everything else TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("unable to read config file at %s: %w", path, err)
	}

	var cfg *Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		cfg, err = decodeYAML(data)
	case ".toml", "":
		cfg, err = decodeTOML(data)
	default:
		log.WithField("path", path).Debugf("treating %s file as TOML", ext)
		cfg, err = decodeTOML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file at %s: %w", path, err)
	}

	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file at %s: %w", path, err)
	}
	return cfg, nil
}

func decodeTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownFields, strings.Join(keys, ", "))
	}

	// md.Keys() preserves file order. A profile may only appear through
	// nested keys such as [[profile.<id>.settings]], so the first key below
	// "profile" names its position.
	seen := make(map[string]struct{})
	for _, k := range md.Keys() {
		if len(k) < 2 || k[0] != "profile" {
			continue
		}
		if _, ok := seen[k[1]]; ok {
			continue
		}
		seen[k[1]] = struct{}{}
		cfg.order = append(cfg.order, k[1])
	}
	return cfg, nil
}

func decodeYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("decode YAML: %w", err)
	}

	// a second pass over the node tree recovers the profile order
	var doc struct {
		Profiles yaml.Node `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode YAML: %w", err)
	}
	if doc.Profiles.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(doc.Profiles.Content); i += 2 {
			cfg.order = append(cfg.order, doc.Profiles.Content[i].Value)
		}
	}
	return cfg, nil
}
