package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTOML = `
[profile.laptop]
name = "Laptop Only"
exec = ["notify-send 'Laptop profile activated'"]

[[profile.laptop.settings]]
output = "eDP-1"
on = true
mode = "1920x1080@60Hz"
pos = "0,0"
scale = 1.0

[profile.docked]
name = "Docked Setup"
exec = ["notify-send 'Docked profile activated'"]

[[profile.docked.settings]]
output = "eDP-1"
on = false

[[profile.docked.settings]]
output = "HDMI-*"
on = true
mode = "2560x1440@144Hz"
pos = "0,0"
scale = 1.0
adaptive_sync = true
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", testTOML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Len(t, cfg.Profiles, 2)
	assert.Equal(t, []string{"laptop", "docked"}, cfg.ProfileIDs())

	laptop, ok := cfg.Profile("laptop")
	require.True(t, ok)
	assert.Equal(t, "Laptop Only", laptop.Name)
	assert.Len(t, laptop.Exec, 1)
	require.Len(t, laptop.Settings, 1)
	assert.Equal(t, "1920x1080@60Hz", laptop.Settings[0].Mode)
	require.NotNil(t, laptop.Settings[0].Scale)
	assert.Equal(t, 1.0, *laptop.Settings[0].Scale)
	assert.Nil(t, laptop.Settings[0].AdaptiveSync)

	docked, ok := cfg.Profile("docked")
	require.True(t, ok)
	require.Len(t, docked.Settings, 2)
	assert.False(t, docked.Settings[0].On)
	assert.Equal(t, "HDMI-*", docked.Settings[1].Output)
	require.NotNil(t, docked.Settings[1].AdaptiveSync)
	assert.True(t, *docked.Settings[1].AdaptiveSync)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
profile:
  work:
    settings:
      - output: "eDP-1"
        on: false
      - output: "Dell Inc. *"
        on: true
        transform: "90"
  home:
    exec: ["echo home"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "home"}, cfg.ProfileIDs())

	work, _ := cfg.Profile("work")
	require.Len(t, work.Settings, 2)
	assert.Equal(t, "90", work.Settings[1].Transform)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/path/to/nonexistent/config.toml")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "config.toml", `
[profile.laptop]
colour = "blue"
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnknownFields)

	path = writeFile(t, "config.yml", `
profile:
  laptop:
    colour: blue
`)
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"bad mode": `
[[profile.a.settings]]
output = "eDP-1"
mode = "wide"
`,
		"bad transform": `
[[profile.a.settings]]
output = "eDP-1"
transform = "45"
`,
		"bad scale": `
[[profile.a.settings]]
output = "eDP-1"
scale = 0.0
`,
		"two positions": `
[[profile.a.settings]]
output = "eDP-1"
pos = "0,0"
left_of = "HDMI-A-1"
`,
		"empty output": `
[[profile.a.settings]]
on = true
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.toml", content))
			assert.ErrorIs(t, err, ErrInvalidSetting)
		})
	}
}

func TestLoadEmptyProfile(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.toml", "[profile.test]\n"))
	require.NoError(t, err)
	p, ok := cfg.Profile("test")
	require.True(t, ok)
	assert.Empty(t, p.Settings)
	assert.Empty(t, p.Exec)
}

func TestLoadTOMLOrderFromNestedTables(t *testing.T) {
	path := writeFile(t, "config.toml", `
[[profile.zeta.settings]]
output = "HDMI-A-1"

[[profile.zeta.settings]]
output = "eDP-1"
on = false

[[profile.alpha.settings]]
output = "*"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, cfg.ProfileIDs())
	assert.Len(t, cfg.Profiles["zeta"].Settings, 2)
}

func TestProfileIDsWithoutOrder(t *testing.T) {
	cfg := &Config{Profiles: map[string]Profile{"b": {}, "a": {}, "c": {}}}
	assert.Equal(t, []string{"a", "b", "c"}, cfg.ProfileIDs())
}

func TestWatch(t *testing.T) {
	path := writeFile(t, "config.toml", "[profile.laptop]\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 10)
	require.NoError(t, Watch(ctx, path, func() { changed <- struct{}{} }))

	require.NoError(t, os.WriteFile(path, []byte("[profile.laptop]\n[profile.docked]\n"), 0o600))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Profiles, 2)
}
