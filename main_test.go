package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_mask_token(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"abc":        "***",
		"abcdef-123": "******-123",
	}
	for given, expected := range cases {
		assert.Equal(t, expected, mask_token(given), given)
	}
}

func Test_build_flags(t *testing.T) {
	flags := BuildFlags{}
	fs := pflag.NewFlagSet("make", pflag.ContinueOnError)
	flags.register(fs)
	require.NoError(t, fs.Parse([]string{"-p", "-c", "1.0.1\n* fix", "--offline"}))
	assert.Equal(t, BuildFlags{Patch: true, Changes: "1.0.1\n* fix", Offline: true}, flags)

	changes, err := flags.changes()
	require.NoError(t, err)
	assert.Equal(t, "1.0.1\n* fix", changes)

	path := filepath.Join(t.TempDir(), "changes.md")
	require.NoError(t, os.WriteFile(path, []byte("1.0.2\n* from a file\n"), 0o644))
	flags.ChangesFile = path
	changes, err = flags.changes()
	require.NoError(t, err)
	assert.Equal(t, "1.0.2\n* from a file\n", changes)

	flags.ChangesFile = filepath.Join(t.TempDir(), "nope.md")
	_, err = flags.changes()
	assert.Error(t, err)
}

func Test_build_options(t *testing.T) {
	vcs := &fake_vcs{}
	state := &State{VCS: vcs}

	_, err := state.build_options("foo", BuildFlags{})
	assert.Error(t, err)

	state.Settings.Dir = "/games/wow"
	_, err = state.build_options("foo", BuildFlags{})
	assert.Error(t, err)

	state.Settings.Patches = test_patches
	state.Settings.Out = "/tmp/out"
	opts, err := state.build_options("foo", BuildFlags{Patch: true})
	require.NoError(t, err)
	assert.Equal(t, "/games/wow", opts.Dir)
	assert.Equal(t, "foo", opts.Name)
	assert.Equal(t, "/tmp/out", opts.OutDir)
	assert.True(t, opts.PatchEntry)
	assert.Nil(t, opts.Patrons)
	assert.Equal(t, vcs, opts.VCS)

	opts, err = state.build_options("foo", BuildFlags{Offline: true})
	require.NoError(t, err)
	assert.Nil(t, opts.VCS)
}

func Test_make_cmd(t *testing.T) {
	game, _ := game_tree(t)
	out := t.TempDir()
	vcs := &fake_vcs{}
	state := &State{
		SettingsPath: filepath.Join(t.TempDir(), SETTINGS_FILE),
		Settings:     Settings{Dir: game, Patches: test_patches, Out: out},
		VCS:          vcs,
	}

	cmd := root_cmd(state)
	cmd.SetArgs([]string{"make", "Foo", "--offline", "--changes", "1.1.0\n* second"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.True(t, path_exists(filepath.Join(out, "Foo-1.1.0.zip")))
	assert.Empty(t, vcs.calls())
}

func Test_config_cmd(t *testing.T) {
	game := t.TempDir()
	state := &State{SettingsPath: filepath.Join(t.TempDir(), SETTINGS_FILE)}

	cmd := root_cmd(state)
	cmd.SetArgs([]string{"config", "dir", game})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, game, state.Settings.Dir)

	saved, err := load_settings(state.SettingsPath)
	require.NoError(t, err)
	assert.Equal(t, game, saved.Dir)

	cmd = root_cmd(state)
	cmd.SetArgs([]string{"config", "patches", "not-a-patch"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))

	cmd = root_cmd(state)
	cmd.SetArgs([]string{"config", "dir"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func Test_config_cmd__env_not_saved(t *testing.T) {
	game := t.TempDir()
	path := filepath.Join(t.TempDir(), SETTINGS_FILE)
	require.NoError(t, os.WriteFile(path, []byte(`{"curse": "from-the-file"}`), 0o600))
	t.Setenv("UPMOD_CURSE", "from-the-env")

	settings, err := load_settings(path)
	require.NoError(t, err)
	state := &State{SettingsPath: path, Settings: settings}

	cmd := root_cmd(state)
	cmd.SetArgs([]string{"config", "dir", game})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, game, state.Settings.Dir)
	assert.Equal(t, "from-the-env", state.Settings.Curse)

	saved, err := read_settings(path, false)
	require.NoError(t, err)
	assert.Equal(t, Settings{Dir: game, Curse: "from-the-file"}, saved)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "from-the-env")
}

func Test_up_cmd__no_token(t *testing.T) {
	state := &State{Settings: Settings{Dir: t.TempDir(), Patches: test_patches}}
	cmd := root_cmd(state)
	cmd.SetArgs([]string{"up", "Foo", "--offline"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
