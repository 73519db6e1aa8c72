package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type State struct {
	SettingsPath string
	Settings     Settings
	Client       *http.Client
	VCS          VersionControl
}

// flags shared by `make` and `up`
type BuildFlags struct {
	Patch       bool
	Changes     string
	ChangesFile string
	Offline     bool
}

var LOG_LEVEL = new(slog.LevelVar)

func (f *BuildFlags) register(fs *pflag.FlagSet) {
	fs.BoolVarP(&f.Patch, "patch", "p", false, "name a new patch build automatically")
	fs.StringVarP(&f.Changes, "changes", "c", "", "changelog entry to prepend before building")
	fs.StringVar(&f.ChangesFile, "changes-file", "", "file holding the changelog entry to prepend")
	fs.BoolVar(&f.Offline, "offline", false, "skip pulling, committing and pushing")
}

func (f *BuildFlags) changes() (string, error) {
	if f.ChangesFile == "" {
		return f.Changes, nil
	}
	text, err := slurp(normalize_path(f.ChangesFile))
	if err != nil {
		return "", fmt.Errorf("failed to read changes: %w", err)
	}
	return text, nil
}

func init_state() (*State, error) {
	path, err := settings_path()
	if err != nil {
		return nil, err
	}
	settings, err := load_settings(path)
	if err != nil {
		return nil, err
	}
	return &State{
		SettingsPath: path,
		Settings:     settings,
		Client:       cleanhttp.DefaultClient(),
		VCS:          NewGitVCS(),
	}, nil
}

// the build options for `addon`, failing early on missing settings.
func (s *State) build_options(addon string, flags BuildFlags) (BuildOptions, error) {
	if s.Settings.Dir == "" {
		return BuildOptions{}, fmt.Errorf("no game directory configured, run: upmod config dir <path>")
	}
	if len(s.Settings.Patches) == 0 {
		return BuildOptions{}, fmt.Errorf("no game patches configured, run: upmod config patches <version:interface[:flavor],...>")
	}
	patrons, err := load_patrons(s.Settings.Patrons)
	if err != nil {
		return BuildOptions{}, err
	}
	changes, err := flags.changes()
	if err != nil {
		return BuildOptions{}, err
	}
	out := s.Settings.Out
	if out == "" {
		out = default_out_dir()
	}
	opts := BuildOptions{
		Dir:        s.Settings.Dir,
		Name:       addon,
		Patches:    s.Settings.Patches,
		Patrons:    patrons,
		Changes:    changes,
		PatchEntry: flags.Patch,
		OutDir:     out,
		Now:        time.Now(),
	}
	if !flags.Offline {
		opts.VCS = s.VCS
	}
	return opts, nil
}

func mask_token(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

func config_cmd(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   "config [setting] [value]",
		Short: "show or change global settings",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return fmt.Errorf("missing value for %s", args[0])
			}
			if len(args) == 2 {
				// environment overrides are never written back to the file
				stored, err := read_settings(state.SettingsPath, false)
				if err != nil {
					return err
				}
				stored, err = set_setting(stored, args[0], args[1])
				if err != nil {
					return err
				}
				err = save_settings(state.SettingsPath, stored)
				if err != nil {
					return fmt.Errorf("failed to save settings: %w", err)
				}
				state.Settings, err = load_settings(state.SettingsPath)
				if err != nil {
					return err
				}
				slog.Info("setting saved", "setting", args[0], "path", state.SettingsPath)
				return nil
			}

			s := state.Settings
			patch_list := []string{}
			for _, p := range s.Patches {
				patch_list = append(patch_list, fmt.Sprintf("%s:%s:%s", p.Version, p.Interface, p.Flavor))
			}
			fmt.Printf("dir      %s\n", s.Dir)
			fmt.Printf("patches  %s\n", strings.Join(patch_list, ", "))
			fmt.Printf("curse    %s\n", mask_token(s.Curse))
			fmt.Printf("patrons  %s\n", s.Patrons)
			fmt.Printf("out      %s\n", s.Out)
			return nil
		},
	}
}

func list_cmd(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "display addons found in the game directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if state.Settings.Dir == "" {
				return fmt.Errorf("no game directory configured, run: upmod config dir <path>")
			}
			for _, install := range scan_installations(state.Settings.Dir) {
				fmt.Printf("%s (%d addons)\n", install.Name, len(install.Addons))
				for _, addon := range install.Addons {
					fmt.Printf("  %s\n", addon.ID)
				}
			}
			return nil
		},
	}
}

func make_cmd(state *State) *cobra.Command {
	flags := BuildFlags{}
	cmd := &cobra.Command{
		Use:   "make <addon>",
		Short: "build the addon's .zip file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := state.build_options(args[0], flags)
			if err != nil {
				return err
			}
			build, err := make_build(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Printf("built %s version %s: %s\n", args[0], build.Version, build.Archive)
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func up_cmd(state *State) *cobra.Command {
	flags := BuildFlags{}
	cmd := &cobra.Command{
		Use:   "up <addon>",
		Short: "build the addon and upload it to CurseForge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if state.Settings.Curse == "" {
				return fmt.Errorf("no CurseForge token configured, run: upmod config curse <token>")
			}
			opts, err := state.build_options(args[0], flags)
			if err != nil {
				return err
			}
			build, err := make_build(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Printf("built %s version %s\n", args[0], build.Version)

			publisher := &Publisher{Client: state.Client, Token: state.Settings.Curse, VCS: opts.VCS}
			file_id, err := publisher.Publish(cmd.Context(), build)
			if err != nil {
				return err
			}
			fmt.Printf("uploaded %s version %s (file %s)\n", args[0], build.Version, i2s(file_id))
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func inspect_cmd(state *State) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <url>",
		Short: "show the .toc files of a published archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary_list, err := inspect_remote_archive(cmd.Context(), state.Client, args[0])
			if err != nil {
				return err
			}
			if len(summary_list) == 0 {
				return errors.New("no .toc files found in archive")
			}
			for _, toc := range summary_list {
				fmt.Printf("%s version=%s interface=%s\n", toc.Name, toc.Version, toc.Interface)
			}
			return nil
		},
	}
}

func root_cmd(state *State) *cobra.Command {
	verbose := false
	root := &cobra.Command{
		Use:           "upmod",
		Short:         "build and publish World of Warcraft addons",
		Version:       "2.0.0",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				LOG_LEVEL.Set(slog.LevelDebug)
			}
		},
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "log debug output")
	root.AddCommand(config_cmd(state), list_cmd(state), make_cmd(state), up_cmd(state), inspect_cmd(state))
	return root
}

// --- bootstrap

func init() {
	if is_testing() {
		return
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: LOG_LEVEL, TimeFormat: time.Kitchen})))
}

func main() {
	state, err := init_state()
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		fatal()
	}
	err = root_cmd(state).ExecuteContext(context.Background())
	if err != nil {
		slog.Error(err.Error())
		fatal()
	}
}
