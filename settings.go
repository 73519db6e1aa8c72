package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
)

const SETTINGS_FILE = ".upmod.json"

// user settings, shared by every addon.
type Settings struct {
	// game directory
	Dir string `json:"dir,omitempty" mapstructure:"dir"`
	// supported game patches
	Patches []PatchTarget `json:"patches,omitempty" mapstructure:"patches"`
	// CurseForge API token
	Curse   string `json:"curse,omitempty" mapstructure:"curse"`
	Patrons string `json:"patrons,omitempty" mapstructure:"patrons"`
	// archive output directory
	Out string `json:"out,omitempty" mapstructure:"out"`
}

var SETTINGS_SCHEMA = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"dir": {"type": "string"},
		"curse": {"type": "string"},
		"patrons": {"type": "string"},
		"out": {"type": "string"},
		"patches": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["version", "interface"],
				"properties": {
					"flavor": {"type": "string"},
					"version": {"type": "string", "pattern": "^\\d+\\.\\d+\\.\\d+$"},
					"interface": {"type": "string", "pattern": "^\\d+$"}
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

var settings_schema = jsonschema.MustCompileString("settings.json", SETTINGS_SCHEMA)

// "~/.upmod.json"
func settings_path() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, SETTINGS_FILE), nil
}

// where archives are written unless configured otherwise.
func default_out_dir() string {
	out, err := homedir.Expand("~/Desktop")
	if err != nil {
		return "."
	}
	return out
}

func validate_settings(data []byte) error {
	var doc any
	err := json.Unmarshal(data, &doc)
	if err != nil {
		return fmt.Errorf("settings are not valid JSON: %w", err)
	}
	err = settings_schema.Validate(doc)
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// reads settings from `path`, a missing file gives empty settings.
// UPMOD_DIR, UPMOD_CURSE, UPMOD_PATRONS and UPMOD_OUT override values from the file.
func load_settings(path string) (Settings, error) {
	return read_settings(path, true)
}

// reads settings from `path`, applying environment overrides only when `env` is true.
func read_settings(path string, env bool) (Settings, error) {
	settings := Settings{}
	v := viper.New()
	v.SetConfigType("json")
	if env {
		v.SetEnvPrefix("upmod")
		for _, key := range []string{"dir", "curse", "patrons", "out"} {
			err := v.BindEnv(key)
			if err != nil {
				return settings, err
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}
	if len(data) > 0 {
		err = validate_settings(data)
		if err != nil {
			return settings, fmt.Errorf("%s: %w", path, err)
		}
		err = v.ReadConfig(bytes.NewReader(data))
		if err != nil {
			return settings, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	err = v.Unmarshal(&settings)
	if err != nil {
		return settings, fmt.Errorf("failed to decode settings: %w", err)
	}
	for _, field := range []*string{&settings.Dir, &settings.Patrons, &settings.Out} {
		if *field == "" {
			continue
		}
		expanded, err := homedir.Expand(*field)
		if err == nil {
			*field = expanded
		}
	}
	return settings, nil
}

func save_settings(path string, settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	err = validate_settings(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// "9.0.2:90002:mainline, 1.13.5:11305:classic" => [{mainline 9.0.2 90002} {classic 1.13.5 11305}]
func parse_patch_list(s string) ([]PatchTarget, error) {
	patch_list := []PatchTarget{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		bits := strings.Split(item, ":")
		if len(bits) < 2 || len(bits) > 3 {
			return nil, fmt.Errorf("invalid patch %q, expected VERSION:INTERFACE[:FLAVOR]", item)
		}
		patch := PatchTarget{Version: bits[0], Interface: bits[1]}
		if len(bits) == 3 {
			patch.Flavor = bits[2]
		}
		if !valid_patch_version(patch.Version) {
			return nil, fmt.Errorf("invalid patch version %q, expected X.X.X", patch.Version)
		}
		if !digits_pattern.MatchString(patch.Interface) {
			return nil, fmt.Errorf("invalid interface number %q", patch.Interface)
		}
		patch_list = append(patch_list, patch)
	}
	return patch_list, nil
}

func normalize_path(path string) string {
	path = strings.ReplaceAll(strings.TrimSpace(path), `"`, "")
	expanded, err := homedir.Expand(path)
	if err == nil {
		path = expanded
	}
	return filepath.Clean(path)
}

// validates and sets a single setting by name.
func set_setting(settings Settings, key, value string) (Settings, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "dir":
		dir := normalize_path(value)
		if !is_dir(dir) {
			return settings, fmt.Errorf("not a valid directory path: %s", dir)
		}
		settings.Dir = dir
	case "patches":
		patch_list, err := parse_patch_list(value)
		if err != nil {
			return settings, err
		}
		if len(patch_list) == 0 {
			return settings, fmt.Errorf("at least one patch is required")
		}
		settings.Patches = patch_list
	case "curse":
		if len(value) <= 5 {
			return settings, fmt.Errorf("too short for a CurseForge API token")
		}
		settings.Curse = value
	case "patrons":
		if value == "" {
			settings.Patrons = ""
			break
		}
		path := normalize_path(value)
		if !path_exists(path) {
			return settings, fmt.Errorf("%w: patron list not found: %s", ErrMissingRequiredPath, path)
		}
		settings.Patrons = path
	case "out":
		settings.Out = normalize_path(value)
	default:
		return settings, fmt.Errorf("unknown setting %q, expected one of dir, patches, curse, patrons, out", key)
	}
	return settings, nil
}

// reads the configured patron list, nil if there isn't one.
func load_patrons(path string) ([]Patron, error) {
	if path == "" {
		return nil, nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open patron list: %w", err)
	}
	defer fh.Close()
	return read_patrons(fh)
}
