package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// name of the per-addon config file. its presence marks a directory as a publishable addon.
const MARKER_CONFIG = ".upmod"

// section name => ordered list of trimmed lines
type Sections map[string][]string

// settings for a single addon, read from its marker config.
type AddonConfig struct {
	Ignore       []string // ignore-file patterns, applied relative to each packaged folder
	Modules      []string // folders packaged alongside the addon, relative to the addon root
	Incompatible []string // patch masks like "1.x.x" excluded from the build
	Project      string   // CurseForge project id or slug
}

// parses the `[section]` + indented list format:
//
//	[ignore]
//	  Tests/
//	[modules]
//	  ../MyAddon_Options
//
// lines before the first header are dropped, as are blank lines and '#' or ';' comments.
func parse_config(text string) Sections {
	sections := Sections{}
	current := ""
	in_section := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			current = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			in_section = true
			if _, present := sections[current]; !present {
				sections[current] = []string{}
			}
			continue
		}
		if !in_section {
			continue
		}
		sections[current] = append(sections[current], line)
	}
	return sections
}

// first line of `section`, or an empty string.
func (s Sections) first(section string) string {
	lines := s[section]
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

func (s Sections) addon_config() AddonConfig {
	return AddonConfig{
		Ignore:       s["ignore"],
		Modules:      s["modules"],
		Incompatible: s["incompatible"],
		Project:      s.first("project"),
	}
}

// reads the addon config at `path`.
// a missing file is an empty config, unless `required` is set.
func load_addon_config(path string, required bool) (AddonConfig, error) {
	text, err := slurp(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if required {
				return AddonConfig{}, fmt.Errorf("%w: addon config not found: %s", ErrMissingRequiredPath, path)
			}
			return AddonConfig{}, nil
		}
		return AddonConfig{}, fmt.Errorf("failed to read addon config: %w", err)
	}
	return parse_config(text).addon_config(), nil
}
