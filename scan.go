package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// a game client install directory like "_retail_" or "_classic_"
type Installation struct {
	Path   string
	Name   string // "retail"
	Addons []Addon
}

type Addon struct {
	ID        string // folder name, "MyAddon"
	Path      string
	HasConfig bool
}

var install_pattern = regexp.MustCompile(`^_.+_$`)

// "My-Addon" => "myaddon", "my_addon" => "myaddon"
func clean_name(name string) string {
	name = strings.ReplaceAll(name, "-", "")
	name = strings.ReplaceAll(name, "_", "")
	return strings.ToLower(name)
}

// case-insensitive lookup of a child directory `name` within `dir`.
func find_child_dir(dir, name string) (string, bool) {
	entry_list, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entry_list {
		path := filepath.Join(dir, entry.Name())
		if strings.EqualFold(entry.Name(), name) && is_dir(path) {
			return path, true
		}
	}
	return "", false
}

// returns the addon folders of the installation at `install_path`.
// only folders with a marker config are addons.
func scan_addons(install_path string) []Addon {
	addon_list := []Addon{}
	interface_dir, ok := find_child_dir(install_path, "Interface")
	if !ok {
		slog.Debug("no Interface directory, skipping", "install", install_path)
		return addon_list
	}
	addons_dir, ok := find_child_dir(interface_dir, "AddOns")
	if !ok {
		slog.Debug("no AddOns directory, skipping", "install", install_path)
		return addon_list
	}

	entry_list, err := os.ReadDir(addons_dir)
	if err != nil {
		slog.Debug("failed to read AddOns directory, skipping", "path", addons_dir, "error", err)
		return addon_list
	}

	seen := map[string]string{}
	for _, entry := range entry_list {
		// addon folders are often symlinked in from elsewhere
		path := filepath.Join(addons_dir, entry.Name())
		if !is_dir(path) {
			continue
		}
		if !path_exists(filepath.Join(path, MARKER_CONFIG)) {
			continue
		}
		id := clean_name(entry.Name())
		if prev, present := seen[id]; present {
			slog.Warn("duplicate addon identifier, skipping", "addon", entry.Name(), "existing", prev)
			continue
		}
		seen[id] = entry.Name()
		addon_list = append(addon_list, Addon{ID: entry.Name(), Path: path, HasConfig: true})
	}
	return addon_list
}

// walks `root` for client installs and the addons within them.
// inaccessible or non-matching directories are skipped.
func scan_installations(root string) []Installation {
	install_list := []Installation{}
	entry_list, err := os.ReadDir(root)
	if err != nil {
		slog.Debug("failed to read install root", "root", root, "error", err)
		return install_list
	}
	for _, entry := range entry_list {
		path := filepath.Join(root, entry.Name())
		if !install_pattern.MatchString(entry.Name()) || !is_dir(path) {
			continue
		}
		install_list = append(install_list, Installation{
			Path:   path,
			Name:   strings.Trim(entry.Name(), "_"),
			Addons: scan_addons(path),
		})
	}
	slices.SortFunc(install_list, func(a, b Installation) int {
		return strings.Compare(a.Name, b.Name)
	})
	return install_list
}

// first addon across `install_list` whose cleaned identifier matches `name`.
func find_addon(install_list []Installation, name string) (Addon, bool) {
	needle := clean_name(name)
	for _, install := range install_list {
		for _, addon := range install.Addons {
			if clean_name(addon.ID) == needle {
				return addon, true
			}
		}
	}
	return Addon{}, false
}
