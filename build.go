package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// everything a build needs, assembled once before it starts.
type BuildOptions struct {
	Dir     string        // game directory holding the client installs
	Name    string        // addon to build, matched loosely
	Patches []PatchTarget // supported game patches
	Patrons []Patron      // nil leaves generated patron lists untouched
	Changes string        // prepended to the changelog when set
	// prepends a generated entry for the latest patch, ignored when `Changes` is set
	PatchEntry bool
	OutDir     string
	VCS        VersionControl // nil skips pull and submodule update
	Now        time.Time
}

type BuildResult struct {
	Archive   string
	Version   Version
	Patches   []PatchTarget
	Changelog string
	Project   string   // CurseForge project, the addon's own name unless configured
	Folders   []string // the addon folder and its modules
}

// resolves the `modules` of an addon relative to its root.
// glob patterns are expanded, every entry must match at least one directory.
func resolve_modules(addon_root string, module_list []string) ([]string, error) {
	dir_list := []string{}
	for _, module := range module_list {
		pattern := filepath.Join(addon_root, filepath.FromSlash(module))
		match_list := []string{pattern}
		if strings.ContainsAny(module, "*?[{") {
			var err error
			match_list, err = doublestar.FilepathGlob(pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid module pattern %q: %w", module, err)
			}
		}
		found := false
		for _, match := range match_list {
			if is_dir(match) {
				dir_list = append(dir_list, match)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: module folder not found: %s", ErrMissingRequiredPath, pattern)
		}
	}
	return dir_list, nil
}

// runs `op` against each folder in turn, the first failure stops the build.
func each_folder(ctx context.Context, folder_list []string, op func(context.Context, string) error) error {
	for _, dir := range folder_list {
		err := op(ctx, dir)
		if err != nil {
			return err
		}
	}
	return nil
}

// builds the addon's archive:
// finds the addon, syncs its folders, derives the version from the changelog, rewrites versioned tokens,
// then writes every packaged file into "<addon>-<version>.zip" in the output directory.
func make_build(ctx context.Context, opts BuildOptions) (BuildResult, error) {
	empty_result := BuildResult{}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return empty_result, fmt.Errorf("failed to resolve game directory: %w", err)
	}
	install_list := scan_installations(dir)
	addon, found := find_addon(install_list, opts.Name)
	if !found {
		return empty_result, fmt.Errorf("%w: addon %s not found in any install under %s", ErrMissingRequiredPath, opts.Name, dir)
	}
	slog.Info("building", "addon", addon.ID, "path", addon.Path)

	config, err := load_addon_config(filepath.Join(addon.Path, MARKER_CONFIG), true)
	if err != nil {
		return empty_result, err
	}
	logfile := filepath.Join(addon.Path, CHANGELOG)
	err = require_path(logfile, "changelog")
	if err != nil {
		return empty_result, err
	}
	module_list, err := resolve_modules(addon.Path, config.Modules)
	if err != nil {
		return empty_result, err
	}
	folder_list := unique(append(module_list, addon.Path))

	patch_list, err := resolve_patches(opts.Patches, config.Incompatible)
	if err != nil {
		return empty_result, fmt.Errorf("failed to resolve patches for %s: %w", addon.ID, err)
	}

	if opts.VCS != nil {
		err = each_folder(ctx, folder_list, opts.VCS.Pull)
		if err != nil {
			return empty_result, err
		}
		err = each_folder(ctx, folder_list, opts.VCS.UpdateSubmodules)
		if err != nil {
			return empty_result, err
		}
	}

	changelog, err := slurp(logfile)
	if err != nil {
		return empty_result, fmt.Errorf("failed to read changelog: %w", err)
	}
	changes := opts.Changes
	if changes == "" && opts.PatchEntry {
		current, err := parse_changelog(changelog)
		if err != nil {
			return empty_result, err
		}
		changes = patch_log(next_patch_version(current), latest_patch(patch_list))
	}
	if changes != "" {
		changelog, err = prepend_changelog(logfile, changes)
		if err != nil {
			return empty_result, err
		}
	}
	version, err := parse_changelog(changelog)
	if err != nil {
		return empty_result, err
	}
	slog.Info("version", "addon", addon.ID, "version", version.Number, "type", version.Type)

	file_list, err := collect_files(folder_list, config.Ignore)
	if err != nil {
		return empty_result, err
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	rewrite := Rewrite{Version: version, Patches: patch_list, Year: now.Year()}
	if opts.Patrons != nil {
		patrons := serialize_patrons(opts.Patrons)
		rewrite.Patrons = &patrons
	}
	path_list := []string{}
	for _, file := range file_list {
		path_list = append(path_list, file.Path)
	}
	_, err = rewrite_files(ctx, rewrite, path_list)
	if err != nil {
		return empty_result, err
	}

	parent_list := []string{}
	for _, dir := range folder_list {
		parent_list = append(parent_list, filepath.Dir(dir))
	}
	parent := common_parent(parent_list)
	release := version.Type == RELEASE

	entry_list := []Entry{}
	for _, file := range file_list {
		entry, ok, err := entry_for(file, parent, release)
		if err != nil {
			return empty_result, err
		}
		if ok {
			entry_list = append(entry_list, entry)
		}
	}

	err = os.MkdirAll(opts.OutDir, 0o755)
	if err != nil {
		return empty_result, fmt.Errorf("failed to create output directory: %w", err)
	}
	archive_path := filepath.Join(opts.OutDir, archive_name(addon.ID, version))
	err = write_archive(archive_path, entry_list)
	if err != nil {
		return empty_result, err
	}
	project := config.Project
	if project == "" {
		project = addon.ID
	}
	slog.Info("built", "addon", addon.ID, "archive", archive_path, "files", len(entry_list))

	return BuildResult{
		Archive:   archive_path,
		Version:   version,
		Patches:   patch_list,
		Changelog: changelog,
		Project:   project,
		Folders:   folder_list,
	}, nil
}

// "MyAddon-1.2.3.zip"
func archive_name(addon string, version Version) string {
	return fmt.Sprintf("%s-%s.zip", addon, strings.TrimSpace(version.Number))
}
