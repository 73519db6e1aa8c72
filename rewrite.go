package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// number of files rewritten at once
const REWRITE_CONCURRENCY = 8

var (
	lua_patron_list = regexp.MustCompile(`(local\s+\S+\s*=\s*)[^\n\r]+(--\s*generated\s*patron\s*list)`)
	lua_copyright   = regexp.MustCompile(`(Copyright[^\n\r\t\d]+\d+\s*-\s*)\d+`)
	toc_version     = regexp.MustCompile(`(?m)^(##\s*Version:[ \t]*)[^\s]+`)
	toc_interface   = regexp.MustCompile(`(?m)^(##\s*Interface:[ \t]*)[0-9][0-9, ]*`)
	toc_name        = regexp.MustCompile(`(?i)^(?P<name>.+?)(?:[-_](?P<flavor>[a-z]+))?\.toc$`)
)

// older names for the same game flavor
var flavor_aliases = map[string]string{
	"vanilla": "classic",
	"tbc":     "bcc",
	"wotlkc":  "wrath",
}

func canonical_flavor(flavor string) string {
	flavor = strings.ToLower(flavor)
	alias, present := flavor_aliases[flavor]
	if present {
		return alias
	}
	return flavor
}

// everything a rewrite needs to know about the build, shared read-only between workers.
type Rewrite struct {
	Version Version
	Patches []PatchTarget
	Patrons *string // serialized patron list, nil when no list is configured
	Year    int
}

// replaces `re` matches with the first capture group followed by `value`, taken literally.
func replace_field(re *regexp.Regexp, text, value string) string {
	return re.ReplaceAllString(text, "${1}"+strings.ReplaceAll(value, "$", "$$"))
}

// "MyAddon_Classic.toc" => "classic", "MyAddon.toc" => ""
func toc_flavor(filename string) string {
	matches := toc_name.FindStringSubmatch(filepath.Base(filename))
	if len(matches) < 3 {
		return ""
	}
	return canonical_flavor(matches[2])
}

// interface numbers for the .toc file `filename`.
// a flavor suffix selects the patches of that flavor, otherwise every patch applies.
func toc_interfaces(filename string, patch_list []PatchTarget) []string {
	flavor := toc_flavor(filename)
	selected := []string{}
	all := []string{}
	for _, patch := range patch_list {
		all = append(all, patch.Interface)
		if flavor != "" && canonical_flavor(patch.Flavor) == flavor {
			selected = append(selected, patch.Interface)
		}
	}
	if len(selected) == 0 {
		return unique(all)
	}
	return unique(selected)
}

func (r Rewrite) lua(text string) string {
	if r.Patrons != nil {
		text = lua_patron_list.ReplaceAllString(text, "${1}{"+strings.ReplaceAll(*r.Patrons, "$", "$$")+"} ${2}")
	}
	return replace_field(lua_copyright, text, strconv.Itoa(r.Year))
}

func (r Rewrite) toc(filename, text string) string {
	text = replace_field(toc_version, text, r.Version.String())
	return replace_field(toc_interface, text, strings.Join(toc_interfaces(filename, r.Patches), ", "))
}

// applies the rewrite for the file at `path` in place, returns true if it changed.
func (r Rewrite) file(path string) (bool, error) {
	var rewrite func(string) string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lua":
		rewrite = r.lua
	case ".toc":
		rewrite = func(text string) string { return r.toc(path, text) }
	default:
		return false, nil
	}

	text, err := slurp(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return spit_if_changed(path, text, rewrite(text))
}

// rewrites every file in `path_list` with a bounded pool of workers.
// the first failure cancels the remaining work.
func rewrite_files(ctx context.Context, r Rewrite, path_list []string) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(REWRITE_CONCURRENCY)

	changed := make([]bool, len(path_list))
	for i, path := range path_list {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ok, err := r.file(path)
			if err != nil {
				return err
			}
			changed[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("failed to rewrite files: %w", err)
	}

	num_changed := 0
	for _, ok := range changed {
		if ok {
			num_changed++
		}
	}
	slog.Debug("files rewritten", "checked", len(path_list), "changed", num_changed)
	return num_changed, nil
}
