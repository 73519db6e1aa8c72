package main

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// a supported game patch
type PatchTarget struct {
	Flavor    string `json:"flavor" mapstructure:"flavor"`       // "mainline", "classic", ...
	Version   string `json:"version" mapstructure:"version"`     // "1.13.5"
	Interface string `json:"interface" mapstructure:"interface"` // "11305"
}

var digits_pattern = regexp.MustCompile(`^\d+$`)

// "1.13.5" => true, "1.13" => false
func valid_patch_version(v string) bool {
	return strings.Count(v, ".") == 2 && semver.IsValid("v"+v)
}

// compiles an incompatible-patch mask like "1.x.x" or "2.5.*".
// each wildcard component matches any run of digits, missing trailing components match anything.
func parse_patch_mask(mask string) (*regexp.Regexp, error) {
	mask = strings.TrimSpace(mask)
	if mask == "" {
		return nil, fmt.Errorf("empty patch mask")
	}
	part_list := []string{}
	for _, part := range strings.Split(mask, ".") {
		switch strings.ToLower(part) {
		case "x", "*":
			part_list = append(part_list, `\d+`)
		default:
			if !digits_pattern.MatchString(part) {
				return nil, fmt.Errorf("invalid patch mask %q", mask)
			}
			part_list = append(part_list, regexp.QuoteMeta(part))
		}
	}
	return regexp.Compile(`^` + strings.Join(part_list, `\.`) + `(?:\.\d+)*$`)
}

// drops the patches matched by any of the `incompatible` masks.
// order of `patch_list` is preserved.
func resolve_patches(patch_list []PatchTarget, incompatible []string) ([]PatchTarget, error) {
	mask_list := []*regexp.Regexp{}
	for _, mask := range incompatible {
		re, err := parse_patch_mask(mask)
		if err != nil {
			return nil, err
		}
		mask_list = append(mask_list, re)
	}

	resolved := []PatchTarget{}
	for _, patch := range patch_list {
		if !valid_patch_version(patch.Version) {
			return nil, fmt.Errorf("invalid patch version %q, expected X.X.X", patch.Version)
		}
		excluded := false
		for _, re := range mask_list {
			if re.MatchString(patch.Version) {
				excluded = true
				break
			}
		}
		if !excluded {
			resolved = append(resolved, patch)
		}
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("no compatible patches left after applying %d incompatible masks", len(mask_list))
	}
	return resolved, nil
}

// the highest patch version in `patch_list`, used for generated changelog entries.
func latest_patch(patch_list []PatchTarget) string {
	latest := ""
	for _, patch := range patch_list {
		if latest == "" || semver.Compare("v"+patch.Version, "v"+latest) > 0 {
			latest = patch.Version
		}
	}
	return latest
}
