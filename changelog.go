package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const CHANGELOG = "Changelog.md"

const (
	RELEASE = "release"
	BETA    = "beta"
)

type Version struct {
	Number string // "1.2.3"
	Type   string // RELEASE or BETA
}

// the version as written into .toc files, "1.2.3" or "1.2.3-beta".
func (v Version) String() string {
	if v.Type == RELEASE {
		return v.Number
	}
	return v.Number + "-" + v.Type
}

// leading noise like "### " or "v" is skipped, but never across a line.
var changelog_version = regexp.MustCompile(`^[^\n\r\d]*(\d+(?:\.\d+)?(?:\.\d+)?)(?:[ \t]*\(((?i:beta))\))?`)

// derives the version and release type from the top of a changelog.
func parse_changelog(text string) (Version, error) {
	matches := changelog_version.FindStringSubmatch(strings.TrimLeft(text, " \t\r\n"))
	if matches == nil {
		return Version{}, fmt.Errorf("%w: no version found at the top of the changelog", ErrInvalidChangelogFormat)
	}
	version := Version{Number: matches[1], Type: RELEASE}
	if matches[2] != "" {
		version.Type = BETA
	}
	return version, nil
}

func normalize_newlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// prepends `changes` to the changelog at `path`, writing it once.
// returns the merged text.
func prepend_changelog(path, changes string) (string, error) {
	existing, err := slurp(path)
	if err != nil {
		return "", fmt.Errorf("failed to read changelog: %w", err)
	}
	if strings.TrimSpace(changes) == "" {
		return existing, nil
	}
	entry := strings.TrimRight(normalize_newlines(changes), "\n") + "\n\n"
	merged := entry + existing

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	err = os.WriteFile(path, []byte(merged), info.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("failed to write changelog: %w", err)
	}
	return merged, nil
}

// the version after `v` with its last component bumped, "1.2.3" => "1.2.4", "1.2" => "1.2.1".
func next_patch_version(v Version) string {
	bits := strings.Split(v.Number, ".")
	for len(bits) < 3 {
		bits = append(bits, "0")
	}
	n, err := strconv.Atoi(bits[2])
	if err != nil {
		n = 0
	}
	bits[2] = strconv.Itoa(n + 1)
	return strings.Join(bits, ".")
}

// changelog entry for a build that only bumps the supported game patch.
func patch_log(version string, game_patch string) string {
	return fmt.Sprintf("##### %s\n* Updated for World of Warcraft patch %s.\n\n", version, game_patch)
}
