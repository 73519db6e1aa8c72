// general purpose utilities
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	ErrMissingRequiredPath    = errors.New("missing required path")
	ErrInvalidChangelogFormat = errors.New("invalid changelog format")
	ErrIncompatiblePatchSet   = errors.New("incompatible patch set")
	ErrVersionControl         = errors.New("version control failure")
)

// cannot continue, exit immediately without a stacktrace.
// just use `panic` if you do need a stracktrace.
func fatal() {
	fmt.Fprintf(os.Stderr, "cannot continue, exit status 1\n")
	os.Exit(1)
}

// returns `true` if tests are being run.
func is_testing() bool {
	// https://stackoverflow.com/questions/14249217/how-do-i-know-im-running-within-go-test
	return strings.HasSuffix(os.Args[0], ".test")
}

// "title case" => "Title Case"
// `strings.ToTitle` behaves strangely and isn't safe with unicode.
func title_case(s string) string {
	caser := cases.Title(language.English)
	return caser.String(s)
}

// returns just the unique items in `list`.
// order is preserved.
func unique[T comparable](list []T) []T {
	idx := make(map[T]bool)
	var result []T
	for _, item := range list {
		_, present := idx[item]
		if !present {
			idx[item] = true
			result = append(result, item)
		}
	}
	return result
}

// takes N lists of things `T` and returns a single list of them.
func flatten[T any](tll ...[]T) []T {
	final_tl := []T{}
	for _, tl := range tll {
		final_tl = append(final_tl, tl...)
	}
	return final_tl
}

func path_exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

func is_dir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// requires `path` to exist, returning an `ErrMissingRequiredPath` describing `what` otherwise.
func require_path(path, what string) error {
	if !path_exists(path) {
		return fmt.Errorf("%w: %s not found: %s", ErrMissingRequiredPath, what, path)
	}
	return nil
}

// detect if a string has a byte-order mark,
// removing it and returning the remaining bytes if so.
// returns an error if bytes cannot be read.
// - https://stackoverflow.com/questions/21371673/reading-files-with-a-bom-in-go#answer-21375405
func elide_bom(b []byte) ([]byte, error) {
	br := bytes.NewReader(b)
	r, _, err := br.ReadRune()
	if err != nil {
		return b, err
	}
	if r != '\uFEFF' {
		br.UnreadRune() // Not a BOM -- put the rune back
	}
	return io.ReadAll(br)
}

// read text file at `path` as a string, minus any byte-order mark.
func slurp(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", nil
	}
	data, err = elide_bom(data)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// writes `content` to `path` only if it differs from what is already there.
// returns true if the file was written.
func spit_if_changed(path, original, content string) (bool, error) {
	if original == content {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	err = os.WriteFile(path, []byte(content), info.Mode().Perm())
	if err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Debug("rewrote file", "path", path)
	return true, nil
}

// the deepest directory that contains every path in `path_list`.
func common_parent(path_list []string) string {
	if len(path_list) == 0 {
		return ""
	}
	parent := filepath.Clean(path_list[0])
	for _, path := range path_list[1:] {
		path = filepath.Clean(path)
		for !within(parent, path) {
			next := filepath.Dir(parent)
			if next == parent {
				return parent
			}
			parent = next
		}
	}
	return parent
}

// true if `path` is `dir` or somewhere beneath it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
