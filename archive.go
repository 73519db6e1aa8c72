package main

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// per-folder ignore file, standard .gitignore syntax
const IGNORE_FILE = ".upignore"

type FileKind int

const (
	KIND_OTHER FileKind = iota
	KIND_SCRIPT
	KIND_MARKUP
	KIND_MEDIA
	KIND_MANIFEST
)

// how a file of a given kind ends up in the archive.
type EntryRule struct {
	Kind FileKind
	// content used in place of an ignored file. nil excludes ignored files entirely.
	Stub []byte
	// transforms the content of a file that is not ignored. nil copies it as is.
	Transform func(text string, release bool) string
}

var (
	toc_title         = regexp.MustCompile(`(?m)^(##\s*Title:\s*)\|c\w{8}([^|]+)\|r`)
	toc_dev_metadata  = regexp.MustCompile(`(?m)^##\s*X-Dev[\w-]*:.*(?:\r?\n|$)`)
	script_rule       = EntryRule{Kind: KIND_SCRIPT, Stub: []byte("if true then return end")}
	markup_rule       = EntryRule{Kind: KIND_MARKUP, Stub: []byte("<Ui></Ui>")}
	media_rule        = EntryRule{Kind: KIND_MEDIA}
	manifest_rule     = EntryRule{Kind: KIND_MANIFEST, Transform: package_toc}
	ENTRY_RULES       = map[string]EntryRule{".lua": script_rule, ".xml": markup_rule, ".toc": manifest_rule}
	MEDIA_EXTENSIONS  = []string{".tga", ".blp", ".png", ".jpg", ".jpeg", ".ogg", ".mp3", ".wav"}
	zip_entry_modtime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
)

func init() {
	for _, ext := range MEDIA_EXTENSIONS {
		ENTRY_RULES[ext] = media_rule
	}
}

func rule_for(path string) EntryRule {
	rule, present := ENTRY_RULES[strings.ToLower(filepath.Ext(path))]
	if !present {
		return EntryRule{Kind: KIND_OTHER}
	}
	return rule
}

// strips the colour escape around the title and, for releases, any development-only fields.
func package_toc(text string, release bool) string {
	text = toc_title.ReplaceAllString(text, "${1}${2}")
	if release {
		text = toc_dev_metadata.ReplaceAllString(text, "")
	}
	return text
}

// a file found beneath one of the packaged folders.
type SourceFile struct {
	Path    string // absolute path on disk
	Root    string // packaged folder the file was found in
	Ignored bool
}

// a file destined for the archive.
type Entry struct {
	Name    string // slash separated, relative to the common parent of all packaged folders
	Path    string
	Content []byte // replaces the file's content when set
}

// reads ignore patterns from `path`, one per line. a missing file has no patterns.
func read_ignore_file(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer fh.Close()

	pattern_list := []string{}
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pattern_list = append(pattern_list, line)
	}
	return pattern_list, scanner.Err()
}

func new_ignore_matcher(pattern_list []string) gitignore.Matcher {
	ps := []gitignore.Pattern{}
	for _, p := range pattern_list {
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	return gitignore.NewMatcher(ps)
}

// true when any component of the slash separated `rel` path is hidden.
func is_hidden(rel string) bool {
	for _, bit := range strings.Split(rel, "/") {
		if strings.HasPrefix(bit, ".") {
			return true
		}
	}
	return false
}

// walks each folder in `root_list`, returning every non-hidden file exactly once.
// `ignore` patterns apply to every folder in addition to the folder's own ignore file.
func collect_files(root_list []string, ignore []string) ([]SourceFile, error) {
	seen := map[string]bool{}
	file_list := []SourceFile{}
	for _, root := range root_list {
		own, err := read_ignore_file(filepath.Join(root, IGNORE_FILE))
		if err != nil {
			return nil, fmt.Errorf("failed to read ignore file in %s: %w", root, err)
		}
		matcher := new_ignore_matcher(flatten(ignore, own))

		// walks the resolved folder so a symlinked root is followed, paths are still reported beneath `root`
		real_root, err := filepath.EvalSymlinks(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
		}
		err = filepath.WalkDir(real_root, func(real_path string, d fs.DirEntry, walk_err error) error {
			if walk_err != nil {
				return walk_err
			}
			rel, err := filepath.Rel(real_root, real_path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				return nil
			}
			if is_hidden(rel) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			path := filepath.Join(root, filepath.FromSlash(rel))
			if d.Type()&fs.ModeSymlink != 0 {
				info, err := os.Stat(path)
				if err != nil || !info.Mode().IsRegular() {
					slog.Warn("skipping symlink, not a regular file", "path", path)
					return nil
				}
			} else if !d.Type().IsRegular() {
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			if seen[abs] {
				return nil
			}
			seen[abs] = true
			file_list = append(file_list, SourceFile{
				Path:    abs,
				Root:    root,
				Ignored: matcher.Match(strings.Split(rel, "/"), false),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}
	return file_list, nil
}

// decides if and how `file` is archived. the second value is false for files left out.
func entry_for(file SourceFile, parent string, release bool) (Entry, bool, error) {
	rule := rule_for(file.Path)
	if rule.Kind == KIND_OTHER {
		return Entry{}, false, nil
	}
	if file.Ignored && rule.Stub == nil {
		return Entry{}, false, nil
	}

	rel, err := filepath.Rel(parent, file.Path)
	if err != nil {
		return Entry{}, false, err
	}
	entry := Entry{Name: filepath.ToSlash(rel), Path: file.Path}

	switch {
	case file.Ignored:
		entry.Content = rule.Stub
	case rule.Transform != nil:
		text, err := slurp(file.Path)
		if err != nil {
			return Entry{}, false, fmt.Errorf("failed to read %s: %w", file.Path, err)
		}
		entry.Content = []byte(rule.Transform(text, release))
	}
	return entry, true, nil
}

func write_entry(zw *zip.Writer, entry Entry) error {
	header := &zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: zip_entry_modtime,
	}
	if info, err := os.Stat(entry.Path); err == nil {
		header.Modified = info.ModTime()
	}
	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	if entry.Content != nil {
		_, err = writer.Write(entry.Content)
		return err
	}

	src, err := os.Open(entry.Path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(writer, src)
	return err
}

// writes `entry_list` to a zip archive at `archive_path`, in order.
// the archive only appears at `archive_path` once it has been completely written.
func write_archive(archive_path string, entry_list []Entry) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(archive_path), "."+filepath.Base(archive_path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, entry := range entry_list {
		err = write_entry(zw, entry)
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", entry.Name, err)
		}
	}
	err = zw.Close()
	if err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	err = os.Rename(tmp.Name(), archive_path)
	if err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	slog.Debug("archive written", "path", archive_path, "entries", len(entry_list))
	return nil
}
