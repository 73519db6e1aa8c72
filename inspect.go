package main

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/snabb/httpreaderat"

	bufra "github.com/avvmoto/buf-readerat"
)

// the interesting fields of a .toc file found in a published archive
type TocSummary struct {
	Name      string // "MyAddon/MyAddon.toc"
	Title     string
	Version   string
	Interface string
}

// true for .toc files directly within an addon folder, "Foo/Foo.toc", "Foo/Foo_Classic.toc"
func is_toc_file(filename string) bool {
	bits := strings.SplitN(filename, "/", 2)
	if len(bits) != 2 {
		return false
	}
	prefix, rest := bits[0], bits[1] // "Foo/Bar.toc" => "Foo", "Bar.toc"
	matches := toc_name.FindStringSubmatch(rest)
	if len(matches) < 2 {
		return false
	}
	// "Foo_Bar.toc" for addon "Foo_Bar" has no flavor
	return prefix == matches[1] || prefix+".toc" == rest
}

// parses the "## Key: Value" header lines of a .toc file.
func parse_toc_file(toc_bytes []byte) (map[string]string, error) {
	toc_bytes, err := elide_bom(toc_bytes)
	if err != nil {
		return nil, err
	}
	keyvals := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(toc_bytes))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "##") {
			continue
		}
		key, val, found := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "##")), ":")
		if !found {
			continue
		}
		keyvals[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return keyvals, scanner.Err()
}

// returns a map of zipped-filename=>uncompressed-bytes of files within a zipfile at `url` whose filenames match `zipped_file_filter`.
// only the parts of the remote file needed are fetched, using HTTP Range requests.
func download_zip(ctx context.Context, client *http.Client, url string, zipped_file_filter func(string) bool) (map[string][]byte, error) {
	empty_response := map[string][]byte{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return empty_response, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", USER_AGENT)

	http_readerat, err := httpreaderat.New(client, req, nil)
	if err != nil {
		return empty_response, fmt.Errorf("failed to create a HTTPReaderAt: %w", err)
	}

	// the zip directory sits at the end of the file and entries are read in small chunks,
	// buffering keeps the number of requests down.
	buffer_size := 1024 * 1024 // 1MiB
	buffered_http_readerat := bufra.NewBufReaderAt(http_readerat, buffer_size)
	zip_rdr, err := zip.NewReader(buffered_http_readerat, http_readerat.Size())
	if err != nil {
		return empty_response, fmt.Errorf("failed to create a zip reader: %w", err)
	}

	file_bytes := map[string][]byte{}
	for _, zipped_file_entry := range zip_rdr.File {
		if !zipped_file_filter(zipped_file_entry.Name) {
			continue
		}
		slog.Debug("found zipped file name match", "filename", zipped_file_entry.Name)

		fh, err := zipped_file_entry.Open()
		if err != nil {
			return empty_response, fmt.Errorf("failed to open zipped file entry: %w", err)
		}
		bl, err := io.ReadAll(fh)
		fh.Close()
		if err != nil {
			return empty_response, fmt.Errorf("failed to read zipped file entry: %w", err)
		}
		file_bytes[zipped_file_entry.Name] = bl
	}
	return file_bytes, nil
}

// reads the .toc files of a published archive without downloading all of it.
func inspect_remote_archive(ctx context.Context, client *http.Client, url string) ([]TocSummary, error) {
	toc_file_map, err := download_zip(ctx, client, url, is_toc_file)
	if err != nil {
		return nil, fmt.Errorf("failed to process remote zip file: %w", err)
	}

	summary_list := []TocSummary{}
	for name, toc_bytes := range toc_file_map {
		keyvals, err := parse_toc_file(toc_bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		summary_list = append(summary_list, TocSummary{
			Name:      name,
			Title:     keyvals["Title"],
			Version:   keyvals["Version"],
			Interface: keyvals["Interface"],
		})
	}
	slices.SortFunc(summary_list, func(a, b TocSummary) int {
		return strings.Compare(a.Name, b.Name)
	})
	return summary_list, nil
}
