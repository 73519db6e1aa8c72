package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

var CURSE_URL = "https://wow.curseforge.com"

const USER_AGENT = "UpMod/2.0.0"

// uploads builds to CurseForge.
type Publisher struct {
	Client  *http.Client
	Token   string
	BaseURL string
	// commits and pushes the build folders once an upload is confirmed. nil skips this.
	VCS VersionControl
}

// a game version known to CurseForge, "1.13.5" => 7350
type GameVersion struct {
	ID   int64
	Name string
}

// the metadata part of an upload request
type UploadMetadata struct {
	Changelog     string  `json:"changelog"`
	ChangelogType string  `json:"changelogType"`
	DisplayName   string  `json:"displayName"`
	GameVersions  []int64 `json:"gameVersions"`
	ReleaseType   string  `json:"releaseType"`
}

func (p *Publisher) base_url() string {
	if p.BaseURL == "" {
		return CURSE_URL
	}
	return strings.TrimRight(p.BaseURL, "/")
}

func (p *Publisher) request(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", USER_AGENT)
	if p.Token != "" {
		req.Header.Set("X-Api-Token", p.Token)
	}
	return req, nil
}

// performs `req`, returning the response body of a 200 response.
func (p *Publisher) do(req *http.Request) (string, error) {
	slog.Debug("HTTP "+req.Method, "url", req.URL)
	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch '%s': %w", req.URL, err)
	}
	defer resp.Body.Close()

	content_bytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unsuccessful response from '%s': %d %s", req.URL, resp.StatusCode, strings.TrimSpace(string(content_bytes)))
	}
	return string(content_bytes), nil
}

// finds the numeric id of `project`.
// numeric projects are used as they are, slugs are looked up on the project's page.
func (p *Publisher) resolve_project_id(ctx context.Context, project string) (string, error) {
	project = strings.TrimSpace(project)
	if project == "" {
		return "", fmt.Errorf("no CurseForge project configured")
	}
	if digits_pattern.MatchString(project) {
		return project, nil
	}

	req, err := p.request(ctx, http.MethodGet, p.base_url()+"/projects/"+url.PathEscape(project), nil)
	if err != nil {
		return "", err
	}
	body, err := p.do(req)
	if err != nil {
		return "", fmt.Errorf("project %s does not exist: %w", project, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse project page: %w", err)
	}

	id := ""
	doc.Find("span").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != "Project ID" {
			return true
		}
		id = strings.TrimSpace(s.Next().Text())
		return false
	})
	if !digits_pattern.MatchString(id) {
		return "", fmt.Errorf("project %s does not exist", project)
	}
	return id, nil
}

// the catalog of game versions CurseForge accepts uploads for.
func (p *Publisher) game_versions(ctx context.Context) ([]GameVersion, error) {
	req, err := p.request(ctx, http.MethodGet, p.base_url()+"/api/game/versions", nil)
	if err != nil {
		return nil, err
	}
	body, err := p.do(req)
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("game version catalog is not valid JSON")
	}
	version_list := []GameVersion{}
	for _, item := range gjson.Parse(body).Array() {
		id, name := item.Get("id"), item.Get("name")
		if !id.Exists() || !name.Exists() {
			continue
		}
		version_list = append(version_list, GameVersion{ID: id.Int(), Name: name.String()})
	}
	return version_list, nil
}

// ids of the catalog entries named by `patch_list`.
// fails when the catalog doesn't know about every patch.
func match_game_versions(catalog []GameVersion, patch_list []PatchTarget) ([]int64, error) {
	wanted := map[string]bool{}
	for _, patch := range patch_list {
		wanted[patch.Version] = true
	}
	id_list := []int64{}
	found := map[string]bool{}
	for _, gv := range catalog {
		if wanted[gv.Name] && !found[gv.Name] {
			found[gv.Name] = true
			id_list = append(id_list, gv.ID)
		}
	}
	if len(id_list) < len(wanted) {
		missing := []string{}
		for _, patch := range patch_list {
			if !found[patch.Version] {
				missing = append(missing, patch.Version)
			}
		}
		return nil, fmt.Errorf("%w: only %d of %d patches known to CurseForge, missing %s",
			ErrIncompatiblePatchSet, len(id_list), len(wanted), strings.Join(unique(missing), ", "))
	}
	return id_list, nil
}

func upload_body(archive_path string, metadata UploadMetadata) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	meta_bytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, "", err
	}
	err = mw.WriteField("metadata", string(meta_bytes))
	if err != nil {
		return nil, "", err
	}

	fh, err := os.Open(archive_path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer fh.Close()
	part, err := mw.CreateFormFile("file", filepath.Base(archive_path))
	if err != nil {
		return nil, "", err
	}
	_, err = io.Copy(part, fh)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read archive: %w", err)
	}
	err = mw.Close()
	if err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}

// uploads the build's archive, returning the id CurseForge gave the new file.
// after a confirmed upload the build's folders are committed and pushed.
func (p *Publisher) Publish(ctx context.Context, build BuildResult) (int64, error) {
	project_id, err := p.resolve_project_id(ctx, build.Project)
	if err != nil {
		return 0, err
	}
	catalog, err := p.game_versions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch game versions: %w", err)
	}
	id_list, err := match_game_versions(catalog, build.Patches)
	if err != nil {
		return 0, err
	}

	metadata := UploadMetadata{
		Changelog:     build.Changelog,
		ChangelogType: "markdown",
		DisplayName:   build.Version.Number,
		GameVersions:  id_list,
		ReleaseType:   build.Version.Type,
	}
	body, content_type, err := upload_body(build.Archive, metadata)
	if err != nil {
		return 0, err
	}
	req, err := p.request(ctx, http.MethodPost, p.base_url()+"/api/projects/"+project_id+"/upload-file", body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", content_type)

	resp, err := p.do(req)
	if err != nil {
		return 0, fmt.Errorf("upload failed: %w", err)
	}
	file_id := gjson.Get(resp, "id")
	if !file_id.Exists() || file_id.Int() <= 0 {
		return 0, fmt.Errorf("upload not confirmed, unexpected response: %s", resp)
	}
	slog.Info("uploaded", "project", project_id, "file", file_id.Int(), "version", build.Version.Number)

	if p.VCS != nil {
		message := "Release " + build.Version.String()
		for _, dir := range build.Folders {
			err = p.VCS.Commit(ctx, dir, message)
			if err != nil {
				return file_id.Int(), err
			}
		}
	}
	return file_id.Int(), nil
}

// 123 => "123"
func i2s(i int64) string {
	return strconv.FormatInt(i, 10)
}
