package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_title_case(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"title case": "Title Case",
		"Title case": "Title Case",
		"Title Case": "Title Case",
		"title-case": "Title-Case",
		"title_case": "Title_case",
		"TITLE CASE": "Title Case",
	}
	for given, expected := range cases {
		assert.Equal(t, expected, title_case(given))
	}
}

func Test_unique(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, unique([]string{"b", "a", "b", "c", "a"}))
	assert.Nil(t, unique([]string{}))
}

func Test_common_parent(t *testing.T) {
	cases := map[string][]string{
		"":             {},
		"/a/b":         {"/a/b"},
		"/a":           {"/a/b", "/a/c"},
		"/a/b/":        {"/a/b/c", "/a/b/d/e"},
		"/":            {"/a", "/b"},
		"/games/addon": {"/games/addon", "/games/addon/libs"},
	}
	for expected, given := range cases {
		assert.Equal(t, filepath.Clean(expected), filepath.Clean(common_parent(given)), given)
	}
}

func Test_elide_bom(t *testing.T) {
	b, err := elide_bom([]byte("\uFEFF## Title: Foo"))
	require.NoError(t, err)
	assert.Equal(t, "## Title: Foo", string(b))

	b, err = elide_bom([]byte("## Title: Foo"))
	require.NoError(t, err)
	assert.Equal(t, "## Title: Foo", string(b))
}

func Test_spit_if_changed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Foo.lua")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	changed, err := spit_if_changed(path, "a", "a")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = spit_if_changed(path, "a", "b")
	require.NoError(t, err)
	assert.True(t, changed)
	text, err := slurp(path)
	require.NoError(t, err)
	assert.Equal(t, "b", text)
}
