package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var test_patches = []PatchTarget{
	{Flavor: "mainline", Version: "9.0.2", Interface: "90002"},
	{Flavor: "classic", Version: "1.13.6", Interface: "11306"},
	{Flavor: "bcc", Version: "2.5.1", Interface: "20501"},
}

func Test_toc_flavor(t *testing.T) {
	cases := map[string]string{
		"Foo.toc":               "",
		"Foo_Classic.toc":       "classic",
		"Foo-Vanilla.toc":       "classic",
		"Foo-TBC.toc":           "bcc",
		"Foo_Wrath.toc":         "wrath",
		"Foo-WOTLKC.toc":        "wrath",
		"/a/b/Foo-Mainline.toc": "mainline",
		"Foo_Bar_BCC.toc":       "bcc",
	}
	for given, expected := range cases {
		assert.Equal(t, expected, toc_flavor(given), given)
	}
}

func Test_toc_interfaces(t *testing.T) {
	cases := map[string][]string{
		"Foo.toc":         {"90002", "11306", "20501"},
		"Foo_Classic.toc": {"11306"},
		"Foo-TBC.toc":     {"20501"},
		"Foo_Wrath.toc":   {"90002", "11306", "20501"}, // no wrath patch, falls back to all of them
		"Foo_Options.toc": {"90002", "11306", "20501"},
	}
	for given, expected := range cases {
		assert.Equal(t, expected, toc_interfaces(given, test_patches), given)
	}

	dupes := []PatchTarget{{Version: "1.13.5", Interface: "11305"}, {Version: "1.13.6", Interface: "11305"}}
	assert.Equal(t, []string{"11305"}, toc_interfaces("Foo.toc", dupes))
}

func Test_rewrite_toc(t *testing.T) {
	r := Rewrite{Version: Version{Number: "1.2.3", Type: BETA}, Patches: test_patches}
	given := "## Interface: 11305\n## Title: Foo\n## Version: 1.0.0\n## Notes: Interface: 123\n"
	expected := "## Interface: 90002, 11306, 20501\n## Title: Foo\n## Version: 1.2.3-beta\n## Notes: Interface: 123\n"
	once := r.toc("Foo.toc", given)
	assert.Equal(t, expected, once)

	// idempotent
	assert.Equal(t, once, r.toc("Foo.toc", once))

	classic := r.toc("Foo_Classic.toc", "## Interface: 90002, 11306\r\n## Version: 1.2.3-beta\r\n")
	assert.Equal(t, "## Interface: 11306\r\n## Version: 1.2.3-beta\r\n", classic)
}

func Test_rewrite_lua(t *testing.T) {
	patrons := "{title='Gold',people={'Amy'}}"
	r := Rewrite{Patrons: &patrons, Year: 2026}
	given := "-- Copyright (c) 2018-2019 Someone\n" +
		"local PATRONS = {} -- generated patron list\n" +
		"local other = {} -- something else\n"
	expected := "-- Copyright (c) 2018-2026 Someone\n" +
		"local PATRONS = {{title='Gold',people={'Amy'}}} -- generated patron list\n" +
		"local other = {} -- something else\n"
	once := r.lua(given)
	assert.Equal(t, expected, once)
	assert.Equal(t, once, r.lua(once))

	// no patron list configured, existing list is kept
	r.Patrons = nil
	assert.Equal(t, expected, r.lua(expected))
}

func Test_rewrite_lua__literal_replacement(t *testing.T) {
	patrons := "{title='$1',people={'Amy'}}"
	r := Rewrite{Patrons: &patrons, Year: 2026}
	actual := r.lua("local P = {} -- generated patron list")
	assert.Equal(t, "local P = {{title='$1',people={'Amy'}}} -- generated patron list", actual)
}

func Test_rewrite_files(t *testing.T) {
	dir := t.TempDir()
	write_tree(t, dir, map[string]string{
		"Foo/Foo.toc":     "## Interface: 11305\n## Version: 1.0.0\n",
		"Foo/Foo.lua":     "-- Copyright 2020-2021 Me\n",
		"Foo/Foo.xml":     "<Ui>Copyright 2020-2021</Ui>",
		"Foo/Media/a.tga": "binary",
	})
	path_list := []string{
		filepath.Join(dir, "Foo", "Foo.toc"),
		filepath.Join(dir, "Foo", "Foo.lua"),
		filepath.Join(dir, "Foo", "Foo.xml"),
		filepath.Join(dir, "Foo", "Media", "a.tga"),
	}
	r := Rewrite{Version: Version{Number: "1.1.0", Type: RELEASE}, Patches: test_patches[:1], Year: 2026}

	changed, err := rewrite_files(context.Background(), r, path_list)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	toc, err := os.ReadFile(path_list[0])
	require.NoError(t, err)
	assert.Equal(t, "## Interface: 90002\n## Version: 1.1.0\n", string(toc))
	lua, err := os.ReadFile(path_list[1])
	require.NoError(t, err)
	assert.Equal(t, "-- Copyright 2020-2026 Me\n", string(lua))
	xml, err := os.ReadFile(path_list[2])
	require.NoError(t, err)
	assert.Equal(t, "<Ui>Copyright 2020-2021</Ui>", string(xml))

	changed, err = rewrite_files(context.Background(), r, path_list)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
}

func Test_rewrite_files__missing_file(t *testing.T) {
	r := Rewrite{Version: Version{Number: "1.1.0", Type: RELEASE}, Year: 2026}
	_, err := rewrite_files(context.Background(), r, []string{filepath.Join(t.TempDir(), "Gone.lua")})
	assert.Error(t, err)
}
