package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// creates `files` (slash separated, relative to `root`) with the given contents.
func write_tree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func Test_clean_name(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"MyAddon":   "myaddon",
		"My-Addon":  "myaddon",
		"my_addon":  "myaddon",
		"My-_Addon": "myaddon",
	}
	for given, expected := range cases {
		assert.Equal(t, expected, clean_name(given), given)
	}
}

func Test_scan_installations(t *testing.T) {
	root := t.TempDir()
	write_tree(t, root, map[string]string{
		"_retail_/Interface/AddOns/Foo/.upmod":          "",
		"_retail_/Interface/AddOns/Foo/Foo.toc":         "",
		"_retail_/Interface/AddOns/Bar/Bar.toc":         "", // no marker config
		"_retail_/Interface/AddOns/foo_/.upmod":         "", // same identifier as 'Foo'
		"_classic_/Interface/Addons/Baz-Classic/.upmod": "",
		"retail/Interface/AddOns/Qux/.upmod":            "", // not an install
		"_ptr_/WTF/Config.wtf":                          "", // no Interface directory
		"_file_":                                        "",
	})

	install_list := scan_installations(root)
	require.Len(t, install_list, 3)

	assert.Equal(t, "classic", install_list[0].Name)
	require.Len(t, install_list[0].Addons, 1)
	assert.Equal(t, "Baz-Classic", install_list[0].Addons[0].ID)
	assert.True(t, install_list[0].Addons[0].HasConfig)

	assert.Equal(t, "ptr", install_list[1].Name)
	assert.Empty(t, install_list[1].Addons)

	assert.Equal(t, "retail", install_list[2].Name)
	require.Len(t, install_list[2].Addons, 1)
	assert.Equal(t, "Foo", install_list[2].Addons[0].ID)
	assert.Equal(t, filepath.Join(root, "_retail_", "Interface", "AddOns", "Foo"), install_list[2].Addons[0].Path)

	addon, found := find_addon(install_list, "baz_classic")
	assert.True(t, found)
	assert.Equal(t, "Baz-Classic", addon.ID)

	_, found = find_addon(install_list, "Bar")
	assert.False(t, found)
}

func Test_scan_installations__missing_root(t *testing.T) {
	assert.Empty(t, scan_installations(filepath.Join(t.TempDir(), "nope")))
}

func Test_scan_installations__symlinked_addon(t *testing.T) {
	root := t.TempDir()
	repos := t.TempDir()
	write_tree(t, root, map[string]string{"_retail_/Interface/AddOns/Bar/.upmod": ""})
	write_tree(t, repos, map[string]string{"Foo/.upmod": "", "Foo/Foo.toc": ""})
	require.NoError(t, os.Symlink(filepath.Join(repos, "Foo"), filepath.Join(root, "_retail_", "Interface", "AddOns", "Foo")))

	install_list := scan_installations(root)
	require.Len(t, install_list, 1)
	require.Len(t, install_list[0].Addons, 2)
	assert.Equal(t, "Bar", install_list[0].Addons[0].ID)
	assert.Equal(t, "Foo", install_list[0].Addons[1].ID)

	addon, found := find_addon(install_list, "foo")
	assert.True(t, found)
	assert.Equal(t, filepath.Join(root, "_retail_", "Interface", "AddOns", "Foo"), addon.Path)
}
