package pathutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"leading slash", "/icons/icon.png", "icons/icon.png"},
		{"trailing slash", "icons/", "icons"},
		{"empty string", "", "."},
		{"root slash", "/", "."},
		{"simple", "pack.mcmeta", "pack.mcmeta"},
		{"nested", "minecraft/lang/en_us.json", "minecraft/lang/en_us.json"},
		{"internal double slashes", "minecraft//lang", "minecraft/lang"},
		{"only slashes", "///", "."},
		// Dot segments survive for Clean to reject
		{"dotdot in middle", "a/../b", "a/../b"},
		{"dotdot at start", "../etc", "../etc"},
		{"dot in middle", "a/./b", "a/./b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "icons/icon.png", want: "icons/icon.png"},
		{name: "leading slash stripped", input: "/icons/icon.png", want: "icons/icon.png"},
		{name: "double slash collapsed", input: "sounds//ambient/cave1.ogg", want: "sounds/ambient/cave1.ogg"},
		{name: "dotdot at start", input: "../escape.txt", wantErr: true},
		{name: "dotdot in middle", input: "a/../../b", wantErr: true},
		{name: "dotdot only", input: "..", wantErr: true},
		{name: "dot segment", input: "a/./b", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "only slashes", input: "//", wantErr: true},
		{name: "backslash", input: `a\..\b`, wantErr: true},
		{name: "nul byte", input: "a\x00b", wantErr: true},
		{name: "dots inside element", input: "a/..b/c..", want: "a/..b/c.."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Clean(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsafe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	got, err := Join(root, "minecraft/lang/en_us.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "minecraft", "lang", "en_us.json"), got)

	_, err = Join(root, "../../etc/passwd")
	require.ErrorIs(t, err, ErrUnsafe)
}

func TestHasPrefix(t *testing.T) {
	t.Parallel()

	assert.True(t, HasPrefix("icons/a.png", ""))
	assert.True(t, HasPrefix("icons/a.png", DirPrefix("icons")))
	assert.True(t, HasPrefix("icons/a.png", DirPrefix("/icons/")))
	assert.False(t, HasPrefix("iconsx/a.png", DirPrefix("icons")))
	assert.Equal(t, "", DirPrefix("."))
}

func TestObjectPath(t *testing.T) {
	t.Parallel()

	got, err := ObjectPath("objects", "abcdef1234", DefaultShardPrefixLen)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("objects", "ab", "abcdef1234"), got)

	got, err = ObjectPath("objects", "abcdef1234", 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("objects", "abcdef1234"), got)

	for _, bad := range []string{"", "a", "../x", "ab/cd", `ab\cd`} {
		_, err := ObjectPath("objects", bad, DefaultShardPrefixLen)
		assert.ErrorIs(t, err, ErrBadHash, bad)
	}
}
