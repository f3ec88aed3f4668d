package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Solo Leveling", SanitizeName("Solo Leveling"))
	assert.Equal(t, "WhatIf", SanitizeName(`What/If?`))
	assert.Equal(t, "AB", SanitizeName(`A\:*?"<>|B`))

	// a name that sanitizes to nothing is returned unchanged
	assert.Equal(t, `???`, SanitizeName(`???`))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Solo Leveling", TitleCase("solo-leveling"))
	assert.Equal(t, "One Piece", TitleCase("one-piece"))
}

func TestChapterArchivePath(t *testing.T) {
	got := ChapterArchivePath("/downloads", "Solo Leveling", "10.5")
	assert.Equal(t, filepath.Join("/downloads", "Solo Leveling", "Chapter 10.5.cbz"), got)

	got = ChapterArchivePath("/downloads", `What/If?`, "1")
	assert.Equal(t, filepath.Join("/downloads", "WhatIf", "Chapter 1.cbz"), got)
}

func TestArchiveExists(t *testing.T) {
	dir := t.TempDir()

	assert.False(t, ArchiveExists(filepath.Join(dir, "missing.cbz")))

	empty := filepath.Join(dir, "empty.cbz")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	assert.False(t, ArchiveExists(empty))

	full := filepath.Join(dir, "full.cbz")
	require.NoError(t, os.WriteFile(full, []byte("data"), 0644))
	assert.True(t, ArchiveExists(full))

	assert.False(t, ArchiveExists(dir))
}

func TestLocalChapterList(t *testing.T) {
	dir := t.TempDir()

	files, err := LocalChapterList(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Chapter 1.cbz"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Chapter 2.cbz"), []byte("b"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("c"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.cbz"), 0755))

	files, err = LocalChapterList(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Chapter 1.cbz", "Chapter 2.cbz"}, files)
}
