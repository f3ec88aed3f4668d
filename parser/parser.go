package parser

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// SanitizeName strips characters that are unsafe in directory names from a
// series name. The sanitized name becomes the per-series folder under the
// download root.
func SanitizeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return -1
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return name
	}
	return cleaned
}

// TitleCase converts a slug fragment like "solo-leveling" to "Solo Leveling".
func TitleCase(slug string) string {
	return titleCaser.String(strings.ReplaceAll(slug, "-", " "))
}

// ChapterArchivePath returns the deterministic archive location for a chapter:
// {root}/{sanitized series}/Chapter {id}.cbz
func ChapterArchivePath(root, seriesName, chapterID string) string {
	return filepath.Join(root, SanitizeName(seriesName), "Chapter "+chapterID+".cbz")
}

// ArchiveExists reports whether a non-empty archive is present at path.
// Always re-stats: files may be added or removed externally between checks.
func ArchiveExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// LocalChapterList returns the archive file names already present in a series
// directory. A missing directory is not an error: nothing downloaded yet.
func LocalChapterList(seriesDir string) ([]string, error) {
	expanded, err := ExpandPath(seriesDir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(expanded)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	fileList := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".cbz") {
			fileList = append(fileList, entry.Name())
		}
	}

	return fileList, nil
}

// ExpandPath expands ~ to the user's home directory, or returns the path as-is
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(homeDir, path[2:]), nil
	}
	return path, nil
}
