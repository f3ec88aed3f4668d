package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"tankobon/sites"
)

// ChapterRecord remembers one downloaded chapter.
type ChapterRecord struct {
	DownloadDate time.Time `json:"download_date"`
	SourceURL    string    `json:"source_url"`
}

// Series is the durable per-series record. The known-chapter set drives both
// idempotent skip checks and new-chapter diffing.
type Series struct {
	Name        string                   `json:"name"`
	URL         string                   `json:"url"`
	Site        sites.Type               `json:"site"`
	AddedDate   time.Time                `json:"added_date"`
	LastUpdated time.Time                `json:"last_updated"`
	Chapters    map[string]ChapterRecord `json:"chapters"`
}

type historyFile struct {
	Series map[string]*Series `json:"series"`
}

// Store persists download history as a JSON file, flushed on every mutation.
type Store struct {
	mu     sync.Mutex
	path   string
	series map[string]*Series
}

// Open loads the history file at path, creating an empty store when the file
// does not exist. An unreadable or unparseable file is never fatal: it is
// renamed aside (".corrupt-<ts>" suffix) and history restarts empty.
func Open(path string) (*Store, error) {
	store := &Store{path: path, series: make(map[string]*Series)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		quarantine(path, err)
		return store, nil
	}

	var parsed historyFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		quarantine(path, err)
		return store, nil
	}

	if parsed.Series != nil {
		store.series = parsed.Series
	}
	for name, rec := range store.series {
		if rec.Chapters == nil {
			rec.Chapters = make(map[string]ChapterRecord)
		}
		if rec.Name == "" {
			rec.Name = name
		}
	}
	return store, nil
}

// quarantine moves a bad history file aside so the next save starts fresh.
// Best effort: a failed rename is logged and otherwise ignored.
func quarantine(path string, cause error) {
	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	log.Printf("[History] Unreadable history file, moving aside to %s: %v", aside, cause)
	if err := os.Rename(path, aside); err != nil {
		log.Printf("[History] Failed to quarantine history file: %v", err)
	}
}

// RecordSeries creates or refreshes a series record.
func (s *Store) RecordSeries(name, url string, site sites.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rec, ok := s.series[name]
	if !ok {
		rec = &Series{
			Name:      name,
			AddedDate: now,
			Chapters:  make(map[string]ChapterRecord),
		}
		s.series[name] = rec
	}
	rec.URL = url
	rec.Site = site
	rec.LastUpdated = now

	return s.flushLocked()
}

// RecordChapterDownloaded adds a chapter to a series' known set.
func (s *Store) RecordChapterDownloaded(seriesName, chapterID string, site sites.Type, sourceURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rec, ok := s.series[seriesName]
	if !ok {
		rec = &Series{
			Name:      seriesName,
			Site:      site,
			AddedDate: now,
			Chapters:  make(map[string]ChapterRecord),
		}
		s.series[seriesName] = rec
	}
	rec.Chapters[chapterID] = ChapterRecord{DownloadDate: now, SourceURL: sourceURL}
	rec.LastUpdated = now

	return s.flushLocked()
}

// GetSeries returns a copy of a series record.
func (s *Store) GetSeries(name string) (Series, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.series[name]
	if !ok {
		return Series{}, false
	}

	copied := *rec
	copied.Chapters = make(map[string]ChapterRecord, len(rec.Chapters))
	for id, ch := range rec.Chapters {
		copied.Chapters[id] = ch
	}
	return copied, true
}

// ListSeries returns all tracked series names, sorted.
func (s *Store) ListSeries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeleteSeries removes a series record. Deleting an unknown series is a no-op.
func (s *Store) DeleteSeries(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.series[name]; !ok {
		return nil
	}
	delete(s.series, name)
	return s.flushLocked()
}

// DiffNewChapters re-lists a series' chapters through the given lister and
// returns those absent from the known set, in the lister's order. Purely
// additive: chapters the live site no longer shows stay in history.
func (s *Store) DiffNewChapters(ctx context.Context, name string, list func(ctx context.Context, seriesURL string) ([]sites.Chapter, error)) ([]sites.Chapter, error) {
	s.mu.Lock()
	rec, ok := s.series[name]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("unknown series: %s", name)
	}
	seriesURL := rec.URL
	known := make(map[string]struct{}, len(rec.Chapters))
	for id := range rec.Chapters {
		known[id] = struct{}{}
	}
	s.mu.Unlock()

	live, err := list(ctx, seriesURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters for %s: %w", name, err)
	}

	var fresh []sites.Chapter
	for _, ch := range live {
		if _, downloaded := known[ch.ID]; !downloaded {
			fresh = append(fresh, ch)
		}
	}
	return fresh, nil
}

func (s *Store) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(historyFile{Series: s.series}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
