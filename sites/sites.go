package sites

import (
	"context"
	"errors"
	"regexp"
	"time"

	"tankobon/downloader"
)

// Type identifies which source site a series belongs to.
type Type string

const (
	TypeAsura   Type = "asura"
	TypeKatana  Type = "katana"
	TypeWebtoon Type = "webtoon"
)

// Chapter is one installment of a series as discovered on a site. Immutable
// once produced; identity is ID within its series.
type Chapter struct {
	ID    string // numeric, possibly fractional ("10.5")
	Title string
	URL   string
}

// Adapter is the per-site capability: derive a display name from the series
// URL, list chapters, and resolve a chapter page into ordered image URLs.
//
// ListChapters returns chapters in ascending chapter-id order and an empty
// slice (not an error) when the page is reachable but holds no recognizable
// chapter list. FetchChapterImages returns downloader.ErrNoImagesFound when
// every extraction strategy comes up empty.
type Adapter interface {
	Name() Type
	DeriveSeriesName(seriesURL string) string
	ListChapters(ctx context.Context, seriesURL string) ([]Chapter, error)
	FetchChapterImages(ctx context.Context, chapterURL string) ([]string, error)
}

// ErrInvalidSeriesURL means the URL matches no supported site.
var ErrInvalidSeriesURL = errors.New("unsupported series URL")

// Site markup changes often, so each adapter runs a prioritized cascade of
// extraction strategies and takes the first non-empty result.
type chapterStrategy func(html, baseURL string) []Chapter
type imageStrategy func(html string) []string

func firstChapters(html, baseURL string, strategies []chapterStrategy) []Chapter {
	for _, strategy := range strategies {
		if chapters := strategy(html, baseURL); len(chapters) > 0 {
			return chapters
		}
	}
	return nil
}

func firstImages(html string, strategies []imageStrategy) []string {
	for _, strategy := range strategies {
		if urls := strategy(html); len(urls) > 0 {
			return urls
		}
	}
	return nil
}

var (
	asuraPattern   = regexp.MustCompile(`^https?://asuracomic\.net/series/[a-zA-Z0-9-_]+/?$`)
	katanaPattern  = regexp.MustCompile(`^https?://mangakatana\.com/manga/[a-zA-Z0-9-_.]+/?$`)
	webtoonPattern = regexp.MustCompile(`^https?://www\.webtoons\.com/[a-z]{2}/[^/]+/[^/]+/list\?title_no=\d+$`)
)

var defaultFetcher = downloader.NewHTTPFetcher(30 * time.Second)

// Detect returns the adapter for a series URL, or ErrInvalidSeriesURL when no
// site claims it. Pure pattern matching, no network access.
func Detect(rawURL string) (Adapter, error) {
	switch {
	case asuraPattern.MatchString(rawURL):
		return NewAsura(defaultFetcher), nil
	case katanaPattern.MatchString(rawURL):
		return NewKatana(defaultFetcher), nil
	case webtoonPattern.MatchString(rawURL):
		return NewWebtoon(defaultFetcher), nil
	default:
		return nil, ErrInvalidSeriesURL
	}
}
