package sites

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tankobon/downloader"
	"tankobon/parser"
)

// Katana scrapes mangakatana.com. Chapter pages hide the image list in a
// JavaScript variable (`var thzq = [...]`), with a lazy-loaded fallback
// gallery in the markup.
type Katana struct {
	fetcher downloader.Fetcher
}

func NewKatana(fetcher downloader.Fetcher) *Katana {
	return &Katana{fetcher: fetcher}
}

func (k *Katana) Name() Type { return TypeKatana }

var (
	katanaSlugPattern    = regexp.MustCompile(`/manga/([^/]+)`)
	katanaChapterPattern = regexp.MustCompile(`Chapter\s+(\d+(?:\.\d+)?)`)
	katanaImageVar       = regexp.MustCompile(`(?s)var\s+thzq\s*=\s*\[(.*?)\];`)
)

func (k *Katana) DeriveSeriesName(seriesURL string) string {
	match := katanaSlugPattern.FindStringSubmatch(seriesURL)
	if match == nil {
		return seriesURL
	}
	// slugs carry a numeric disambiguation suffix: "one-piece.19234"
	slug := regexp.MustCompile(`\.\d+$`).ReplaceAllString(match[1], "")
	return parser.TitleCase(slug)
}

func (k *Katana) ListChapters(ctx context.Context, seriesURL string) ([]Chapter, error) {
	page, err := k.fetcher.Get(ctx, seriesURL, katanaHeaders())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series page: %w", err)
	}

	chapters := firstChapters(string(page), seriesURL, []chapterStrategy{
		katanaChapterTable,
		katanaChapterAnchors,
	})
	parser.SortByChapterID(chapters, func(c Chapter) string { return c.ID })
	return chapters, nil
}

func (k *Katana) FetchChapterImages(ctx context.Context, chapterURL string) ([]string, error) {
	page, err := k.fetcher.Get(ctx, chapterURL, katanaHeaders())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chapter page: %w", err)
	}

	urls := firstImages(string(page), []imageStrategy{
		katanaScriptImages,
		katanaGalleryImages,
	})
	if len(urls) == 0 {
		return nil, downloader.ErrNoImagesFound
	}
	return urls, nil
}

func katanaHeaders() map[string]string {
	return map[string]string{
		"Referer":    "https://mangakatana.com/",
		"Connection": "keep-alive",
	}
}

// katanaChapterTable parses the chapter table on the series page.
func katanaChapterTable(page, baseURL string) []Chapter {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var chapters []Chapter
	doc.Find("div.chapters table tbody tr").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("td div a").First()
		href, exists := link.Attr("href")
		if !exists {
			return
		}
		text := strings.TrimSpace(link.Text())
		match := katanaChapterPattern.FindStringSubmatch(text)
		if match == nil {
			return
		}
		chapters = append(chapters, Chapter{ID: match[1], Title: text, URL: href})
	})
	return chapters
}

// katanaChapterAnchors is the token-scan fallback over every chapter link.
func katanaChapterAnchors(page, baseURL string) []Chapter {
	var chapters []Chapter
	seen := make(map[string]struct{})
	for _, a := range scanAnchors(page) {
		if !strings.Contains(a.href, "mangakatana.com/manga/") {
			continue
		}
		match := katanaChapterPattern.FindStringSubmatch(a.text)
		if match == nil {
			continue
		}
		if _, dup := seen[match[1]]; dup {
			continue
		}
		seen[match[1]] = struct{}{}
		chapters = append(chapters, Chapter{ID: match[1], Title: strings.TrimSpace(a.text), URL: a.href})
	}
	return chapters
}

// katanaScriptImages pulls the image list out of the thzq script variable.
func katanaScriptImages(page string) []string {
	match := katanaImageVar.FindStringSubmatch(page)
	if match == nil {
		return nil
	}

	var urls []string
	for _, raw := range strings.Split(match[1], ",") {
		cleaned := strings.Trim(strings.TrimSpace(raw), "'\"")
		if katanaUsableImageURL(cleaned) {
			urls = append(urls, cleaned)
		}
	}
	return urls
}

// katanaGalleryImages parses the lazy-load gallery markup.
func katanaGalleryImages(page string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var urls []string
	doc.Find("div#imgs div.uk-grid.uk-grid-collapse div.wrap_img img").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("data-src", "")
		if katanaUsableImageURL(src) {
			urls = append(urls, src)
		}
	})
	return urls
}

// The script array pads with placeholder entries; keep real URLs only.
func katanaUsableImageURL(u string) bool {
	return strings.Contains(u, "http") && !strings.Contains(u, "about:blank") && !strings.Contains(u, "#")
}
