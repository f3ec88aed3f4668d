package sites

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tankobon/downloader"
	"tankobon/parser"
)

// Asura scrapes asuracomic.net. The series page is plain HTML, but chapter
// pages are assembled client side, so image extraction falls back to a
// headless browser render when the static page yields nothing.
type Asura struct {
	fetcher downloader.Fetcher
	render  func(ctx context.Context, url, waitSelector string) (string, error)
}

func NewAsura(fetcher downloader.Fetcher) *Asura {
	return &Asura{fetcher: fetcher, render: downloader.RenderPage}
}

func (a *Asura) Name() Type { return TypeAsura }

// asuraChapterText splits "14.5 The Tower" into id and title.
var asuraChapterText = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(.*)$`)

// DeriveSeriesName extracts the display name from the series slug. Slugs end
// in a random suffix token ("solo-leveling-a1b2c3") that gets dropped.
func (a *Asura) DeriveSeriesName(seriesURL string) string {
	parsed, err := url.Parse(seriesURL)
	if err != nil {
		return seriesURL
	}
	slug := path.Base(parsed.Path)
	if idx := strings.LastIndex(slug, "-"); idx > 0 {
		slug = slug[:idx]
	}
	return parser.TitleCase(slug)
}

func (a *Asura) ListChapters(ctx context.Context, seriesURL string) ([]Chapter, error) {
	page, err := a.fetcher.Get(ctx, seriesURL, map[string]string{"Referer": "https://asuracomic.net/"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series page: %w", err)
	}

	chapters := firstChapters(string(page), seriesURL, []chapterStrategy{
		asuraChapterContainer,
		asuraChapterAnchors,
	})
	parser.SortByChapterID(chapters, func(c Chapter) string { return c.ID })
	return chapters, nil
}

func (a *Asura) FetchChapterImages(ctx context.Context, chapterURL string) ([]string, error) {
	strategies := []imageStrategy{asuraPageImages, asuraPageImagesLoose}

	page, fetchErr := a.fetcher.Get(ctx, chapterURL, map[string]string{"Referer": "https://asuracomic.net/"})
	if fetchErr == nil {
		if urls := firstImages(string(page), strategies); len(urls) > 0 {
			return urls, nil
		}
	}

	rendered, renderErr := a.render(ctx, chapterURL, "img.object-cover")
	if renderErr == nil {
		if urls := firstImages(rendered, strategies); len(urls) > 0 {
			return urls, nil
		}
	}

	if fetchErr != nil && renderErr != nil {
		return nil, fmt.Errorf("failed to fetch chapter page: %w", fetchErr)
	}
	return nil, downloader.ErrNoImagesFound
}

// asuraChapterContainer parses the chapter sidebar the site currently ships.
func asuraChapterContainer(page, baseURL string) []Chapter {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var chapters []Chapter
	container := doc.Find("div.pl-4.pr-2.pb-4.overflow-y-auto")
	container.Find("div.relative").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a").First()
		href, exists := link.Attr("href")
		if !exists {
			return
		}
		if ch, ok := asuraChapterFromText(link.Text(), href); ok {
			chapters = append(chapters, ch)
		}
	})
	return chapters
}

// asuraChapterAnchors is the token-scan fallback: any anchor pointing at a
// chapter page whose text carries a chapter number.
func asuraChapterAnchors(page, baseURL string) []Chapter {
	var chapters []Chapter
	seen := make(map[string]struct{})
	for _, a := range scanAnchors(page) {
		if !strings.Contains(a.href, "/chapter/") {
			continue
		}
		ch, ok := asuraChapterFromText(a.text, a.href)
		if !ok {
			continue
		}
		if _, dup := seen[ch.ID]; dup {
			continue
		}
		seen[ch.ID] = struct{}{}
		chapters = append(chapters, ch)
	}
	return chapters
}

func asuraChapterFromText(text, href string) (Chapter, bool) {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "Chapter"))
	match := asuraChapterText.FindStringSubmatch(text)
	if match == nil {
		return Chapter{}, false
	}
	return Chapter{
		ID:    match[1],
		Title: strings.TrimSpace(match[2]),
		URL:   asuraAbsoluteURL(href),
	}, true
}

func asuraAbsoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return "https://asuracomic.net" + href
	}
	return "https://asuracomic.net/series/" + href
}

// asuraPageImages keeps only the real chapter pages: images served from the
// media CDN and tagged as chapter pages.
func asuraPageImages(page string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var urls []string
	doc.Find("div.w-full.mx-auto.center img.object-cover").Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		alt := strings.ToLower(s.AttrOr("alt", ""))
		if asuraMediaURL(src) && strings.Contains(alt, "chapter page") {
			urls = append(urls, src)
		}
	})
	return urls
}

// asuraPageImagesLoose drops the alt-text requirement and scans raw img tags.
func asuraPageImagesLoose(page string) []string {
	var urls []string
	for _, src := range scanImageAttrs(page, "src") {
		if asuraMediaURL(src) {
			urls = append(urls, src)
		}
	}
	return urls
}

func asuraMediaURL(src string) bool {
	return strings.Contains(src, "gg.asuracomic.net") && strings.Contains(src, "/storage/media/")
}
