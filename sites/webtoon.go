package sites

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"

	"tankobon/downloader"
	"tankobon/parser"
)

// Webtoon scrapes webtoons.com. Episode listings paginate, so the chapter
// list goes through a colly collector; episode pages carry the full image
// list in `#_imageList` with lazy-load URLs in data-url.
type Webtoon struct {
	fetcher downloader.Fetcher

	// transport overrides the collector's transport in tests.
	transport http.RoundTripper
}

func NewWebtoon(fetcher downloader.Fetcher) *Webtoon {
	return &Webtoon{fetcher: fetcher}
}

func (w *Webtoon) Name() Type { return TypeWebtoon }

var (
	webtoonSlugPattern    = regexp.MustCompile(`/([^/]+)/list`)
	webtoonEpisodePattern = regexp.MustCompile(`episode_no=(\d+)`)
)

func (w *Webtoon) DeriveSeriesName(seriesURL string) string {
	match := webtoonSlugPattern.FindStringSubmatch(seriesURL)
	if match == nil {
		return seriesURL
	}
	return parser.TitleCase(match[1])
}

func (w *Webtoon) ListChapters(ctx context.Context, seriesURL string) ([]Chapter, error) {
	chapters, err := w.collectEpisodes(seriesURL)
	if err != nil || len(chapters) == 0 {
		// Collector came up empty: re-fetch plain and token-scan for
		// episode links before giving up.
		page, fetchErr := w.fetcher.Get(ctx, seriesURL, webtoonHeaders())
		if fetchErr != nil {
			if err != nil {
				return nil, fmt.Errorf("failed to fetch series page: %w", err)
			}
			return nil, fmt.Errorf("failed to fetch series page: %w", fetchErr)
		}
		chapters = webtoonEpisodeAnchors(string(page), seriesURL)
	}

	parser.SortByChapterID(chapters, func(c Chapter) string { return c.ID })
	return chapters, nil
}

// collectEpisodes walks the episode list with a colly collector.
func (w *Webtoon) collectEpisodes(seriesURL string) ([]Chapter, error) {
	collector := colly.NewCollector(
		colly.UserAgent(downloader.BrowserUserAgent),
		colly.AllowURLRevisit(),
	)
	if w.transport != nil {
		collector.WithTransport(w.transport)
	}
	collector.OnRequest(func(r *colly.Request) {
		for key, value := range webtoonHeaders() {
			r.Headers.Set(key, value)
		}
	})

	var chapters []Chapter
	collector.OnHTML("ul#_listUl > li", func(e *colly.HTMLElement) {
		href := e.ChildAttr("a", "href")
		if href == "" {
			return
		}
		episodeURL := e.Request.AbsoluteURL(href)
		match := webtoonEpisodePattern.FindStringSubmatch(episodeURL)
		if match == nil {
			return
		}
		title := strings.TrimSpace(e.ChildText(".subj"))
		if title == "" {
			title = "Episode " + match[1]
		}
		chapters = append(chapters, Chapter{ID: match[1], Title: title, URL: episodeURL})
	})

	if err := collector.Visit(seriesURL); err != nil {
		return nil, err
	}
	return chapters, nil
}

func (w *Webtoon) FetchChapterImages(ctx context.Context, chapterURL string) ([]string, error) {
	page, err := w.fetcher.Get(ctx, chapterURL, webtoonHeaders())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch episode page: %w", err)
	}

	urls := firstImages(string(page), []imageStrategy{
		webtoonViewerImages,
		webtoonImageScan,
	})
	if len(urls) == 0 {
		return nil, downloader.ErrNoImagesFound
	}
	return urls, nil
}

func webtoonHeaders() map[string]string {
	return map[string]string{
		"Referer": "https://www.webtoons.com/",
	}
}

// webtoonEpisodeAnchors is the token-scan fallback for the episode list.
func webtoonEpisodeAnchors(page, baseURL string) []Chapter {
	var chapters []Chapter
	seen := make(map[string]struct{})
	for _, a := range scanAnchors(page) {
		match := webtoonEpisodePattern.FindStringSubmatch(a.href)
		if match == nil {
			continue
		}
		if _, dup := seen[match[1]]; dup {
			continue
		}
		seen[match[1]] = struct{}{}

		href := a.href
		if strings.HasPrefix(href, "/") {
			href = "https://www.webtoons.com" + href
		}
		title := a.text
		if title == "" {
			title = "Episode " + match[1]
		}
		chapters = append(chapters, Chapter{ID: match[1], Title: title, URL: href})
	}
	return chapters
}

// webtoonViewerImages reads the viewer's image list; real URLs live in
// data-url, src holds a loading placeholder.
func webtoonViewerImages(page string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var urls []string
	doc.Find("#_imageList img").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("data-url", "")
		if src == "" {
			src = img.AttrOr("src", "")
		}
		if src != "" {
			urls = append(urls, src)
		}
	})
	return urls
}

// webtoonImageScan token-scans every img tag, preferring data-url.
func webtoonImageScan(page string) []string {
	var urls []string
	for _, src := range scanImageAttrs(page, "data-url", "src") {
		if strings.Contains(src, "webtoon") {
			urls = append(urls, src)
		}
	}
	return urls
}
