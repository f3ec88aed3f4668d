package sites

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func fixedPageTransport(page string) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		header := make(http.Header)
		// colly only runs OnHTML callbacks for HTML content types
		header.Set("Content-Type", "text/html; charset=utf-8")
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Body:       io.NopCloser(strings.NewReader(page)),
			Header:     header,
			Request:    r,
		}, nil
	})
}

const webtoonListPage = `<html><body>
<ul id="_listUl">
  <li><a href="/en/fantasy/tower-of-god/ep-3/viewer?title_no=95&episode_no=3"><span class="subj"><span>Ep. 3 The Test</span></span></a></li>
  <li><a href="/en/fantasy/tower-of-god/ep-2/viewer?title_no=95&episode_no=2"><span class="subj"><span>Ep. 2 Headon's Floor</span></span></a></li>
  <li><a href="/en/fantasy/tower-of-god/ep-1/viewer?title_no=95&episode_no=1"><span class="subj"></span></a></li>
</ul>
</body></html>`

const webtoonListAnchorsOnly = `<html><body>
<a href="https://www.webtoons.com/en/fantasy/tower-of-god/ep-2/viewer?title_no=95&episode_no=2">Ep. 2</a>
<a href="/en/fantasy/tower-of-god/ep-1/viewer?title_no=95&episode_no=1">Ep. 1</a>
<a href="https://www.webtoons.com/en/fantasy/tower-of-god/list?title_no=95">Back to list</a>
</body></html>`

const webtoonViewerPage = `<html><body>
<div id="_imageList">
  <img src="https://webtoon-phinf.pstatic.net/loading.gif" data-url="https://webtoon-phinf.pstatic.net/ep1/1.jpg">
  <img src="https://webtoon-phinf.pstatic.net/loading.gif" data-url="https://webtoon-phinf.pstatic.net/ep1/2.jpg">
</div>
</body></html>`

const webtoonViewerPageBare = `<html><body>
<img data-url="https://webtoon-phinf.pstatic.net/ep2/1.jpg">
<img src="https://static.example.com/logo.png">
</body></html>`

func TestWebtoonDeriveSeriesName(t *testing.T) {
	w := NewWebtoon(&fakeFetcher{})
	assert.Equal(t, "Tower Of God", w.DeriveSeriesName("https://www.webtoons.com/en/fantasy/tower-of-god/list?title_no=95"))
}

func TestWebtoonListChapters(t *testing.T) {
	w := NewWebtoon(&fakeFetcher{})
	w.transport = fixedPageTransport(webtoonListPage)

	chapters, err := w.ListChapters(context.Background(), "https://www.webtoons.com/en/fantasy/tower-of-god/list?title_no=95")
	require.NoError(t, err)
	require.Len(t, chapters, 3)

	assert.Equal(t, "1", chapters[0].ID)
	assert.Equal(t, "Episode 1", chapters[0].Title)
	assert.Equal(t, "2", chapters[1].ID)
	assert.Equal(t, "Ep. 2 Headon's Floor", chapters[1].Title)
	assert.Equal(t, "https://www.webtoons.com/en/fantasy/tower-of-god/ep-3/viewer?title_no=95&episode_no=3", chapters[2].URL)
}

func TestWebtoonListChaptersAnchorFallback(t *testing.T) {
	seriesURL := "https://www.webtoons.com/en/fantasy/tower-of-god/list?title_no=95"
	w := NewWebtoon(&fakeFetcher{pages: map[string]string{seriesURL: webtoonListAnchorsOnly}})
	w.transport = roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	chapters, err := w.ListChapters(context.Background(), seriesURL)
	require.NoError(t, err)
	require.Len(t, chapters, 2)

	assert.Equal(t, "1", chapters[0].ID)
	assert.Equal(t, "https://www.webtoons.com/en/fantasy/tower-of-god/ep-1/viewer?title_no=95&episode_no=1", chapters[0].URL)
	assert.Equal(t, "2", chapters[1].ID)
}

func TestWebtoonFetchChapterImages(t *testing.T) {
	episodeURL := "https://www.webtoons.com/en/fantasy/tower-of-god/ep-1/viewer?title_no=95&episode_no=1"
	w := NewWebtoon(&fakeFetcher{pages: map[string]string{episodeURL: webtoonViewerPage}})

	urls, err := w.FetchChapterImages(context.Background(), episodeURL)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://webtoon-phinf.pstatic.net/ep1/1.jpg",
		"https://webtoon-phinf.pstatic.net/ep1/2.jpg",
	}, urls)
}

func TestWebtoonFetchChapterImagesScanFallback(t *testing.T) {
	episodeURL := "https://www.webtoons.com/en/fantasy/tower-of-god/ep-2/viewer?title_no=95&episode_no=2"
	w := NewWebtoon(&fakeFetcher{pages: map[string]string{episodeURL: webtoonViewerPageBare}})

	urls, err := w.FetchChapterImages(context.Background(), episodeURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://webtoon-phinf.pstatic.net/ep2/1.jpg"}, urls)
}

func TestDetect(t *testing.T) {
	adapter, err := Detect("https://asuracomic.net/series/solo-leveling-a1b2c3")
	require.NoError(t, err)
	assert.Equal(t, TypeAsura, adapter.Name())

	adapter, err = Detect("https://mangakatana.com/manga/one-piece.19234")
	require.NoError(t, err)
	assert.Equal(t, TypeKatana, adapter.Name())

	adapter, err = Detect("https://www.webtoons.com/en/fantasy/tower-of-god/list?title_no=95")
	require.NoError(t, err)
	assert.Equal(t, TypeWebtoon, adapter.Name())

	_, err = Detect("https://example.com/manga/foo")
	assert.ErrorIs(t, err, ErrInvalidSeriesURL)
}
