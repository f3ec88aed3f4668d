package downloader

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotReferer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(5 * time.Second)
	body, err := fetcher.Get(context.Background(), server.URL, map[string]string{"Referer": "https://example.com/"})
	require.NoError(t, err)

	assert.Equal(t, "hello", string(body))
	assert.Equal(t, BrowserUserAgent, gotUA)
	assert.Equal(t, "https://example.com/", gotReferer)
}

func TestHTTPFetcherRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(5 * time.Second)
	_, err := fetcher.Get(context.Background(), server.URL, nil)
	assert.ErrorContains(t, err, "404")
}

func TestHTTPFetcherDecompressesGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("compressed payload"))
		gz.Close()
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(5 * time.Second)
	body, err := fetcher.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "compressed payload", string(body))
}

func TestHTTPFetcherSniffsUndeclaredGzip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// no Content-Encoding header on purpose
		gz := gzip.NewWriter(w)
		gz.Write([]byte("sneaky gzip"))
		gz.Close()
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(5 * time.Second)
	body, err := fetcher.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "sneaky gzip", string(body))
}

func TestHTTPFetcherDecompressesBrotli(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		br := brotli.NewWriter(w)
		br.Write([]byte("brotli payload"))
		br.Close()
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(5 * time.Second)
	body, err := fetcher.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "brotli payload", string(body))
}
