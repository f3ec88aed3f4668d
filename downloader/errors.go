package downloader

import "errors"

var (
	// ErrNoImagesFound means a chapter page yielded zero image URLs.
	ErrNoImagesFound = errors.New("no images found")

	// ErrAllImagesFailed means every page fetch for a chapter exhausted its
	// retries; the partial archive has been removed.
	ErrAllImagesFailed = errors.New("all images failed to download")
)
