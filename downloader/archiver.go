package downloader

import (
	"archive/zip"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"tankobon/parser"
)

const (
	imageAttempts     = 3
	defaultRetryDelay = time.Second
)

// ArchiveResult reports what ended up inside a chapter archive.
type ArchiveResult struct {
	Path      string
	Succeeded int
	Total     int
}

// ArchiveOptions tune a single ArchiveChapter call.
type ArchiveOptions struct {
	// Headers are added to every image request (Referer in particular;
	// most sites reject hotlinked image fetches without it).
	Headers map[string]string

	// RetryDelay is the fixed wait between attempts for one image.
	// Zero means the 1s default.
	RetryDelay time.Duration

	// Limiter, when set, paces the image fetches.
	Limiter *parser.RateLimiter

	// ConvertToJPEG transcodes non-JPEG pages before storing them. Off by
	// default: the archive keeps raw bytes as fetched.
	ConvertToJPEG bool
}

// ArchiveChapter fetches every image URL in order and writes them straight
// into a zip container at destPath, entries named 001.jpg, 002.jpg, …
//
// A single image exhausting its retries does not abort the chapter; the
// archive is kept as long as at least one page succeeded, and the caller can
// detect incompleteness via Succeeded < Total. If no page succeeds the
// partial file is removed and ErrAllImagesFailed is returned, so a failed
// call never leaves an empty archive behind for a later run to mistake for a
// downloaded chapter.
//
// onProgress, when non-nil, is invoked with (attempted, total): once with 0
// before the first fetch, then after every attempt.
func ArchiveChapter(ctx context.Context, fetcher Fetcher, imageURLs []string, destPath string, opts ArchiveOptions, onProgress func(done, total int)) (ArchiveResult, error) {
	result := ArchiveResult{Path: destPath, Total: len(imageURLs)}

	if len(imageURLs) == 0 {
		return result, ErrNoImagesFound
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return result, fmt.Errorf("failed to create series directory: %w", err)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return result, fmt.Errorf("failed to create archive: %w", err)
	}

	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = defaultRetryDelay
	}

	zipWriter := zip.NewWriter(file)
	total := len(imageURLs)

	if onProgress != nil {
		onProgress(0, total)
	}

	for idx, imgURL := range imageURLs {
		select {
		case <-ctx.Done():
			discardArchive(zipWriter, file, destPath)
			return result, ctx.Err()
		default:
		}

		if opts.Limiter != nil {
			opts.Limiter.Wait()
		}

		data, err := fetchImageWithRetry(ctx, fetcher, imgURL, opts.Headers, retryDelay)
		if err != nil {
			log.Printf("[Archiver] Failed to download image %d/%d: %v", idx+1, total, err)
		} else {
			if opts.ConvertToJPEG {
				if converted, convErr := parser.ConvertToJPEG(data); convErr == nil {
					data = converted
				} else {
					log.Printf("[Archiver] JPEG conversion failed for image %d, storing raw bytes: %v", idx+1, convErr)
				}
			}

			entry, err := zipWriter.Create(fmt.Sprintf("%03d.jpg", idx+1))
			if err == nil {
				_, err = entry.Write(data)
			}
			if err != nil {
				log.Printf("[Archiver] Failed to store image %d/%d: %v", idx+1, total, err)
			} else {
				result.Succeeded++
			}
		}

		if onProgress != nil {
			onProgress(idx+1, total)
		}
	}

	if result.Succeeded == 0 {
		discardArchive(zipWriter, file, destPath)
		return result, ErrAllImagesFailed
	}

	if err := zipWriter.Close(); err != nil {
		file.Close()
		os.Remove(destPath)
		return result, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(destPath)
		return result, fmt.Errorf("failed to finalize archive: %w", err)
	}

	log.Printf("[Archiver] Created %s (%d/%d images)", destPath, result.Succeeded, result.Total)
	return result, nil
}

// fetchImageWithRetry attempts one image up to imageAttempts times with a
// fixed delay between attempts.
func fetchImageWithRetry(ctx context.Context, fetcher Fetcher, imgURL string, headers map[string]string, delay time.Duration) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < imageAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
		}

		data, err := fetcher.Get(ctx, imgURL, headers)
		if err == nil && len(data) > 0 {
			return data, nil
		}
		if err == nil {
			err = fmt.Errorf("empty response for %s", imgURL)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", imageAttempts, lastErr)
}

func discardArchive(zipWriter *zip.Writer, file *os.File, path string) {
	zipWriter.Close()
	file.Close()
	if err := os.Remove(path); err != nil {
		log.Printf("[Archiver] Failed to remove partial archive %s: %v", path, err)
	}
}
