package downloader

import (
	"context"
	"log"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// RenderPage loads a URL in a headless browser, waits for waitSelector to
// become visible, and returns the rendered HTML. Some sites assemble their
// chapter pages with JavaScript, so a plain GET sees none of the images.
//
// Navigation, waiting and extraction run in a single chromedp.Run: splitting
// them across Run calls can leave the tab in an inconsistent state.
func RenderPage(ctx context.Context, url, waitSelector string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(BrowserUserAgent),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, 60*time.Second)
	defer cancel()

	headers := network.Headers{
		"Accept-Language": "en-US,en;q=0.5",
	}

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		chromedp.Navigate(url),
	}
	if waitSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
	}
	tasks = append(tasks, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(runCtx, tasks); err != nil {
		log.Printf("[Browser] Render failed for %s: %v", url, err)
		return "", err
	}

	return html, nil
}
