package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tankobon/config"
	"tankobon/history"
	"tankobon/parser"
	"tankobon/queue"
	"tankobon/sites"
)

func main() {
	convertJPEG := flag.Bool("jpeg", false, "transcode downloaded pages to JPEG")
	imageInterval := flag.Duration("interval", 200*time.Millisecond, "minimum delay between image fetches")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Main] Failed to load config: %v", err)
	}

	historyPath, err := config.HistoryPath()
	if err != nil {
		log.Fatalf("[Main] Failed to resolve history path: %v", err)
	}
	store, err := history.Open(historyPath)
	if err != nil {
		log.Fatalf("[Main] Failed to open history: %v", err)
	}

	manager := queue.NewManager(queue.Options{
		Root:          func() string { return cfg.DownloadRoot },
		History:       store,
		ConvertToJPEG: *convertJPEG,
		ImageInterval: *imageInterval,
	})

	events := manager.Subscribe()
	go printEvents(events)
	defer manager.Unsubscribe(events)

	app := &console{
		cfg:     cfg,
		store:   store,
		manager: manager,
		input:   bufio.NewScanner(os.Stdin),
	}
	app.run()
}

type console struct {
	cfg     *config.Config
	store   *history.Store
	manager *queue.Manager
	input   *bufio.Scanner
}

func (c *console) run() {
	for {
		fmt.Println()
		fmt.Println("=== Tankobon ===")
		fmt.Printf("Download root: %s\n", c.cfg.DownloadRoot)
		fmt.Println("1) Download a series")
		fmt.Println("2) Show queue")
		fmt.Println("3) Pause a series")
		fmt.Println("4) Resume a series")
		fmt.Println("5) Cancel a series")
		fmt.Println("6) Scan tracked series for new chapters")
		fmt.Println("7) List tracked series")
		fmt.Println("8) Change download root")
		fmt.Println("9) Forget a tracked series")
		fmt.Println("q) Quit")

		switch c.prompt("Choice") {
		case "1":
			c.download()
		case "2":
			c.showQueue()
		case "3":
			c.manager.Pause(c.prompt("Series name"))
		case "4":
			c.manager.Resume(c.prompt("Series name"))
		case "5":
			c.manager.Cancel(c.prompt("Series name"))
		case "6":
			c.scanUpdates()
		case "7":
			c.listTracked()
		case "8":
			c.changeRoot()
		case "9":
			c.forgetSeries()
		case "q", "quit", "exit":
			fmt.Println("Bye.")
			return
		default:
			fmt.Println("Unknown choice.")
		}
	}
}

func (c *console) prompt(label string) string {
	fmt.Printf("%s: ", label)
	if !c.input.Scan() {
		return "q"
	}
	return strings.TrimSpace(c.input.Text())
}

func (c *console) download() {
	seriesURL := c.prompt("Series URL")
	adapter, err := sites.Detect(seriesURL)
	if err != nil {
		fmt.Printf("Unsupported URL: %v\n", err)
		return
	}

	fmt.Printf("Fetching chapter list for %s...\n", adapter.DeriveSeriesName(seriesURL))
	chapters, err := adapter.ListChapters(context.Background(), seriesURL)
	if err != nil {
		fmt.Printf("Failed to list chapters: %v\n", err)
		return
	}
	if len(chapters) == 0 {
		fmt.Println("No chapters found.")
		return
	}

	for _, ch := range chapters {
		fmt.Printf("  %s  %s\n", ch.ID, ch.Title)
	}

	seriesDir := filepath.Join(c.cfg.DownloadRoot, parser.SanitizeName(adapter.DeriveSeriesName(seriesURL)))
	if local, err := parser.LocalChapterList(seriesDir); err == nil && len(local) > 0 {
		fmt.Printf("(%d chapters already on disk; they will be skipped)\n", len(local))
	}

	selection := c.prompt("Chapters (all, a single id like 12, or a range like 5-10)")
	selected, err := selectChapters(chapters, selection)
	if err != nil {
		fmt.Println(err)
		return
	}

	if err := c.manager.Enqueue(seriesURL, selected); err != nil {
		fmt.Printf("Failed to enqueue: %v\n", err)
		return
	}
	fmt.Println("Queued.")
}

// selectChapters resolves the user's selection against the listed chapters.
// A nil result means the whole series.
func selectChapters(chapters []sites.Chapter, selection string) ([]sites.Chapter, error) {
	selection = strings.TrimSpace(strings.ToLower(selection))
	if selection == "" || selection == "all" {
		return nil, nil
	}

	if lo, hi, ok := strings.Cut(selection, "-"); ok {
		loVal, loOK := parser.ChapterIDValue(lo)
		hiVal, hiOK := parser.ChapterIDValue(hi)
		if !loOK || !hiOK || loVal > hiVal {
			return nil, fmt.Errorf("invalid range: %s", selection)
		}
		var picked []sites.Chapter
		for _, ch := range chapters {
			if v, numeric := parser.ChapterIDValue(ch.ID); numeric && v >= loVal && v <= hiVal {
				picked = append(picked, ch)
			}
		}
		if len(picked) == 0 {
			return nil, fmt.Errorf("no chapters in range %s", selection)
		}
		return picked, nil
	}

	for _, ch := range chapters {
		if strings.EqualFold(ch.ID, selection) {
			return []sites.Chapter{ch}, nil
		}
	}
	return nil, fmt.Errorf("no chapter with id %s", selection)
}

func (c *console) showQueue() {
	infos := c.manager.Snapshot()
	if len(infos) == 0 {
		fmt.Println("Queue is empty.")
		return
	}
	for _, info := range infos {
		fmt.Printf("  %-30s %-22s %d/%d chapters (%d%%)\n",
			info.Series, info.Status, info.DoneChapters, info.TotalChapters, info.Percent)
	}
}

func (c *console) scanUpdates() {
	name := c.prompt("Series name (empty for all)")
	updates, err := c.manager.ScanForUpdates(context.Background(), name)
	if err != nil {
		fmt.Printf("Scan failed: %v\n", err)
		return
	}
	if len(updates) == 0 {
		fmt.Println("Everything up to date.")
		return
	}

	for series, fresh := range updates {
		fmt.Printf("%s has %d new chapters:\n", series, len(fresh))
		for _, ch := range fresh {
			fmt.Printf("  %s  %s\n", ch.ID, ch.Title)
		}
		if strings.EqualFold(c.prompt("Download them now? (y/n)"), "y") {
			rec, ok := c.store.GetSeries(series)
			if !ok {
				continue
			}
			if err := c.manager.Enqueue(rec.URL, fresh); err != nil {
				fmt.Printf("Failed to enqueue %s: %v\n", series, err)
			}
		}
	}
}

func (c *console) listTracked() {
	names := c.store.ListSeries()
	if len(names) == 0 {
		fmt.Println("No tracked series yet.")
		return
	}
	for _, name := range names {
		rec, ok := c.store.GetSeries(name)
		if !ok {
			continue
		}
		fmt.Printf("  %-30s %-8s %d chapters  last updated %s\n",
			rec.Name, rec.Site, len(rec.Chapters), rec.LastUpdated.Format("2006-01-02"))
	}
}

func (c *console) forgetSeries() {
	name := c.prompt("Series name")
	if name == "" {
		return
	}
	if err := c.store.DeleteSeries(name); err != nil {
		fmt.Printf("Failed to forget %s: %v\n", name, err)
		return
	}
	fmt.Printf("Forgot %s. Downloaded files stay on disk.\n", name)
}

func (c *console) changeRoot() {
	root := c.prompt("New download root")
	if root == "" {
		return
	}
	expanded, err := parser.ExpandPath(root)
	if err != nil {
		fmt.Printf("Invalid path: %v\n", err)
		return
	}
	if err := os.MkdirAll(expanded, 0755); err != nil {
		fmt.Printf("Failed to create directory: %v\n", err)
		return
	}

	c.cfg.DownloadRoot = expanded
	if err := config.Save(c.cfg); err != nil {
		fmt.Printf("Failed to save config: %v\n", err)
		return
	}
	fmt.Printf("Download root set to %s\n", expanded)
}

func printEvents(events <-chan queue.Event) {
	for ev := range events {
		switch ev.Kind {
		case queue.TaskStarted:
			fmt.Printf("\n>> %s: download started\n", ev.Series)
		case queue.TaskCompleted:
			fmt.Printf("\n>> %s: download complete\n", ev.Series)
		case queue.TaskPartiallyCompleted:
			fmt.Printf("\n>> %s: finished with failures (%s)\n", ev.Series, ev.Reason)
		case queue.TaskFailed:
			fmt.Printf("\n>> %s: download failed (%s)\n", ev.Series, ev.Reason)
		case queue.TaskCancelled:
			fmt.Printf("\n>> %s: cancelled\n", ev.Series)
		case queue.TaskPaused:
			fmt.Printf("\n>> %s: paused\n", ev.Series)
		case queue.TaskResumed:
			fmt.Printf("\n>> %s: resumed\n", ev.Series)
		case queue.ChapterCompleted:
			fmt.Printf("\n>> %s: chapter %s saved to %s\n", ev.Series, ev.ChapterID, ev.Path)
		case queue.ChapterFailed:
			fmt.Printf("\n>> %s: chapter %s failed (%s)\n", ev.Series, ev.ChapterID, ev.Reason)
		case queue.QueueDrained:
			fmt.Printf("\n>> queue drained\n")
		}
	}
}
