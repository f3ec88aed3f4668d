package queue

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"sync"
	"time"

	"tankobon/downloader"
	"tankobon/history"
	"tankobon/parser"
	"tankobon/sites"
)

// ArchiveFunc writes one chapter archive. Matches downloader.ArchiveChapter.
type ArchiveFunc func(ctx context.Context, fetcher downloader.Fetcher, imageURLs []string, destPath string, opts downloader.ArchiveOptions, onProgress func(done, total int)) (downloader.ArchiveResult, error)

// Options configure a Manager. Zero values get working defaults, so
// Options{History: store, Root: ...} is enough for production use.
type Options struct {
	// Root returns the current download root. Consulted per chapter, so a
	// root change mid-queue applies to work not yet started.
	Root func() string

	// Fetcher downloads chapter images. Defaults to an HTTP fetcher.
	Fetcher downloader.Fetcher

	// History records series and chapters as they complete. Optional.
	History *history.Store

	// Detect maps a series URL to its site adapter. Defaults to sites.Detect.
	Detect func(rawURL string) (sites.Adapter, error)

	// Archive writes one chapter. Defaults to downloader.ArchiveChapter.
	Archive ArchiveFunc

	// RetryDelay is passed through to the archiver.
	RetryDelay time.Duration

	// ImageInterval, when positive, paces image fetches within a chapter.
	ImageInterval time.Duration

	// PauseYield bounds the busy-wait when the head of the queue is paused:
	// the worker re-enqueues it and sleeps this long before looking again.
	PauseYield time.Duration

	// ConvertToJPEG transcodes non-JPEG pages before archiving.
	ConvertToJPEG bool
}

// Manager owns the serialized download queue. One worker goroutine drains the
// queue a task at a time; commands (Enqueue, Pause, Resume, Cancel) only flip
// state under the lock and return immediately. Pause and cancel take effect
// at chapter boundaries, never mid-image.
type Manager struct {
	opts Options

	mu         sync.Mutex
	tasks      []*Task
	processing bool
	cancelled  map[string]struct{}
	paused     map[string]struct{}
	infos      map[string]*TaskInfo
	order      []string

	limiter *parser.RateLimiter
	events  *broadcaster
}

func NewManager(opts Options) *Manager {
	if opts.Root == nil {
		opts.Root = func() string {
			wd, err := os.Getwd()
			if err != nil {
				return "."
			}
			return wd
		}
	}
	if opts.Fetcher == nil {
		opts.Fetcher = downloader.NewHTTPFetcher(60 * time.Second)
	}
	if opts.Detect == nil {
		opts.Detect = sites.Detect
	}
	if opts.Archive == nil {
		opts.Archive = downloader.ArchiveChapter
	}
	if opts.PauseYield == 0 {
		opts.PauseYield = 500 * time.Millisecond
	}

	m := &Manager{
		opts:      opts,
		cancelled: make(map[string]struct{}),
		paused:    make(map[string]struct{}),
		infos:     make(map[string]*TaskInfo),
		events:    newBroadcaster(),
	}
	if opts.ImageInterval > 0 {
		m.limiter = parser.NewRateLimiter(opts.ImageInterval)
	}
	return m
}

// Enqueue adds a download task for a series. A nil or empty chapter list
// means "everything": the worker resolves the full chapter list when the
// task reaches the head of the queue. The only synchronous failure is an
// unrecognized URL; everything else surfaces as events.
func (m *Manager) Enqueue(seriesURL string, chapters []sites.Chapter) error {
	adapter, err := m.opts.Detect(seriesURL)
	if err != nil {
		return err
	}

	task := &Task{
		Series:    adapter.DeriveSeriesName(seriesURL),
		URL:       seriesURL,
		Site:      adapter.Name(),
		Chapters:  append([]sites.Chapter(nil), chapters...),
		CreatedAt: time.Now(),
		adapter:   adapter,
	}

	m.mu.Lock()
	delete(m.cancelled, task.Series)
	m.tasks = append(m.tasks, task)
	info := m.infoLocked(task)
	info.Status = StatusQueued
	info.TotalChapters = len(task.Chapters)
	start := !m.processing
	if start {
		m.processing = true
	}
	m.mu.Unlock()

	log.Printf("[Queue] Enqueued %s (%d chapters)", task.Series, len(task.Chapters))
	if start {
		go m.run()
	}
	return nil
}

// Cancel requests cancellation of a series' task. Honored at the next
// chapter boundary; already-written archives stay on disk.
func (m *Manager) Cancel(series string) {
	m.mu.Lock()
	m.cancelled[series] = struct{}{}
	delete(m.paused, series)
	m.mu.Unlock()
	log.Printf("[Queue] Cancel requested for %s", series)
}

// Pause marks a series paused. Its in-flight task finishes the current
// chapter, then moves to the back of the queue holding the remaining
// chapters.
func (m *Manager) Pause(series string) {
	m.mu.Lock()
	m.paused[series] = struct{}{}
	if info, ok := m.infos[series]; ok {
		info.Status = StatusPaused
	}
	m.mu.Unlock()

	log.Printf("[Queue] Paused %s", series)
	m.events.publish(Event{Kind: TaskPaused, Series: series})
}

// Resume clears a series' paused mark so the worker picks its task up again.
func (m *Manager) Resume(series string) {
	m.mu.Lock()
	delete(m.paused, series)
	if info, ok := m.infos[series]; ok && info.Status == StatusPaused {
		info.Status = StatusQueued
	}
	m.mu.Unlock()

	log.Printf("[Queue] Resumed %s", series)
	m.events.publish(Event{Kind: TaskResumed, Series: series})
}

// Snapshot returns the current view of every known task, oldest first.
func (m *Manager) Snapshot() []TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]TaskInfo, 0, len(m.order))
	for _, series := range m.order {
		info, ok := m.infos[series]
		if !ok {
			continue
		}
		copied := *info
		copied.ChapterStatus = make(map[string]ChapterStatus, len(info.ChapterStatus))
		for id, st := range info.ChapterStatus {
			copied.ChapterStatus[id] = st
		}
		copied.ChapterPercent = make(map[string]int, len(info.ChapterPercent))
		for id, pct := range info.ChapterPercent {
			copied.ChapterPercent[id] = pct
		}
		out = append(out, copied)
	}
	return out
}

// Subscribe returns a channel of queue events. Slow consumers drop events
// rather than blocking downloads.
func (m *Manager) Subscribe() <-chan Event {
	return m.events.subscribe()
}

// Unsubscribe closes and removes a channel returned by Subscribe.
func (m *Manager) Unsubscribe(ch <-chan Event) {
	m.events.unsubscribe(ch)
}

// ScanForUpdates diffs tracked series against their live chapter lists and
// returns the chapters history does not know about, keyed by series name.
// An empty name scans every tracked series. Per-series listing failures are
// reported but do not abort the scan.
func (m *Manager) ScanForUpdates(ctx context.Context, name string) (map[string][]sites.Chapter, error) {
	if m.opts.History == nil {
		return nil, fmt.Errorf("no history store configured")
	}

	var names []string
	if name != "" {
		names = []string{name}
	} else {
		names = m.opts.History.ListSeries()
	}

	updates := make(map[string][]sites.Chapter)
	for _, seriesName := range names {
		rec, ok := m.opts.History.GetSeries(seriesName)
		if !ok {
			return nil, fmt.Errorf("unknown series: %s", seriesName)
		}
		adapter, err := m.opts.Detect(rec.URL)
		if err != nil {
			log.Printf("[Queue] Skipping %s during scan: %v", seriesName, err)
			continue
		}
		fresh, err := m.opts.History.DiffNewChapters(ctx, seriesName, adapter.ListChapters)
		if err != nil {
			log.Printf("[Queue] Scan failed for %s: %v", seriesName, err)
			continue
		}
		if len(fresh) > 0 {
			updates[seriesName] = fresh
		}
	}
	return updates, nil
}

// run is the worker loop. It exits when the queue drains; Enqueue starts a
// fresh worker for the next batch.
func (m *Manager) run() {
	for {
		task, ok := m.next()
		if !ok {
			m.events.publish(Event{Kind: QueueDrained})
			log.Printf("[Queue] Queue drained")
			return
		}

		switch m.headState(task.Series) {
		case headCancelled:
			m.finishTask(task, StatusCancelled, Event{Kind: TaskCancelled, Series: task.Series})
		case headPaused:
			// Paused head goes straight to the back; the sleep keeps an
			// all-paused queue from spinning.
			m.requeue(task)
			time.Sleep(m.opts.PauseYield)
		default:
			m.process(context.Background(), task)
		}
	}
}

func (m *Manager) next() (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.tasks) == 0 {
		m.processing = false
		return nil, false
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	return task, true
}

type headDisposition int

const (
	headReady headDisposition = iota
	headPaused
	headCancelled
)

func (m *Manager) headState(series string) headDisposition {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cancelled[series]; ok {
		delete(m.cancelled, series)
		return headCancelled
	}
	if _, ok := m.paused[series]; ok {
		return headPaused
	}
	return headReady
}

func (m *Manager) requeue(task *Task) {
	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()
}

// process downloads one task's chapters in order. A panic fails the task but
// never kills the worker.
func (m *Manager) process(ctx context.Context, task *Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Queue] Panic while processing %s: %v", task.Series, r)
			m.finishTask(task, StatusFailed, Event{Kind: TaskFailed, Series: task.Series, Reason: fmt.Sprintf("internal error: %v", r)})
		}
	}()

	if len(task.Chapters) == 0 {
		if !m.resolveChapters(ctx, task) {
			return
		}
	}
	// Caller-supplied subsets arrive in selection order; downloads always
	// run ascending by chapter id.
	parser.SortByChapterID(task.Chapters, func(c sites.Chapter) string { return c.ID })
	m.recordSeries(task)

	m.setStatus(task, StatusDownloading)
	m.markChaptersQueued(task)
	m.events.publish(Event{Kind: TaskStarted, Series: task.Series})
	log.Printf("[Queue] Starting %s (%d chapters)", task.Series, len(task.Chapters))

	total := len(task.Chapters)
	completed, failed := 0, 0

	for idx := 0; idx < total; idx++ {
		switch m.headState(task.Series) {
		case headCancelled:
			m.finishTask(task, StatusCancelled, Event{Kind: TaskCancelled, Series: task.Series})
			return
		case headPaused:
			task.Chapters = append([]sites.Chapter(nil), task.Chapters[idx:]...)
			m.requeue(task)
			m.setStatus(task, StatusPaused)
			log.Printf("[Queue] %s paused with %d chapters remaining", task.Series, len(task.Chapters))
			return
		}

		chapter := task.Chapters[idx]
		if m.downloadChapter(ctx, task, chapter) {
			completed++
		} else {
			failed++
		}
		m.updateProgress(task, completed, failed, total, (idx+1)*100/total)
	}

	switch {
	case failed == 0:
		m.finishTask(task, StatusCompleted, Event{Kind: TaskCompleted, Series: task.Series})
		log.Printf("[Queue] Completed %s (%d chapters)", task.Series, completed)
	case completed > 0:
		reason := fmt.Sprintf("%d of %d chapters failed", failed, total)
		m.finishTask(task, StatusPartiallyCompleted, Event{Kind: TaskPartiallyCompleted, Series: task.Series, Reason: reason})
		log.Printf("[Queue] Partially completed %s: %s", task.Series, reason)
	default:
		m.finishTask(task, StatusFailed, Event{Kind: TaskFailed, Series: task.Series, Reason: "all chapters failed"})
		log.Printf("[Queue] Failed %s: all chapters failed", task.Series)
	}
}

// resolveChapters fills in the full chapter list for an "everything" task.
func (m *Manager) resolveChapters(ctx context.Context, task *Task) bool {
	chapters, err := task.adapter.ListChapters(ctx, task.URL)
	if err != nil {
		m.finishTask(task, StatusFailed, Event{Kind: TaskFailed, Series: task.Series, Reason: fmt.Sprintf("failed to list chapters: %v", err)})
		log.Printf("[Queue] Failed to list chapters for %s: %v", task.Series, err)
		return false
	}
	if len(chapters) == 0 {
		m.finishTask(task, StatusFailed, Event{Kind: TaskFailed, Series: task.Series, Reason: "no chapters found"})
		log.Printf("[Queue] No chapters found for %s", task.Series)
		return false
	}

	task.Chapters = chapters

	m.mu.Lock()
	if info, ok := m.infos[task.Series]; ok {
		info.TotalChapters = len(chapters)
	}
	m.mu.Unlock()
	return true
}

func (m *Manager) recordSeries(task *Task) {
	if m.opts.History == nil {
		return
	}
	if err := m.opts.History.RecordSeries(task.Series, task.URL, task.Site); err != nil {
		log.Printf("[Queue] Failed to record series %s: %v", task.Series, err)
	}
}

// downloadChapter fetches and archives one chapter. Returns true on success,
// including the already-on-disk skip.
func (m *Manager) downloadChapter(ctx context.Context, task *Task, chapter sites.Chapter) bool {
	m.setChapterState(task, chapter.ID, ChapterStatusDownloading, 0)
	m.events.publish(Event{Kind: ChapterStarted, Series: task.Series, ChapterID: chapter.ID})

	destPath := parser.ChapterArchivePath(m.opts.Root(), task.Series, chapter.ID)
	if parser.ArchiveExists(destPath) {
		log.Printf("[Queue] Skipping chapter %s of %s: already downloaded", chapter.ID, task.Series)
		m.setChapterState(task, chapter.ID, ChapterStatusCompleted, 100)
		m.events.publish(Event{Kind: ChapterCompleted, Series: task.Series, ChapterID: chapter.ID, Percent: 100, Path: destPath})
		return true
	}

	imageURLs, err := task.adapter.FetchChapterImages(ctx, chapter.URL)
	if err != nil {
		log.Printf("[Queue] Failed to resolve images for chapter %s of %s: %v", chapter.ID, task.Series, err)
		m.setChapterState(task, chapter.ID, ChapterStatusFailed, -1)
		m.events.publish(Event{Kind: ChapterFailed, Series: task.Series, ChapterID: chapter.ID, Reason: err.Error()})
		return false
	}

	opts := downloader.ArchiveOptions{
		Headers:       map[string]string{"Referer": refererFor(chapter.URL)},
		RetryDelay:    m.opts.RetryDelay,
		Limiter:       m.limiter,
		ConvertToJPEG: m.opts.ConvertToJPEG,
	}
	onProgress := func(done, total int) {
		if total == 0 {
			return
		}
		percent := done * 100 / total
		m.setChapterState(task, chapter.ID, "", percent)
		m.events.publish(Event{Kind: ChapterProgress, Series: task.Series, ChapterID: chapter.ID, Percent: percent})
	}

	result, err := m.opts.Archive(ctx, m.opts.Fetcher, imageURLs, destPath, opts, onProgress)
	if err != nil {
		log.Printf("[Queue] Failed to archive chapter %s of %s: %v", chapter.ID, task.Series, err)
		m.setChapterState(task, chapter.ID, ChapterStatusFailed, -1)
		m.events.publish(Event{Kind: ChapterFailed, Series: task.Series, ChapterID: chapter.ID, Reason: err.Error()})
		return false
	}
	if !parser.ArchiveExists(destPath) {
		log.Printf("[Queue] Archive for chapter %s of %s missing after write", chapter.ID, task.Series)
		m.setChapterState(task, chapter.ID, ChapterStatusFailed, -1)
		m.events.publish(Event{Kind: ChapterFailed, Series: task.Series, ChapterID: chapter.ID, Reason: "archive missing after write"})
		return false
	}

	if result.Succeeded < result.Total {
		log.Printf("[Queue] Chapter %s of %s incomplete: %d/%d images", chapter.ID, task.Series, result.Succeeded, result.Total)
	}
	if m.opts.History != nil {
		if err := m.opts.History.RecordChapterDownloaded(task.Series, chapter.ID, task.Site, chapter.URL); err != nil {
			log.Printf("[Queue] Failed to record chapter %s of %s: %v", chapter.ID, task.Series, err)
		}
	}

	m.setChapterState(task, chapter.ID, ChapterStatusCompleted, 100)
	m.events.publish(Event{Kind: ChapterCompleted, Series: task.Series, ChapterID: chapter.ID, Percent: 100, Path: destPath})
	return true
}

// markChaptersQueued resets the per-chapter view to Queued for every chapter
// the task still holds.
func (m *Manager) markChaptersQueued(task *Task) {
	m.mu.Lock()
	info := m.infoLocked(task)
	for _, ch := range task.Chapters {
		info.ChapterStatus[ch.ID] = ChapterStatusQueued
		info.ChapterPercent[ch.ID] = 0
	}
	m.mu.Unlock()
}

// setChapterState updates one chapter's status and percent. An empty status
// leaves the status alone; a negative percent leaves the percent alone.
func (m *Manager) setChapterState(task *Task, chapterID string, status ChapterStatus, percent int) {
	m.mu.Lock()
	info := m.infoLocked(task)
	if status != "" {
		info.ChapterStatus[chapterID] = status
	}
	if percent >= 0 {
		info.ChapterPercent[chapterID] = percent
	}
	m.mu.Unlock()
}

func (m *Manager) infoLocked(task *Task) *TaskInfo {
	info, ok := m.infos[task.Series]
	if !ok {
		info = &TaskInfo{
			Series:         task.Series,
			URL:            task.URL,
			Site:           task.Site,
			CreatedAt:      task.CreatedAt,
			ChapterStatus:  make(map[string]ChapterStatus),
			ChapterPercent: make(map[string]int),
		}
		m.infos[task.Series] = info
		m.order = append(m.order, task.Series)
	}
	return info
}

func (m *Manager) setStatus(task *Task, status Status) {
	m.mu.Lock()
	info := m.infoLocked(task)
	info.Status = status
	if status == StatusDownloading {
		info.DoneChapters = 0
		info.FailedChapters = 0
		info.Percent = 0
	}
	m.mu.Unlock()
}

func (m *Manager) updateProgress(task *Task, completed, failed, total, percent int) {
	m.mu.Lock()
	info := m.infoLocked(task)
	info.DoneChapters = completed
	info.FailedChapters = failed
	info.TotalChapters = total
	if percent > info.Percent {
		info.Percent = percent
	}
	percent = info.Percent
	m.mu.Unlock()

	m.events.publish(Event{Kind: TaskProgress, Series: task.Series, Percent: percent})
}

func (m *Manager) finishTask(task *Task, status Status, ev Event) {
	m.mu.Lock()
	info := m.infoLocked(task)
	info.Status = status
	if status == StatusCompleted {
		info.Percent = 100
	}
	m.mu.Unlock()

	m.events.publish(ev)
}

// refererFor derives the Referer header for image fetches from the chapter
// page's origin.
func refererFor(chapterURL string) string {
	parsed, err := url.Parse(chapterURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return chapterURL
	}
	return parsed.Scheme + "://" + parsed.Host + "/"
}
