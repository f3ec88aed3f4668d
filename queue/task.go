package queue

import (
	"time"

	"tankobon/sites"
)

// Status is the lifecycle state of a queued download task.
type Status string

const (
	StatusQueued             Status = "queued"
	StatusDownloading        Status = "downloading"
	StatusPaused             Status = "paused"
	StatusCompleted          Status = "completed"
	StatusPartiallyCompleted Status = "partially_completed"
	StatusFailed             Status = "failed"
	StatusCancelled          Status = "cancelled"
)

// ChapterStatus is the state of a single chapter within a task.
type ChapterStatus string

const (
	ChapterStatusQueued      ChapterStatus = "queued"
	ChapterStatusDownloading ChapterStatus = "downloading"
	ChapterStatusCompleted   ChapterStatus = "completed"
	ChapterStatusFailed      ChapterStatus = "failed"
)

// Task is one unit of queued work: a series plus the chapters still to
// download. Chapters is a remaining-work cursor: when a task is paused
// mid-flight it is re-enqueued holding only the chapters not yet attempted,
// so resuming never redoes finished work.
type Task struct {
	Series    string
	URL       string
	Site      sites.Type
	Chapters  []sites.Chapter
	CreatedAt time.Time

	adapter sites.Adapter
}

// TaskInfo is a point-in-time view of a task for Snapshot. The per-chapter
// maps are keyed by chapter id.
type TaskInfo struct {
	Series         string
	URL            string
	Site           sites.Type
	Status         Status
	TotalChapters  int
	DoneChapters   int
	FailedChapters int
	Percent        int
	ChapterStatus  map[string]ChapterStatus
	ChapterPercent map[string]int
	CreatedAt      time.Time
}
