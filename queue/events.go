package queue

import "sync"

// Kind names a queue event.
type Kind string

const (
	TaskStarted            Kind = "task_started"
	TaskProgress           Kind = "task_progress"
	TaskCompleted          Kind = "task_completed"
	TaskPartiallyCompleted Kind = "task_partially_completed"
	TaskFailed             Kind = "task_failed"
	TaskCancelled          Kind = "task_cancelled"
	TaskPaused             Kind = "task_paused"
	TaskResumed            Kind = "task_resumed"
	ChapterStarted         Kind = "chapter_started"
	ChapterProgress        Kind = "chapter_progress"
	ChapterCompleted       Kind = "chapter_completed"
	ChapterFailed          Kind = "chapter_failed"
	QueueDrained           Kind = "queue_drained"
)

// Event is a queue lifecycle notification. Fields beyond Kind and Series are
// set when they apply: ChapterID and Percent on chapter events, Path on
// completions, Reason on failures.
type Event struct {
	Kind      Kind
	Series    string
	ChapterID string
	Percent   int
	Path      string
	Reason    string
}

const eventBuffer = 64

type broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan Event]struct{})}
}

func (b *broadcaster) subscribe() <-chan Event {
	ch := make(chan Event, eventBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub == ch {
			delete(b.subs, sub)
			close(sub)
			return
		}
	}
}

// publish fans the event out to every subscriber. A subscriber whose buffer
// is full misses the event rather than stalling the download worker.
func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}
