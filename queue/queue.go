package queue

import (
	"context"
	"sync"

	"github.com/lexandro/csync2-hintd/watcher"
)

// Queue is the pending set of native paths reported since the last flush.
// Producers append concurrently; the flush cycle drains everything at once.
// Duplicates are kept, in arrival order.
type Queue struct {
	mu    sync.Mutex
	paths []string
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends a native path. It never blocks on I/O.
func (q *Queue) Enqueue(nativePath string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paths = append(q.paths, nativePath)
}

// OnEvent records a changed, created or deleted path.
func (q *Queue) OnEvent(nativePath string, kind watcher.Kind) {
	q.Enqueue(nativePath)
}

// OnRename records both the old and the new location of a rename.
func (q *Queue) OnRename(oldNativePath, newNativePath string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paths = append(q.paths, oldNativePath, newNativePath)
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.paths)
}

// DrainAll empties the queue and returns everything that was in it.
// Entries enqueued after DrainAll returns stay for the next drain.
func (q *Queue) DrainAll() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.paths
	q.paths = nil
	return drained
}

// Requeue puts previously drained paths back ahead of anything that
// arrived since.
func (q *Queue) Requeue(paths []string) {
	if len(paths) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	merged := make([]string, 0, len(paths)+len(q.paths))
	merged = append(merged, paths...)
	merged = append(merged, q.paths...)
	q.paths = merged
}

// Consume enqueues every event received on events until the channel is
// closed or ctx is done.
func (q *Queue) Consume(ctx context.Context, events <-chan watcher.RawEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			q.OnEvent(event.NativePath, event.Kind)
		}
	}
}
