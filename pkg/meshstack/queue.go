package meshstack

import (
	"sync"
	"time"
)

type eventEntry struct {
	id  int
	due time.Time
	Run func()
}

// eventQueue holds work posted by the stack until the next Run. Entries with
// a zero due time run on the next dispatch; timers wait for their deadline.
type eventQueue struct {
	Entries []*eventEntry
	mutex   sync.Mutex
	nextID  int
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		Entries: make([]*eventEntry, 0),
		nextID:  1,
	}
}

// Post queues fn for the next dispatch.
func (q *eventQueue) Post(fn func()) {
	q.PostAt(time.Time{}, fn)
}

// PostAt queues fn to run on the first dispatch at or after due and returns
// an id usable with Cancel.
func (q *eventQueue) PostAt(due time.Time, fn func()) int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	entry := &eventEntry{
		id:  q.nextID,
		due: due,
		Run: fn,
	}
	q.nextID++
	q.Entries = append(q.Entries, entry)
	return entry.id
}

func (q *eventQueue) Cancel(id int) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i, entry := range q.Entries {
		if entry.id == id {
			q.Entries = append(q.Entries[:i], q.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Due removes and returns the entries ready at now, in posting order.
func (q *eventQueue) Due(now time.Time) []*eventEntry {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	ready := make([]*eventEntry, 0)
	kept := make([]*eventEntry, 0, len(q.Entries))
	for _, entry := range q.Entries {
		if entry.due.IsZero() || !entry.due.After(now) {
			ready = append(ready, entry)
		} else {
			kept = append(kept, entry)
		}
	}
	q.Entries = kept
	return ready
}

func (q *eventQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.Entries)
}
