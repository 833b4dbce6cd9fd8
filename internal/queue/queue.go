// Package queue holds players waiting for an opponent. Insertion order is wait
// order and handles are unique keys. The queue is not safe for concurrent use;
// the arena goroutine owns it.
package queue

import (
	"errors"
	"time"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/models"
)

var (
	ErrAlreadyQueued = errors.New("already queued")
	ErrNotQueued     = errors.New("not in queue")
)

// Entry is a waiting player. ConnID locates the requesting connection; the queue
// never owns the connection's lifecycle.
type Entry struct {
	ID         int64
	Handle     string
	Reputation int
	JoinedAt   time.Time
	ConnID     string
}

type Queue struct {
	entries  []*Entry
	byHandle map[string]*Entry
	nextID   int64
}

func New() *Queue {
	return &Queue{byHandle: make(map[string]*Entry)}
}

func (q *Queue) Len() int { return len(q.entries) }

// Join appends a player to the back of the queue.
func (q *Queue) Join(handle string, reputation int, connID string, now time.Time) (*Entry, error) {
	if _, ok := q.byHandle[handle]; ok {
		return nil, ErrAlreadyQueued
	}
	q.nextID++
	e := &Entry{ID: q.nextID, Handle: handle, Reputation: reputation, JoinedAt: now, ConnID: connID}
	q.entries = append(q.entries, e)
	q.byHandle[handle] = e
	return e, nil
}

// Leave removes the entry owned by connID and returns its handle.
func (q *Queue) Leave(connID string) (string, error) {
	for i, e := range q.entries {
		if e.ConnID == connID {
			q.removeAt(i)
			return e.Handle, nil
		}
	}
	return "", ErrNotQueued
}

// TryPair removes and returns the two longest-waiting entries, or ok=false when
// fewer than two are waiting.
func (q *Queue) TryPair() (a, b *Entry, ok bool) {
	if len(q.entries) < 2 {
		return nil, nil, false
	}
	a, b = q.entries[0], q.entries[1]
	q.removeAt(1)
	q.removeAt(0)
	return a, b, true
}

// Position returns the 1-based position of connID's entry, or 0.
func (q *Queue) Position(connID string) int {
	for i, e := range q.entries {
		if e.ConnID == connID {
			return i + 1
		}
	}
	return 0
}

// Positions maps each queued connection to its 1-based position.
func (q *Queue) Positions() map[string]int {
	out := make(map[string]int, len(q.entries))
	for i, e := range q.entries {
		out[e.ConnID] = i + 1
	}
	return out
}

// Snapshot lists the queue in wait order.
func (q *Queue) Snapshot() []models.QueueEntry {
	out := make([]models.QueueEntry, 0, len(q.entries))
	for i, e := range q.entries {
		out = append(out, models.QueueEntry{Position: i + 1, Handle: e.Handle, Reputation: e.Reputation})
	}
	return out
}

func (q *Queue) removeAt(i int) {
	delete(q.byHandle, q.entries[i].Handle)
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
}
