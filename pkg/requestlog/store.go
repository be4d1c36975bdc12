package requestlog

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when the log is empty or a position is out of range.
var ErrNotFound = errors.New("request not found")

// Store defines the operations the control plane performs on recorded requests.
type Store interface {
	// Append records an entry and returns its sequence number.
	Append(entry *Entry) int64

	// First returns the oldest entry.
	First() (*Entry, error)

	// Last returns the newest entry.
	Last() (*Entry, error)

	// At returns the entry at a 0-based position from the live head.
	At(pos int) (*Entry, error)

	// PopFirst removes and returns the oldest entry.
	PopFirst() (*Entry, error)

	// PopLast removes and returns the newest entry.
	PopLast() (*Entry, error)

	// Count returns the number of entries.
	Count() int

	// Clear removes all entries and restarts sequence numbering.
	Clear()
}

// Log is an in-memory Store backed by a slice used as a deque.
// It is safe for concurrent use.
type Log struct {
	mu         sync.Mutex
	entries    []*Entry
	nextSeq    int64
	maxEntries int
}

// New creates a Log. maxEntries > 0 caps the log, evicting the oldest entry
// when full; 0 means unlimited.
func New(maxEntries int) *Log {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Log{maxEntries: maxEntries}
}

// Append implements Store. The sequence number is assigned under the lock so
// log order always agrees with sequence order.
func (l *Log) Append(entry *Entry) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Seq = l.nextSeq
	l.nextSeq++

	if l.maxEntries > 0 && len(l.entries) >= l.maxEntries {
		l.entries[0] = nil
		l.entries = l.entries[1:]
	}
	l.entries = append(l.entries, entry)
	return entry.Seq
}

// First implements Store.
func (l *Log) First() (*Entry, error) {
	return l.At(0)
}

// Last implements Store.
func (l *Log) Last() (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return nil, ErrNotFound
	}
	return l.entries[len(l.entries)-1], nil
}

// At implements Store.
func (l *Log) At(pos int) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pos < 0 || pos >= len(l.entries) {
		return nil, ErrNotFound
	}
	return l.entries[pos], nil
}

// PopFirst implements Store.
func (l *Log) PopFirst() (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return nil, ErrNotFound
	}
	e := l.entries[0]
	l.entries[0] = nil
	l.entries = l.entries[1:]
	return e, nil
}

// PopLast implements Store.
func (l *Log) PopLast() (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if n == 0 {
		return nil, ErrNotFound
	}
	e := l.entries[n-1]
	l.entries[n-1] = nil
	l.entries = l.entries[:n-1]
	return e, nil
}

// Count implements Store.
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear implements Store.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.nextSeq = 0
}

// Entries returns a snapshot of all entries, oldest first.
func (l *Log) Entries() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Ensure Log implements Store.
var _ Store = (*Log)(nil)
