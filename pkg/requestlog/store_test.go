package requestlog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryFor(path string) *Entry {
	return &Entry{Method: "GET", Path: path}
}

func paths(entries []*Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

func TestLogEmpty(t *testing.T) {
	t.Parallel()

	l := New(0)
	assert.Equal(t, 0, l.Count())

	for name, op := range map[string]func() (*Entry, error){
		"first":    l.First,
		"last":     l.Last,
		"at":       func() (*Entry, error) { return l.At(0) },
		"popFirst": l.PopFirst,
		"popLast":  l.PopLast,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := op()
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLogOrderingAndPopping(t *testing.T) {
	t.Parallel()

	l := New(0)
	for _, p := range []string{"/a", "/b", "/c", "/d"} {
		l.Append(entryFor(p))
	}
	require.Equal(t, 4, l.Count())

	first, err := l.First()
	require.NoError(t, err)
	assert.Equal(t, "/a", first.Path)

	last, err := l.Last()
	require.NoError(t, err)
	assert.Equal(t, "/d", last.Path)

	at2, err := l.At(2)
	require.NoError(t, err)
	assert.Equal(t, "/c", at2.Path)

	popped, err := l.PopFirst()
	require.NoError(t, err)
	assert.Equal(t, "/a", popped.Path)

	// Positions are relative to the live head.
	at0, err := l.At(0)
	require.NoError(t, err)
	assert.Equal(t, "/b", at0.Path)

	popped, err = l.PopLast()
	require.NoError(t, err)
	assert.Equal(t, "/d", popped.Path)

	assert.Equal(t, []string{"/b", "/c"}, paths(l.Entries()))

	_, err = l.At(2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.At(-1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLogSequenceNumbers(t *testing.T) {
	t.Parallel()

	l := New(0)
	assert.Equal(t, int64(0), l.Append(entryFor("/a")))
	assert.Equal(t, int64(1), l.Append(entryFor("/b")))

	_, err := l.PopFirst()
	require.NoError(t, err)
	assert.Equal(t, int64(2), l.Append(entryFor("/c")))

	l.Clear()
	assert.Equal(t, 0, l.Count())
	assert.Equal(t, int64(0), l.Append(entryFor("/d")))
}

func TestLogMaxEntriesEvictsOldest(t *testing.T) {
	t.Parallel()

	l := New(2)
	l.Append(entryFor("/a"))
	l.Append(entryFor("/b"))
	l.Append(entryFor("/c"))

	assert.Equal(t, []string{"/b", "/c"}, paths(l.Entries()))
}

func TestLogConcurrentAppend(t *testing.T) {
	t.Parallel()

	l := New(0)
	const n = 200

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Append(entryFor(fmt.Sprintf("/r/%d", i)))
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, l.Count())
	for i, e := range l.Entries() {
		assert.Equal(t, int64(i), e.Seq, "log order must follow sequence order")
	}
}
