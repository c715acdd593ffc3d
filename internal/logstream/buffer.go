package logstream

import "github.com/timvw/dock-tabs/internal/model"

// Buffer is a time-ordered, bounded sequence of log entries. When full,
// the oldest entries are evicted first. Buffer is not safe for concurrent
// use; Session guards it.
type Buffer struct {
	capacity int
	entries  []model.LogEntry
}

// NewBuffer returns an empty buffer holding at most capacity entries.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = model.LogCapacity
	}
	return &Buffer{capacity: capacity}
}

// Append adds e and evicts from the front until the capacity holds.
func (b *Buffer) Append(e model.LogEntry) {
	b.entries = append(b.entries, e)
	if over := len(b.entries) - b.capacity; over > 0 {
		// Copy down instead of reslicing so the backing array does not grow
		// without bound on a long-running stream.
		n := copy(b.entries, b.entries[over:])
		clear(b.entries[n:])
		b.entries = b.entries[:n]
	}
}

// Reset replaces the contents with the most recent capacity entries of es.
func (b *Buffer) Reset(es []model.LogEntry) {
	if len(es) > b.capacity {
		es = es[len(es)-b.capacity:]
	}
	b.entries = append(b.entries[:0], es...)
}

// Clear removes every entry.
func (b *Buffer) Clear() {
	clear(b.entries)
	b.entries = b.entries[:0]
}

// Len returns the number of entries.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Snapshot returns a copy of the entries, oldest first.
func (b *Buffer) Snapshot() []model.LogEntry {
	out := make([]model.LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}
