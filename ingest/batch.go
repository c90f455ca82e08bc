package ingest

import (
	"github.com/termhub/termsync/feed"
)

// BatchSize is the number of records grouped into one unit of work.
const BatchSize = 128

// Batcher accumulates records and emits them in fixed-size groups. The final
// partial group is emitted by Flush.
type Batcher[T any] struct {
	size int
	buf  []T
	emit func([]T) error
}

// NewBatcher creates a batcher emitting groups of the given size.
func NewBatcher[T any](size int, emit func([]T) error) *Batcher[T] {
	if size <= 0 {
		size = BatchSize
	}
	return &Batcher[T]{
		size: size,
		buf:  make([]T, 0, size),
		emit: emit,
	}
}

// Add appends one record, emitting the group when it reaches the batch size.
func (b *Batcher[T]) Add(rec T) error {
	b.buf = append(b.buf, rec)
	if len(b.buf) >= b.size {
		return b.flush()
	}
	return nil
}

// Flush emits any remaining records as a final, smaller group.
func (b *Batcher[T]) Flush() error {
	if len(b.buf) == 0 {
		return nil
	}
	return b.flush()
}

func (b *Batcher[T]) flush() error {
	batch := b.buf
	// the emitted group is handed off to a worker; start a fresh buffer
	b.buf = make([]T, 0, b.size)
	return b.emit(batch)
}

// skipMappingFor reports whether a mapping embedded in a single-concept
// document must not be imported alongside that concept, with the reason.
//
// Question-answer mappings pointing at the imported concept belong to the
// question concept, which is not part of the document. Same-source mappings
// that resolve to the concept itself only restate its identity.
func skipMappingFor(c *feed.Concept, m *feed.Mapping) (bool, string) {
	if m.MapType == feed.MapTypeQuestionAnswer && m.ToConceptURL == c.URL {
		return true, "answer mapping owned by the question concept"
	}
	if m.ToSourceName == c.Source && m.ToConceptCode == c.ID {
		return true, "mapping restates the concept's own source and code"
	}
	return false, ""
}
