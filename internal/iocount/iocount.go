// Package iocount provides byte-counting reader wrappers used for
// download and parse progress accounting.
package iocount

import (
	"io"
	"sync/atomic"
)

// Reader wraps an io.Reader and counts bytes read through it.
// The count is safe to read from other goroutines.
type Reader struct {
	r io.Reader
	n atomic.Int64
}

// NewReader returns a counting wrapper around r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Read implements io.Reader.
func (c *Reader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// Count returns the number of bytes read so far.
func (c *Reader) Count() int64 {
	return c.n.Load()
}
