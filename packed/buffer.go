// Package packed provides a growable buffer that stores typed values back to
// back. Values are read back in the order they were written. Every value is
// preceded by a one-byte tag so that a read with the wrong type is detected
// instead of returning garbage.
//
// The layout is meant for exchanging data between processes of the same build
// and is not guaranteed to stay stable across versions.
package packed

import (
	"fmt"
)

const (
	// InitialCapacity is the capacity of a buffer created by New.
	InitialCapacity = 10

	// DefaultMaxLength caps the length of strings, byte arrays and
	// containers accepted when reading.
	DefaultMaxLength = 1 << 24
)

// A Buffer is a cursor-based store of typed values.
//
// The buffer keeps 0 <= read offset <= write offset <= capacity at all times.
// A buffer either owns its memory, in which case it grows on demand, or
// borrows a caller's region, in which case it never reallocates it.
type Buffer struct {
	mem       []byte
	wr        int
	rd        int
	owned     bool
	maxLength int
}

// An Option configures a Buffer.
type Option func(b *Buffer)

// WithMaxLength sets the largest string, byte array or container length that
// the buffer accepts when reading.
func WithMaxLength(n int) Option {
	return func(b *Buffer) {
		b.maxLength = n
	}
}

// New creates an empty buffer that owns its memory.
func New(opts ...Option) *Buffer {
	b := &Buffer{
		mem:       make([]byte, InitialCapacity),
		owned:     true,
		maxLength: DefaultMaxLength,
	}

	for _, o := range opts {
		o(b)
	}

	return b
}

// Wrap creates a buffer over an existing region. The whole region is
// considered as written, so that it can be read back. The buffer never
// reallocates mem, and writing past its capacity panics.
func Wrap(mem []byte, opts ...Option) *Buffer {
	b := &Buffer{
		mem:       mem[:cap(mem)],
		wr:        len(mem),
		owned:     false,
		maxLength: DefaultMaxLength,
	}

	for _, o := range opts {
		o(b)
	}

	return b
}

// Len returns the number of bytes written.
func (b *Buffer) Len() int {
	b.mustBeConsistent()
	return b.wr
}

// Cap returns the current capacity.
func (b *Buffer) Cap() int {
	return len(b.mem)
}

// Bytes returns the written bytes. The slice aliases the buffer's memory and
// is only valid until the next write.
func (b *Buffer) Bytes() []byte {
	b.mustBeConsistent()
	return b.mem[:b.wr]
}

// ReadOffset returns the offset of the next read.
func (b *Buffer) ReadOffset() int {
	return b.rd
}

// Remaining returns the number of written bytes that are not read yet.
func (b *Buffer) Remaining() int {
	return b.wr - b.rd
}

// Owned tells if the buffer owns its memory.
func (b *Buffer) Owned() bool {
	return b.owned
}

// MaxLength returns the largest length accepted when reading.
func (b *Buffer) MaxLength() int {
	return b.maxLength
}

// Rewind moves the read cursor back to the beginning.
func (b *Buffer) Rewind() {
	b.rd = 0
}

func (b *Buffer) mustBeConsistent() {
	if b.rd < 0 || b.rd > b.wr || b.wr > len(b.mem) {
		panic(fmt.Sprintf(
			"packed: corrupted buffer, read %d, write %d, capacity %d",
			b.rd, b.wr, len(b.mem)))
	}
}

// makeSpace guarantees that at least size bytes can be written.
func (b *Buffer) makeSpace(size int) {
	if len(b.mem)-b.wr >= size {
		return
	}

	if !b.owned {
		panic(fmt.Sprintf(
			"packed: writing %d bytes overflows a borrowed region of %d bytes",
			size, len(b.mem)))
	}

	incr := len(b.mem)
	if size > incr {
		incr = size
	}

	grown := make([]byte, len(b.mem)+incr)
	copy(grown, b.mem[:b.wr])
	b.mem = grown
}

// reserve returns the next n writable bytes and advances the write cursor.
func (b *Buffer) reserve(n int) []byte {
	b.makeSpace(n)
	s := b.mem[b.wr : b.wr+n]
	b.wr += n

	return s
}

// peek returns the next n readable bytes without moving the read cursor.
func (b *Buffer) peek(n int) ([]byte, bool) {
	if n < 0 || b.rd+n > b.wr {
		return nil, false
	}

	return b.mem[b.rd : b.rd+n], true
}
