package packed

import (
	"encoding/binary"
	"math"
)

type tag byte

const (
	tagBool    tag = 'b'
	tagInt8    tag = 'c'
	tagInt16   tag = 'h'
	tagInt32   tag = 'i'
	tagInt64   tag = 'l'
	tagUint8   tag = 'C'
	tagUint16  tag = 'H'
	tagUint32  tag = 'I'
	tagUint64  tag = 'L'
	tagFloat32 tag = 'f'
	tagFloat64 tag = 'd'
	tagString  tag = 's'
	tagBytes   tag = 'a'
)

var order = binary.LittleEndian

func (b *Buffer) addScalar(t tag, size int) []byte {
	s := b.reserve(size + 1)
	s[0] = byte(t)

	return s[1:]
}

// getScalar returns the payload of the next value if it has tag t. The read
// cursor only moves on success.
func (b *Buffer) getScalar(t tag, size int) ([]byte, bool) {
	s, ok := b.peek(size + 1)
	if !ok || tag(s[0]) != t {
		return nil, false
	}

	b.rd += size + 1

	return s[1:], true
}

// AddBool appends a bool.
func (b *Buffer) AddBool(v bool) {
	s := b.addScalar(tagBool, 1)
	s[0] = 0
	if v {
		s[0] = 1
	}
}

// GetBool reads a bool.
func (b *Buffer) GetBool(v *bool) bool {
	s, ok := b.getScalar(tagBool, 1)
	if !ok {
		return false
	}

	*v = s[0] != 0

	return true
}

// AddInt8 appends an int8.
func (b *Buffer) AddInt8(v int8) {
	b.addScalar(tagInt8, 1)[0] = byte(v)
}

// GetInt8 reads an int8.
func (b *Buffer) GetInt8(v *int8) bool {
	s, ok := b.getScalar(tagInt8, 1)
	if !ok {
		return false
	}

	*v = int8(s[0])

	return true
}

// AddInt16 appends an int16.
func (b *Buffer) AddInt16(v int16) {
	order.PutUint16(b.addScalar(tagInt16, 2), uint16(v))
}

// GetInt16 reads an int16.
func (b *Buffer) GetInt16(v *int16) bool {
	s, ok := b.getScalar(tagInt16, 2)
	if !ok {
		return false
	}

	*v = int16(order.Uint16(s))

	return true
}

// AddInt32 appends an int32.
func (b *Buffer) AddInt32(v int32) {
	order.PutUint32(b.addScalar(tagInt32, 4), uint32(v))
}

// GetInt32 reads an int32.
func (b *Buffer) GetInt32(v *int32) bool {
	s, ok := b.getScalar(tagInt32, 4)
	if !ok {
		return false
	}

	*v = int32(order.Uint32(s))

	return true
}

// AddInt64 appends an int64.
func (b *Buffer) AddInt64(v int64) {
	order.PutUint64(b.addScalar(tagInt64, 8), uint64(v))
}

// GetInt64 reads an int64.
func (b *Buffer) GetInt64(v *int64) bool {
	s, ok := b.getScalar(tagInt64, 8)
	if !ok {
		return false
	}

	*v = int64(order.Uint64(s))

	return true
}

// AddInt appends an int. It is stored as an int64.
func (b *Buffer) AddInt(v int) {
	b.AddInt64(int64(v))
}

// GetInt reads an int written by AddInt.
func (b *Buffer) GetInt(v *int) bool {
	var x int64
	if !b.GetInt64(&x) {
		return false
	}

	*v = int(x)

	return true
}

// AddUint8 appends a uint8.
func (b *Buffer) AddUint8(v uint8) {
	b.addScalar(tagUint8, 1)[0] = v
}

// GetUint8 reads a uint8.
func (b *Buffer) GetUint8(v *uint8) bool {
	s, ok := b.getScalar(tagUint8, 1)
	if !ok {
		return false
	}

	*v = s[0]

	return true
}

// AddUint16 appends a uint16.
func (b *Buffer) AddUint16(v uint16) {
	order.PutUint16(b.addScalar(tagUint16, 2), v)
}

// GetUint16 reads a uint16.
func (b *Buffer) GetUint16(v *uint16) bool {
	s, ok := b.getScalar(tagUint16, 2)
	if !ok {
		return false
	}

	*v = order.Uint16(s)

	return true
}

// AddUint32 appends a uint32.
func (b *Buffer) AddUint32(v uint32) {
	order.PutUint32(b.addScalar(tagUint32, 4), v)
}

// GetUint32 reads a uint32.
func (b *Buffer) GetUint32(v *uint32) bool {
	s, ok := b.getScalar(tagUint32, 4)
	if !ok {
		return false
	}

	*v = order.Uint32(s)

	return true
}

// AddUint64 appends a uint64.
func (b *Buffer) AddUint64(v uint64) {
	order.PutUint64(b.addScalar(tagUint64, 8), v)
}

// GetUint64 reads a uint64.
func (b *Buffer) GetUint64(v *uint64) bool {
	s, ok := b.getScalar(tagUint64, 8)
	if !ok {
		return false
	}

	*v = order.Uint64(s)

	return true
}

// AddUint appends a uint. It is stored as a uint64.
func (b *Buffer) AddUint(v uint) {
	b.AddUint64(uint64(v))
}

// GetUint reads a uint written by AddUint.
func (b *Buffer) GetUint(v *uint) bool {
	var x uint64
	if !b.GetUint64(&x) {
		return false
	}

	*v = uint(x)

	return true
}

// AddFloat32 appends a float32.
func (b *Buffer) AddFloat32(v float32) {
	order.PutUint32(b.addScalar(tagFloat32, 4), math.Float32bits(v))
}

// GetFloat32 reads a float32.
func (b *Buffer) GetFloat32(v *float32) bool {
	s, ok := b.getScalar(tagFloat32, 4)
	if !ok {
		return false
	}

	*v = math.Float32frombits(order.Uint32(s))

	return true
}

// AddFloat64 appends a float64.
func (b *Buffer) AddFloat64(v float64) {
	order.PutUint64(b.addScalar(tagFloat64, 8), math.Float64bits(v))
}

// GetFloat64 reads a float64.
func (b *Buffer) GetFloat64(v *float64) bool {
	s, ok := b.getScalar(tagFloat64, 8)
	if !ok {
		return false
	}

	*v = math.Float64frombits(order.Uint64(s))

	return true
}

// AddString appends a string as its length followed by its bytes.
func (b *Buffer) AddString(v string) {
	s := b.addSized(tagString, len(v))
	copy(s, v)
}

// GetString reads a string. It fails if the stored length is larger than the
// buffer's maximum length.
func (b *Buffer) GetString(v *string) bool {
	s, ok := b.getSized(tagString)
	if !ok {
		return false
	}

	*v = string(s)

	return true
}

// AddBytes appends a byte array as its length followed by its content.
func (b *Buffer) AddBytes(v []byte) {
	s := b.addSized(tagBytes, len(v))
	copy(s, v)
}

// GetBytes reads a byte array into a newly allocated slice. It fails if the
// stored length is larger than the buffer's maximum length.
func (b *Buffer) GetBytes(v *[]byte) bool {
	s, ok := b.getSized(tagBytes)
	if !ok {
		return false
	}

	*v = append([]byte(nil), s...)

	return true
}

func (b *Buffer) addSized(t tag, n int) []byte {
	if uint64(n) > math.MaxUint32 {
		panic("packed: value too long")
	}

	s := b.reserve(1 + 4 + n)
	s[0] = byte(t)
	order.PutUint32(s[1:5], uint32(n))

	return s[5:]
}

func (b *Buffer) getSized(t tag) ([]byte, bool) {
	head, ok := b.peek(5)
	if !ok || tag(head[0]) != t {
		return nil, false
	}

	n := int(order.Uint32(head[1:5]))
	if n > b.maxLength {
		return nil, false
	}

	all, ok := b.peek(5 + n)
	if !ok {
		return nil, false
	}

	b.rd += 5 + n

	return all[5:], true
}
