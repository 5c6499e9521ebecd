package packed

import (
	"fmt"
	"reflect"
)

// Scalar lists the kinds of values that can be stored directly. Named types
// are accepted and stored according to their underlying kind.
type Scalar interface {
	~bool |
		~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 |
		~string
}

// A Packable is a composite value that knows how to write itself into a
// buffer and to read itself back.
type Packable interface {
	Pack(b *Buffer)
	Unpack(b *Buffer) bool
}

// Put appends a scalar value.
func Put[T Scalar](b *Buffer, v T) {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Bool:
		b.AddBool(rv.Bool())
	case reflect.Int:
		b.AddInt(int(rv.Int()))
	case reflect.Int8:
		b.AddInt8(int8(rv.Int()))
	case reflect.Int16:
		b.AddInt16(int16(rv.Int()))
	case reflect.Int32:
		b.AddInt32(int32(rv.Int()))
	case reflect.Int64:
		b.AddInt64(rv.Int())
	case reflect.Uint:
		b.AddUint(uint(rv.Uint()))
	case reflect.Uint8:
		b.AddUint8(uint8(rv.Uint()))
	case reflect.Uint16:
		b.AddUint16(uint16(rv.Uint()))
	case reflect.Uint32:
		b.AddUint32(uint32(rv.Uint()))
	case reflect.Uint64:
		b.AddUint64(rv.Uint())
	case reflect.Float32:
		b.AddFloat32(float32(rv.Float()))
	case reflect.Float64:
		b.AddFloat64(rv.Float())
	case reflect.String:
		b.AddString(rv.String())
	default:
		panic(fmt.Sprintf("packed: kind %s is not supported", rv.Kind()))
	}
}

// Take reads a scalar value written by Put with the same type.
//
//nolint:funlen,gocyclo
func Take[T Scalar](b *Buffer, v *T) bool {
	rv := reflect.ValueOf(v).Elem()

	switch rv.Kind() {
	case reflect.Bool:
		var x bool
		if !b.GetBool(&x) {
			return false
		}
		rv.SetBool(x)
	case reflect.Int:
		var x int
		if !b.GetInt(&x) {
			return false
		}
		rv.SetInt(int64(x))
	case reflect.Int8:
		var x int8
		if !b.GetInt8(&x) {
			return false
		}
		rv.SetInt(int64(x))
	case reflect.Int16:
		var x int16
		if !b.GetInt16(&x) {
			return false
		}
		rv.SetInt(int64(x))
	case reflect.Int32:
		var x int32
		if !b.GetInt32(&x) {
			return false
		}
		rv.SetInt(int64(x))
	case reflect.Int64:
		var x int64
		if !b.GetInt64(&x) {
			return false
		}
		rv.SetInt(x)
	case reflect.Uint:
		var x uint
		if !b.GetUint(&x) {
			return false
		}
		rv.SetUint(uint64(x))
	case reflect.Uint8:
		var x uint8
		if !b.GetUint8(&x) {
			return false
		}
		rv.SetUint(uint64(x))
	case reflect.Uint16:
		var x uint16
		if !b.GetUint16(&x) {
			return false
		}
		rv.SetUint(uint64(x))
	case reflect.Uint32:
		var x uint32
		if !b.GetUint32(&x) {
			return false
		}
		rv.SetUint(uint64(x))
	case reflect.Uint64:
		var x uint64
		if !b.GetUint64(&x) {
			return false
		}
		rv.SetUint(x)
	case reflect.Float32:
		var x float32
		if !b.GetFloat32(&x) {
			return false
		}
		rv.SetFloat(float64(x))
	case reflect.Float64:
		var x float64
		if !b.GetFloat64(&x) {
			return false
		}
		rv.SetFloat(x)
	case reflect.String:
		var x string
		if !b.GetString(&x) {
			return false
		}
		rv.SetString(x)
	default:
		panic(fmt.Sprintf("packed: kind %s is not supported", rv.Kind()))
	}

	return true
}

func (b *Buffer) addCount(n int) {
	b.AddUint32(uint32(n))
}

func (b *Buffer) getCount() (int, bool) {
	var n uint32
	if !b.GetUint32(&n) {
		return 0, false
	}

	if int(n) > b.maxLength {
		return 0, false
	}

	return int(n), true
}

// readAll runs read and moves the read cursor back if it fails, so that a
// failed container read leaves the buffer untouched.
func (b *Buffer) readAll(read func() bool) bool {
	start := b.rd
	if !read() {
		b.rd = start
		return false
	}

	return true
}

// PutSlice appends the element count followed by every element.
func PutSlice[T Scalar](b *Buffer, s []T) {
	b.addCount(len(s))
	for _, v := range s {
		Put(b, v)
	}
}

// TakeSlice reads a slice written by PutSlice.
func TakeSlice[T Scalar](b *Buffer, s *[]T) bool {
	return b.readAll(func() bool {
		n, ok := b.getCount()
		if !ok {
			return false
		}

		out := make([]T, n)
		for i := range out {
			if !Take(b, &out[i]) {
				return false
			}
		}

		*s = out

		return true
	})
}

// PutSet appends the element count followed by every member.
func PutSet[T Scalar](b *Buffer, set map[T]struct{}) {
	b.addCount(len(set))
	for v := range set {
		Put(b, v)
	}
}

// TakeSet reads a set written by PutSet.
func TakeSet[T Scalar](b *Buffer, set *map[T]struct{}) bool {
	return b.readAll(func() bool {
		n, ok := b.getCount()
		if !ok {
			return false
		}

		out := make(map[T]struct{}, n)
		for i := 0; i < n; i++ {
			var v T
			if !Take(b, &v) {
				return false
			}
			out[v] = struct{}{}
		}

		*set = out

		return true
	})
}

// PutMap appends the entry count followed by every key and value.
func PutMap[K, V Scalar](b *Buffer, m map[K]V) {
	b.addCount(len(m))
	for k, v := range m {
		Put(b, k)
		Put(b, v)
	}
}

// TakeMap reads a map written by PutMap.
func TakeMap[K, V Scalar](b *Buffer, m *map[K]V) bool {
	return b.readAll(func() bool {
		n, ok := b.getCount()
		if !ok {
			return false
		}

		out := make(map[K]V, n)
		for i := 0; i < n; i++ {
			var k K
			var v V
			if !Take(b, &k) || !Take(b, &v) {
				return false
			}
			out[k] = v
		}

		*m = out

		return true
	})
}

// PutPair appends two values.
func PutPair[A, B Scalar](b *Buffer, first A, second B) {
	Put(b, first)
	Put(b, second)
}

// TakePair reads two values written by PutPair.
func TakePair[A, B Scalar](b *Buffer, first *A, second *B) bool {
	return b.readAll(func() bool {
		return Take(b, first) && Take(b, second)
	})
}

// PutPackables appends the element count followed by every element.
func PutPackables[T Packable](b *Buffer, s []T) {
	b.addCount(len(s))
	for _, v := range s {
		v.Pack(b)
	}
}

// TakePackables reads a sequence written by PutPackables. Each element is
// allocated and then asked to unpack itself.
func TakePackables[T any, P interface {
	*T
	Packable
}](b *Buffer, s *[]P) bool {
	return b.readAll(func() bool {
		n, ok := b.getCount()
		if !ok {
			return false
		}

		out := make([]P, n)
		for i := range out {
			out[i] = P(new(T))
			if !out[i].Unpack(b) {
				return false
			}
		}

		*s = out

		return true
	})
}
