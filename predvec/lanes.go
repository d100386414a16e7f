package predvec

import "encoding/binary"

// SignedLane and UnsignedLane are the element types a vector register can
// be viewed as. Generic expanders instantiate once per (op, type) pair,
// replacing the per-width function families of a macro-based design.
type SignedLane interface {
	~int8 | ~int16 | ~int32 | ~int64
}

type UnsignedLane interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

type Lane interface {
	SignedLane | UnsignedLane
}

// laneBytes returns the storage width of T in bytes.
func laneBytes[T Lane]() int {
	var t T
	switch any(t).(type) {
	case int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32:
		return 4
	default:
		return 8
	}
}

// load reads the lane of type T starting at byte offset off.
func load[T Lane](v Vector, off int) T {
	var t T
	switch p := any(&t).(type) {
	case *int8:
		*p = int8(v[off])
	case *uint8:
		*p = v[off]
	case *int16:
		*p = int16(binary.LittleEndian.Uint16(v[off:]))
	case *uint16:
		*p = binary.LittleEndian.Uint16(v[off:])
	case *int32:
		*p = int32(binary.LittleEndian.Uint32(v[off:]))
	case *uint32:
		*p = binary.LittleEndian.Uint32(v[off:])
	case *int64:
		*p = int64(binary.LittleEndian.Uint64(v[off:]))
	case *uint64:
		*p = binary.LittleEndian.Uint64(v[off:])
	}
	return t
}

// store writes the lane of type T starting at byte offset off.
func store[T Lane](v Vector, off int, x T) {
	switch t := any(x).(type) {
	case int8:
		v[off] = uint8(t)
	case uint8:
		v[off] = t
	case int16:
		binary.LittleEndian.PutUint16(v[off:], uint16(t))
	case uint16:
		binary.LittleEndian.PutUint16(v[off:], t)
	case int32:
		binary.LittleEndian.PutUint32(v[off:], uint32(t))
	case uint32:
		binary.LittleEndian.PutUint32(v[off:], t)
	case int64:
		binary.LittleEndian.PutUint64(v[off:], uint64(t))
	case uint64:
		binary.LittleEndian.PutUint64(v[off:], t)
	}
}
