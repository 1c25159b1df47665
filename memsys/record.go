package memsys

import (
	"encoding/binary"
	"math"

	"github.com/streamforge/corex/internal/xerrors"
)

// Record is a logical tuple accessed by field name, backed transiently by a
// memory offset within a Buffer (spec §3). It is a thin, unsynchronized
// view — the same mutual-exclusion contract as Buffer applies.
type Record struct {
	Buf        Buffer
	Schema     *Schema
	TupleIndex int
	Capacity   int
}

func (r Record) fieldOffset(name string) (int, FieldType, error) {
	idx := r.Schema.FieldIndex(name)
	if idx < 0 {
		return 0, 0, &xerrors.BufferAccessError{Index: -1, Bound: len(r.Schema.Fields), What: "field " + name}
	}
	off, err := r.Schema.Offset(r.TupleIndex, idx, r.Capacity)
	return off, r.Schema.Fields[idx].Type, err
}

func (r Record) GetInt64(name string) (int64, error) {
	off, ft, err := r.fieldOffset(name)
	if err != nil {
		return 0, err
	}
	data := r.Buf.Data()
	switch ft {
	case Int8:
		return int64(int8(data[off])), nil
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(data[off:]))), nil
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(data[off:]))), nil
	case Int64:
		return int64(binary.LittleEndian.Uint64(data[off:])), nil
	case Uint8:
		return int64(data[off]), nil
	case Uint16:
		return int64(binary.LittleEndian.Uint16(data[off:])), nil
	case Uint32:
		return int64(binary.LittleEndian.Uint32(data[off:])), nil
	case Uint64:
		return int64(binary.LittleEndian.Uint64(data[off:])), nil
	default:
		return 0, xerrors.ErrBufferAccess
	}
}

func (r Record) SetInt64(name string, v int64) error {
	off, ft, err := r.fieldOffset(name)
	if err != nil {
		return err
	}
	data := r.Buf.Data()
	switch ft {
	case Int8, Uint8:
		data[off] = byte(v)
	case Int16, Uint16:
		binary.LittleEndian.PutUint16(data[off:], uint16(v))
	case Int32, Uint32:
		binary.LittleEndian.PutUint32(data[off:], uint32(v))
	case Int64, Uint64:
		binary.LittleEndian.PutUint64(data[off:], uint64(v))
	default:
		return xerrors.ErrBufferAccess
	}
	return nil
}

func (r Record) GetFloat64(name string) (float64, error) {
	off, ft, err := r.fieldOffset(name)
	if err != nil {
		return 0, err
	}
	data := r.Buf.Data()
	switch ft {
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))), nil
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data[off:])), nil
	default:
		return 0, xerrors.ErrBufferAccess
	}
}

func (r Record) SetFloat64(name string, v float64) error {
	off, ft, err := r.fieldOffset(name)
	if err != nil {
		return err
	}
	data := r.Buf.Data()
	switch ft {
	case Float32:
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(data[off:], math.Float64bits(v))
	default:
		return xerrors.ErrBufferAccess
	}
	return nil
}

func (r Record) GetBool(name string) (bool, error) {
	off, ft, err := r.fieldOffset(name)
	if err != nil {
		return false, err
	}
	if ft != Bool {
		return false, xerrors.ErrBufferAccess
	}
	return r.Buf.Data()[off] != 0, nil
}

func (r Record) SetBool(name string, v bool) error {
	off, ft, err := r.fieldOffset(name)
	if err != nil {
		return err
	}
	if ft != Bool {
		return xerrors.ErrBufferAccess
	}
	if v {
		r.Buf.Data()[off] = 1
	} else {
		r.Buf.Data()[off] = 0
	}
	return nil
}

// GetText reads a TEXT field: the slot holds a child-buffer index, and the
// payload is the full contents of that child buffer.
func (r Record) GetText(name string) (string, error) {
	off, ft, err := r.fieldOffset(name)
	if err != nil {
		return "", err
	}
	if ft != Text {
		return "", xerrors.ErrBufferAccess
	}
	idx := int(binary.LittleEndian.Uint32(r.Buf.Data()[off:]))
	child, err := r.Buf.LoadChild(idx)
	if err != nil {
		return "", err
	}
	defer child.Release()
	return string(child.Data()), nil
}

// SetText attaches v as a new child buffer (acquired from pool) and writes
// its index into the TEXT slot.
func (r Record) SetText(name string, v string, pool *BufferPool) error {
	off, ft, err := r.fieldOffset(name)
	if err != nil {
		return err
	}
	if ft != Text {
		return xerrors.ErrBufferAccess
	}
	child, ok := pool.GetUnpooledBuffer(len(v))
	if !ok {
		return xerrors.ErrPoolExhausted
	}
	copy(child.Data(), v)
	idx := r.Buf.AttachChild(child)
	child.Release() // parent now holds the only strong ref via children[]
	binary.LittleEndian.PutUint32(r.Buf.Data()[off:], uint32(idx))
	return nil
}
