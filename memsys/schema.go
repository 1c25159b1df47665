package memsys

import "github.com/streamforge/corex/internal/xerrors"

// FieldType is a physical field type (spec §3).
type FieldType int

const (
	Int8 FieldType = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Bool
	Char
	Text // variable-length; represented by a child-buffer index in the slot
)

// Size returns the fixed on-wire width of t, in bytes. Text's slot holds a
// uint32 child-buffer index, not the payload itself.
func (t FieldType) Size() int {
	switch t {
	case Int8, Uint8, Bool, Char:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32, Text:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		panic("memsys: unknown field type")
	}
}

// Field is one (name, physical type) pair in a Schema.
type Field struct {
	Name string
	Type FieldType
}

// Layout selects row-major vs column-major physical placement.
type Layout int

const (
	RowMajor Layout = iota
	ColumnMajor
)

// Schema is an ordered sequence of fields plus a layout, deterministically
// mapping (tupleIndex, fieldIndex) -> byte offset within a buffer (spec §3).
type Schema struct {
	Fields     []Field
	Layout     Layout
	recordSize int
	offsets    []int // field -> intra-record byte offset (row-major only)
}

// NewSchema builds a Schema and precomputes its record size / per-field
// offsets.
func NewSchema(layout Layout, fields ...Field) *Schema {
	s := &Schema{Fields: fields, Layout: layout}
	s.offsets = make([]int, len(fields))
	off := 0
	for i, f := range fields {
		s.offsets[i] = off
		off += f.Type.Size()
	}
	s.recordSize = off
	return s
}

// RecordSize is the fixed byte width of one tuple under this schema.
func (s *Schema) RecordSize() int { return s.recordSize }

// Capacity returns floor(bufferSize / recordSize), per spec §3.
func (s *Schema) Capacity(bufferSize int) int {
	if s.recordSize == 0 {
		return 0
	}
	return bufferSize / s.recordSize
}

// Offset returns the byte offset of (tupleIndex, fieldIndex) within a
// buffer of the given capacity, per the schema's layout.
func (s *Schema) Offset(tupleIndex, fieldIndex, capacity int) (int, error) {
	if fieldIndex < 0 || fieldIndex >= len(s.Fields) {
		return 0, &xerrors.BufferAccessError{Index: fieldIndex, Bound: len(s.Fields), What: "field index"}
	}
	if tupleIndex < 0 || tupleIndex >= capacity {
		return 0, &xerrors.BufferAccessError{Index: tupleIndex, Bound: capacity, What: "tuple index"}
	}
	switch s.Layout {
	case RowMajor:
		return tupleIndex*s.recordSize + s.offsets[fieldIndex], nil
	case ColumnMajor:
		colStart := 0
		for i := 0; i < fieldIndex; i++ {
			colStart += s.Fields[i].Type.Size() * capacity
		}
		return colStart + tupleIndex*s.Fields[fieldIndex].Type.Size(), nil
	default:
		panic("memsys: unknown layout")
	}
}

// FieldIndex returns the index of the named field, or -1.
func (s *Schema) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
