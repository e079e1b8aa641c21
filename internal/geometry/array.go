package geometry

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/danmuck/cadview/internal/protocol"
)

// Array is one decoded numeric array. float32 data is held as an Arrow
// Float32 array; int32 and uint32 data both as Uint32. The declared dtype
// is kept so consumers can tell the two integer tags apart.
type Array struct {
	dtype protocol.DType
	data  arrow.Array
}

// NewFloat32 copies values into an allocator-backed float32 array.
func NewFloat32(mem memory.Allocator, values []float32) *Array {
	b := array.NewFloat32Builder(mem)
	defer b.Release()
	b.AppendValues(values, nil)
	return &Array{dtype: protocol.DTypeFloat32, data: b.NewFloat32Array()}
}

// NewUint32 copies values into an allocator-backed 32-bit lane array
// tagged with dtype (int32 or uint32).
func NewUint32(mem memory.Allocator, dtype protocol.DType, values []uint32) *Array {
	b := array.NewUint32Builder(mem)
	defer b.Release()
	b.AppendValues(values, nil)
	return &Array{dtype: dtype, data: b.NewUint32Array()}
}

func (a *Array) DType() protocol.DType { return a.dtype }

func (a *Array) Len() int { return a.data.Len() }

// Float32s returns the float32 values, or nil for integer arrays. The slice
// aliases the array memory and is valid until the last Release.
func (a *Array) Float32s() []float32 {
	if f, ok := a.data.(*array.Float32); ok {
		return f.Float32Values()
	}
	return nil
}

// Uint32s returns the 32-bit lane values, or nil for float arrays.
func (a *Array) Uint32s() []uint32 {
	if u, ok := a.data.(*array.Uint32); ok {
		return u.Uint32Values()
	}
	return nil
}

// Arrow exposes the underlying Arrow array for renderers that consume it
// directly.
func (a *Array) Arrow() arrow.Array { return a.data }

func (a *Array) Retain() { a.data.Retain() }

func (a *Array) Release() { a.data.Release() }
