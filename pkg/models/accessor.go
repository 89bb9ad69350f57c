package models

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/qmuntal/gltf"

	"github.com/taigrr/lumen/pkg/math3d"
)

// Accessor is a decoded accessor. Data holds Count*Components values in one
// of []int8, []uint8, []int16, []uint16, []uint32 or []float32, matching
// ComponentType.
type Accessor struct {
	Index         int
	Type          gltf.AccessorType
	ComponentType gltf.ComponentType
	Normalized    bool
	Count         int
	Data          any
}

// Components returns the number of values per element.
func (a *Accessor) Components() int { return components(a.Type) }

// Float32s returns the data as float32. Normalized integer data is mapped
// to [0, 1] or [-1, 1].
func (a *Accessor) Float32s() []float32 {
	switch v := a.Data.(type) {
	case []float32:
		return v
	case []int8:
		return toFloat(v, a.Normalized, 127, true)
	case []uint8:
		return toFloat(v, a.Normalized, 255, false)
	case []int16:
		return toFloat(v, a.Normalized, 32767, true)
	case []uint16:
		return toFloat(v, a.Normalized, 65535, false)
	case []uint32:
		return toFloat(v, false, 1, false)
	}
	return nil
}

// Uint32s returns integer data widened to uint32. Float data is truncated.
func (a *Accessor) Uint32s() []uint32 {
	switch v := a.Data.(type) {
	case []uint32:
		return v
	case []uint8:
		return widen(v)
	case []uint16:
		return widen(v)
	case []int8:
		return widen(v)
	case []int16:
		return widen(v)
	case []float32:
		return widen(v)
	}
	return nil
}

// Mat4s returns MAT4 data as matrices. Data that does not hold whole
// matrices is truncated to the last complete one.
func (a *Accessor) Mat4s() []math3d.Mat4 {
	f := a.Float32s()
	out := make([]math3d.Mat4, min(a.Count, len(f)/16))
	for i := range out {
		out[i] = math3d.FromSlice(f[i*16 : i*16+16])
	}
	return out
}

type component interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~uint32 | ~float32
}

func toFloat[T component](v []T, normalized bool, scale float32, signed bool) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		f := float32(x)
		if normalized {
			f /= scale
			if signed && f < -1 {
				f = -1
			}
		}
		out[i] = f
	}
	return out
}

func widen[T component](v []T) []uint32 {
	out := make([]uint32, len(v))
	for i, x := range v {
		out[i] = uint32(x)
	}
	return out
}

func components(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	}
	return 1
}

type reader[T component] struct {
	size int
	read func([]byte) T
}

var (
	readInt8   = reader[int8]{1, func(b []byte) int8 { return int8(b[0]) }}
	readUint8  = reader[uint8]{1, func(b []byte) uint8 { return b[0] }}
	readInt16  = reader[int16]{2, func(b []byte) int16 { return int16(binary.LittleEndian.Uint16(b)) }}
	readUint16 = reader[uint16]{2, binary.LittleEndian.Uint16}
	readUint32 = reader[uint32]{4, binary.LittleEndian.Uint32}
	readFloat  = reader[float32]{4, func(b []byte) float32 {
		return math32.Float32frombits(binary.LittleEndian.Uint32(b))
	}}
)

// decodeStrided reads count elements of comps values each. A zero stride
// means tightly packed.
func decodeStrided[T component](r reader[T], src []byte, count, comps, stride int) ([]T, error) {
	if count < 0 || stride < 0 {
		return nil, formatErrorf("negative count %d or stride %d", count, stride)
	}
	elem := comps * r.size
	if stride == 0 {
		stride = elem
	}
	if count > 0 && (count-1)*stride+elem > len(src) {
		return nil, formatErrorf("%d elements of %d bytes with stride %d overrun a %d byte view",
			count, elem, stride, len(src))
	}
	out := make([]T, count*comps)
	for i := range count {
		base := i * stride
		for c := range comps {
			out[i*comps+c] = r.read(src[base+c*r.size:])
		}
	}
	return out, nil
}

func (rs *resolver) decodeAccessor(i int, a *gltf.Accessor) (*Accessor, error) {
	var (
		data any
		err  error
	)
	switch a.ComponentType {
	case gltf.ComponentByte:
		data, err = decodeWith(rs, i, a, readInt8)
	case gltf.ComponentUbyte:
		data, err = decodeWith(rs, i, a, readUint8)
	case gltf.ComponentShort:
		data, err = decodeWith(rs, i, a, readInt16)
	case gltf.ComponentUshort:
		data, err = decodeWith(rs, i, a, readUint16)
	case gltf.ComponentUint:
		data, err = decodeWith(rs, i, a, readUint32)
	case gltf.ComponentFloat:
		data, err = decodeWith(rs, i, a, readFloat)
	default:
		return nil, formatErrorf("accessor %d has unknown component type %v", i, a.ComponentType)
	}
	if err != nil {
		return nil, fmt.Errorf("accessor %d: %w", i, err)
	}
	return &Accessor{
		Index:         i,
		Type:          a.Type,
		ComponentType: a.ComponentType,
		Normalized:    a.Normalized,
		Count:         a.Count,
		Data:          data,
	}, nil
}

func decodeWith[T component](rs *resolver, i int, a *gltf.Accessor, r reader[T]) ([]T, error) {
	owner := fmt.Sprintf("accessor %d", i)
	comps := components(a.Type)

	if a.Count < 0 {
		return nil, formatErrorf("negative count %d", a.Count)
	}

	var data []T
	if a.BufferView == nil {
		data = make([]T, a.Count*comps)
	} else {
		src, stride, err := rs.view(*a.BufferView, owner)
		if err != nil {
			return nil, err
		}
		if a.ByteOffset < 0 || a.ByteOffset > len(src) {
			return nil, formatErrorf("byte offset %d past a %d byte view", a.ByteOffset, len(src))
		}
		if data, err = decodeStrided(r, src[a.ByteOffset:], a.Count, comps, stride); err != nil {
			return nil, err
		}
	}

	s := a.Sparse
	if s == nil {
		return data, nil
	}
	indices, err := rs.sparseIndices(s, owner)
	if err != nil {
		return nil, err
	}
	src, _, err := rs.view(s.Values.BufferView, owner)
	if err != nil {
		return nil, err
	}
	if s.Values.ByteOffset < 0 || s.Values.ByteOffset > len(src) {
		return nil, formatErrorf("sparse values offset %d past a %d byte view", s.Values.ByteOffset, len(src))
	}
	values, err := decodeStrided(r, src[s.Values.ByteOffset:], s.Count, comps, 0)
	if err != nil {
		return nil, fmt.Errorf("sparse values: %w", err)
	}
	for k, at := range indices {
		e := int(at)
		if e >= a.Count {
			return nil, &ReferenceError{Kind: "sparse element", Index: e, Len: a.Count, Owner: owner}
		}
		copy(data[e*comps:(e+1)*comps], values[k*comps:(k+1)*comps])
	}
	return data, nil
}

func (rs *resolver) sparseIndices(s *gltf.Sparse, owner string) ([]uint32, error) {
	src, _, err := rs.view(s.Indices.BufferView, owner)
	if err != nil {
		return nil, err
	}
	if s.Indices.ByteOffset < 0 || s.Indices.ByteOffset > len(src) {
		return nil, formatErrorf("sparse indices offset %d past a %d byte view", s.Indices.ByteOffset, len(src))
	}
	src = src[s.Indices.ByteOffset:]
	switch s.Indices.ComponentType {
	case gltf.ComponentUbyte:
		v, err := decodeStrided(readUint8, src, s.Count, 1, 0)
		return widen(v), err
	case gltf.ComponentUshort:
		v, err := decodeStrided(readUint16, src, s.Count, 1, 0)
		return widen(v), err
	case gltf.ComponentUint:
		return decodeStrided(readUint32, src, s.Count, 1, 0)
	}
	return nil, formatErrorf("sparse indices have component type %v", s.Indices.ComponentType)
}
