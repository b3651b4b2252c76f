// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import (
	"bytes"
	"fmt"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/mpool"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/nulls"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
)

const (
	FLAT     = iota // flat vector represents an uncompressed column
	CONSTANT        // const vector, one stored element repeated length times
)

// UnknownNullCount marks the cached null count dirty. Any mutable access
// path stores it; NullCount recomputes from the null set when it sees it.
const UnknownNullCount = -1

// Vector represents a column: a typed, contiguous element buffer, an
// optional null set, and owned child vectors for variable length types
// (varchar stores an int32 offsets child and a byte child).
type Vector struct {
	class int
	typ   types.Type
	nsp   *nulls.Nulls

	// data of fixed length elements; unused for varlen parents
	data []byte

	// children of varlen vectors: [offsets, bytes]
	children []*Vector

	nullCount int

	capacity int
	length   int
}

func NewVec(typ types.Type) *Vector {
	vec := &Vector{
		typ:   typ,
		class: FLAT,
		nsp:   &nulls.Nulls{},
	}
	if typ.IsVarlen() {
		vec.children = []*Vector{
			NewVec(types.T_int32.ToType()),
			NewVec(types.T_uint8.ToType()),
		}
	}
	return vec
}

// NewVecWithSize allocates a fixed width vector of n zero valued rows.
func NewVecWithSize(typ types.Type, n int, mp *mpool.MPool) (*Vector, error) {
	if typ.IsVarlen() {
		return nil, moerr.NewInvalidInputNoCtx("allocate by size needs a fixed length type, got %s", typ)
	}
	vec := NewVec(typ)
	if err := extend(vec, n, mp); err != nil {
		return nil, err
	}
	vec.length = n
	return vec, nil
}

// NewConstFixed builds a scalar: one stored value meaning length rows.
func NewConstFixed[T types.FixedSizeT](typ types.Type, val T, length int, mp *mpool.MPool) (*Vector, error) {
	vec := NewVec(typ)
	vec.class = CONSTANT
	if err := extend(vec, 1, mp); err != nil {
		return nil, err
	}
	MustFixedCol[T](vec)[0] = val
	vec.length = length
	return vec, nil
}

func NewConstNull(typ types.Type, length int, _ *mpool.MPool) *Vector {
	vec := NewVec(typ)
	vec.class = CONSTANT
	if length > 0 {
		nulls.Add(vec.nsp, 0)
		vec.nullCount = UnknownNullCount
	}
	vec.length = length
	return vec
}

func NewConstBytes(typ types.Type, val []byte, length int, mp *mpool.MPool) (*Vector, error) {
	vec := NewVec(typ)
	vec.class = CONSTANT
	if err := appendBytesRow(vec, val, mp); err != nil {
		return nil, err
	}
	vec.length = length
	return vec, nil
}

func (v *Vector) Length() int {
	return v.length
}

func (v *Vector) Capacity() int {
	return v.capacity
}

func (v *Vector) SetLength(n int) {
	v.length = n
}

func (v *Vector) GetType() *types.Type {
	return &v.typ
}

func (v *Vector) SetType(typ types.Type) {
	v.typ = typ
}

func (v *Vector) GetNulls() *nulls.Nulls {
	return v.nsp
}

func (v *Vector) SetNulls(nsp *nulls.Nulls) {
	v.nsp = nsp
	v.nullCount = UnknownNullCount
}

func (v *Vector) IsConst() bool {
	return v.class == CONSTANT
}

// IsConstNull returns true if the vector means a scalar null.
func (v *Vector) IsConstNull() bool {
	return v.IsConst() && nulls.Contains(v.nsp, 0)
}

// Nullable reports whether a null set is allocated.
func (v *Vector) Nullable() bool {
	return v.nsp != nil && v.nsp.GetBitmap() != nil && v.nsp.GetBitmap().Size() > 0
}

// NullCount returns the cached null count, recomputing it when a mutable
// access left the unknown sentinel behind.
func (v *Vector) NullCount() int {
	if v.IsConstNull() {
		return v.length
	}
	if v.IsConst() {
		return 0
	}
	if v.nullCount == UnknownNullCount {
		v.nullCount = v.nsp.Count()
	}
	return v.nullCount
}

func (v *Vector) HasNulls() bool {
	return v.NullCount() > 0
}

// SetNullCount stores an exact null count computed by a kernel, saving
// the recount a later NullCount call would do.
func (v *Vector) SetNullCount(n int) {
	v.nullCount = n
	if n > 0 {
		if bm := v.nsp.GetBitmap(); bm != nil {
			bm.MarkNonEmpty()
		}
	}
}

// InvalidateNullCount is called by every mutable access path.
func (v *Vector) InvalidateNullCount() {
	v.nullCount = UnknownNullCount
	if bm := v.nsp.GetBitmap(); bm != nil {
		bm.MarkUnknown()
	}
}

// Child returns the i-th owned child vector of a varlen vector.
func (v *Vector) Child(i int) *Vector {
	return v.children[i]
}

func (v *Vector) ChildCount() int {
	return len(v.children)
}

// Offsets exposes the offsets entries of a varchar vector. There are
// length+1 entries; row i spans bytes [offsets[i], offsets[i+1]).
func (v *Vector) Offsets() []int32 {
	return MustFixedCol[int32](v.children[0])
}

// ByteBuffer exposes the raw byte child of a varchar vector.
func (v *Vector) ByteBuffer() []byte {
	return MustFixedCol[uint8](v.children[1])
}

// GetBytesAt returns the payload of row i of a varchar vector. The result
// aliases the byte child.
func (v *Vector) GetBytesAt(i int) []byte {
	if v.IsConst() {
		i = 0
	}
	offs := v.Offsets()
	return v.ByteBuffer()[offs[i]:offs[i+1]]
}

func (v *Vector) GetStringAt(i int) string {
	return string(v.GetBytesAt(i))
}

// UnsafeGetRawData exposes the raw element bytes; the slice aliases the
// vector.
func (v *Vector) UnsafeGetRawData() []byte {
	return v.data[:v.dataBytes()]
}

// MustFixedCol decodes the element buffer of a fixed width vector. The
// slice aliases the vector and must not outlive it.
func MustFixedCol[T types.FixedSizeT](v *Vector) []T {
	if len(v.data) == 0 {
		return nil
	}
	n := v.length
	if v.IsConst() {
		n = 1
	}
	return types.DecodeSlice[T](v.data)[:n]
}

// MustMutableCol is MustFixedCol plus bookkeeping: handing out a writable
// slice invalidates the cached null count.
func MustMutableCol[T types.FixedSizeT](v *Vector) []T {
	v.InvalidateNullCount()
	return MustFixedCol[T](v)
}

// GetFixedAt reads one element, collapsing const vectors to their stored
// row.
func GetFixedAt[T types.FixedSizeT](v *Vector, i int) T {
	if v.IsConst() {
		i = 0
	}
	return MustFixedCol[T](v)[i]
}

func SetFixedAt[T types.FixedSizeT](v *Vector, i int, t T) error {
	col := MustMutableCol[T](v)
	if i < 0 {
		i = len(col) + i
	}
	if i < 0 || i >= len(col) {
		return moerr.NewIndexOutOfRangeNoCtx(int64(i), int64(len(col)))
	}
	col[i] = t
	return nil
}

// PreExtend expands the capacity of the vector ahead of appends.
func (v *Vector) PreExtend(rows int, mp *mpool.MPool) error {
	if v.class == CONSTANT {
		return nil
	}
	return extend(v, rows, mp)
}

func extend(v *Vector, rows int, mp *mpool.MPool) error {
	if v.typ.IsVarlen() {
		return extend(v.children[0], rows, mp)
	}
	sz := v.typ.TypeSize()
	need := (v.length + rows) * sz
	if need <= cap(v.data) {
		v.data = v.data[:need]
		v.capacity = need / sz
		return nil
	}
	data, err := mp.Grow(v.data, need)
	if err != nil {
		return err
	}
	v.data = data
	v.capacity = cap(data) / sz
	return nil
}

// Append adds one row. A null row still advances the offsets of varlen
// children so row addressing stays dense.
func Append[T types.FixedSizeT](v *Vector, val T, isNull bool, mp *mpool.MPool) error {
	if mp == nil {
		panic(moerr.NewInternalErrorNoCtx("vector append does not have a mpool"))
	}
	if err := extend(v, 1, mp); err != nil {
		return err
	}
	row := v.length
	v.length++
	if isNull {
		nulls.Add(v.nsp, uint64(row))
		v.nullCount = UnknownNullCount
		return nil
	}
	types.DecodeSlice[T](v.data)[row] = val
	return nil
}

func AppendMulti[T types.FixedSizeT](v *Vector, val T, isNull bool, cnt int, mp *mpool.MPool) error {
	if mp == nil {
		panic(moerr.NewInternalErrorNoCtx("vector append does not have a mpool"))
	}
	if err := extend(v, cnt, mp); err != nil {
		return err
	}
	row := v.length
	v.length += cnt
	if isNull {
		nulls.AddRange(v.nsp, uint64(row), uint64(row+cnt))
		v.nullCount = UnknownNullCount
		return nil
	}
	col := types.DecodeSlice[T](v.data)
	for i := 0; i < cnt; i++ {
		col[row+i] = val
	}
	return nil
}

func AppendList[T types.FixedSizeT](v *Vector, vals []T, isNulls []bool, mp *mpool.MPool) error {
	if mp == nil {
		panic(moerr.NewInternalErrorNoCtx("vector append does not have a mpool"))
	}
	if len(vals) == 0 {
		return nil
	}
	if err := extend(v, len(vals), mp); err != nil {
		return err
	}
	row := v.length
	v.length += len(vals)
	col := types.DecodeSlice[T](v.data)
	for i, w := range vals {
		if len(isNulls) > 0 && isNulls[i] {
			nulls.Add(v.nsp, uint64(row+i))
			v.nullCount = UnknownNullCount
		} else {
			col[row+i] = w
		}
	}
	return nil
}

func AppendBytes(v *Vector, val []byte, isNull bool, mp *mpool.MPool) error {
	if mp == nil {
		panic(moerr.NewInternalErrorNoCtx("vector append does not have a mpool"))
	}
	if isNull {
		row := v.length
		if err := appendBytesRow(v, nil, mp); err != nil {
			return err
		}
		nulls.Add(v.nsp, uint64(row))
		v.nullCount = UnknownNullCount
		return nil
	}
	return appendBytesRow(v, val, mp)
}

func AppendBytesList(v *Vector, vals [][]byte, isNulls []bool, mp *mpool.MPool) error {
	for i, w := range vals {
		null := len(isNulls) > 0 && isNulls[i]
		if err := AppendBytes(v, w, null, mp); err != nil {
			return err
		}
	}
	return nil
}

func AppendStringList(v *Vector, vals []string, isNulls []bool, mp *mpool.MPool) error {
	for i, w := range vals {
		null := len(isNulls) > 0 && isNulls[i]
		if err := AppendBytes(v, []byte(w), null, mp); err != nil {
			return err
		}
	}
	return nil
}

// appendBytesRow grows the offsets and byte children by one row.
func appendBytesRow(v *Vector, bs []byte, mp *mpool.MPool) error {
	offsets := v.children[0]
	if offsets.length == 0 {
		if err := Append[int32](offsets, 0, false, mp); err != nil {
			return err
		}
	}
	last := MustFixedCol[int32](offsets)[offsets.length-1]
	if err := Append[int32](offsets, last+int32(len(bs)), false, mp); err != nil {
		return err
	}
	bytesChild := v.children[1]
	if err := AppendList(bytesChild, bs, nil, mp); err != nil {
		return err
	}
	v.length++
	return nil
}

// Dup deep-copies the vector, children included.
func (v *Vector) Dup(mp *mpool.MPool) (*Vector, error) {
	if v.IsConstNull() {
		return NewConstNull(v.typ, v.length, mp), nil
	}
	w := NewVec(v.typ)
	w.class = v.class
	w.length = v.length
	w.nsp = v.nsp.Clone()
	w.nullCount = v.nullCount
	if len(v.data) > 0 {
		data, err := mp.Alloc(len(v.data))
		if err != nil {
			return nil, err
		}
		copy(data, v.data)
		w.data = data
		w.capacity = len(data) / v.typ.TypeSize()
	}
	for i, child := range v.children {
		dup, err := child.Dup(mp)
		if err != nil {
			w.Free(mp)
			return nil, err
		}
		w.children[i] = dup
	}
	return w, nil
}

func (v *Vector) Free(mp *mpool.MPool) {
	mp.Free(v.data)
	v.data = nil
	for _, child := range v.children {
		if child != nil {
			child.Free(mp)
		}
	}
	v.length = 0
	v.capacity = 0
	v.nsp = &nulls.Nulls{}
	v.nullCount = 0
}

// Shrink keeps only the selected rows; sels must be ordered.
func (v *Vector) Shrink(sels []int64) {
	if v.class == CONSTANT {
		v.length = len(sels)
		return
	}
	if v.typ.IsVarlen() {
		shrinkBytes(v, sels)
	} else {
		switch v.typ.Oid {
		case types.T_bool:
			shrinkFixed[bool](v, sels)
		case types.T_int8:
			shrinkFixed[int8](v, sels)
		case types.T_int16:
			shrinkFixed[int16](v, sels)
		case types.T_int32:
			shrinkFixed[int32](v, sels)
		case types.T_int64:
			shrinkFixed[int64](v, sels)
		case types.T_uint8:
			shrinkFixed[uint8](v, sels)
		case types.T_uint16:
			shrinkFixed[uint16](v, sels)
		case types.T_uint32:
			shrinkFixed[uint32](v, sels)
		case types.T_uint64:
			shrinkFixed[uint64](v, sels)
		case types.T_float32:
			shrinkFixed[float32](v, sels)
		case types.T_float64:
			shrinkFixed[float64](v, sels)
		case types.T_date:
			shrinkFixed[types.Date](v, sels)
		case types.T_datetime:
			shrinkFixed[types.Datetime](v, sels)
		case types.T_timestamp:
			shrinkFixed[types.Timestamp](v, sels)
		case types.T_decimal64:
			shrinkFixed[types.Decimal64](v, sels)
		case types.T_decimal128:
			shrinkFixed[types.Decimal128](v, sels)
		default:
			panic(fmt.Sprintf("unexpected type %s for function vector.Shrink", v.typ))
		}
	}
	v.length = len(sels)
}

// Shuffle reorders the vector to sels order; unlike Shrink the sels may
// repeat rows or come unordered, so data is rebuilt through a scratch
// buffer.
func (v *Vector) Shuffle(sels []int64, mp *mpool.MPool) error {
	if v.class == CONSTANT {
		v.length = len(sels)
		return nil
	}
	if v.typ.IsVarlen() {
		return shuffleBytes(v, sels, mp)
	}
	sz := v.typ.TypeSize()
	scratch, err := mp.Alloc(len(sels) * sz)
	if err != nil {
		return err
	}
	for i, sel := range sels {
		copy(scratch[i*sz:(i+1)*sz], v.data[int(sel)*sz:(int(sel)+1)*sz])
	}
	if len(sels) > v.length {
		data, err := mp.Grow(v.data, len(sels)*sz)
		if err != nil {
			mp.Free(scratch)
			return err
		}
		v.data = data
		v.capacity = cap(data) / sz
	}
	copy(v.data, scratch)
	mp.Free(scratch)
	v.nsp = nulls.Filter(v.nsp, sels)
	v.nullCount = UnknownNullCount
	v.length = len(sels)
	return nil
}

// shuffleBytes rebuilds the varchar children from scratch; sels may
// repeat rows, so the byte budget can grow.
func shuffleBytes(v *Vector, sels []int64, mp *mpool.MPool) error {
	offs := v.Offsets()
	buf := v.ByteBuffer()
	newOffs := make([]int32, len(sels)+1)
	var total int32
	for i, sel := range sels {
		newOffs[i] = total
		total += offs[sel+1] - offs[sel]
	}
	newOffs[len(sels)] = total
	newBuf := make([]byte, total)
	var at int32
	for _, sel := range sels {
		at += int32(copy(newBuf[at:], buf[offs[sel]:offs[sel+1]]))
	}
	v.children[0].Free(mp)
	v.children[1].Free(mp)
	if err := AppendList(v.children[0], newOffs, nil, mp); err != nil {
		return err
	}
	if err := AppendList(v.children[1], newBuf, nil, mp); err != nil {
		return err
	}
	v.nsp = nulls.Filter(v.nsp, sels)
	v.nullCount = UnknownNullCount
	v.length = len(sels)
	return nil
}

func shrinkFixed[T types.FixedSizeT](v *Vector, sels []int64) {
	vs := MustFixedCol[T](v)
	for i, sel := range sels {
		vs[i] = vs[sel]
	}
	v.nsp = nulls.Filter(v.nsp, sels)
	v.nullCount = UnknownNullCount
}

func shrinkBytes(v *Vector, sels []int64) {
	offs := v.Offsets()
	buf := v.ByteBuffer()
	newOffs := make([]int32, len(sels)+1)
	var total int32
	for i, sel := range sels {
		newOffs[i] = total
		total += offs[sel+1] - offs[sel]
	}
	newOffs[len(sels)] = total
	newBuf := make([]byte, total)
	var at int32
	for _, sel := range sels {
		at += int32(copy(newBuf[at:], buf[offs[sel]:offs[sel+1]]))
	}
	copy(types.DecodeSlice[int32](v.children[0].data), newOffs)
	v.children[0].length = len(newOffs)
	copy(v.children[1].data, newBuf)
	v.children[1].length = int(total)
	v.nsp = nulls.Filter(v.nsp, sels)
	v.nullCount = UnknownNullCount
}

// String renders the vector for debugging.
func (v *Vector) String() string {
	switch v.typ.Oid {
	case types.T_bool:
		return vecToString[bool](v)
	case types.T_int8:
		return vecToString[int8](v)
	case types.T_int16:
		return vecToString[int16](v)
	case types.T_int32:
		return vecToString[int32](v)
	case types.T_int64:
		return vecToString[int64](v)
	case types.T_uint8:
		return vecToString[uint8](v)
	case types.T_uint16:
		return vecToString[uint16](v)
	case types.T_uint32:
		return vecToString[uint32](v)
	case types.T_uint64:
		return vecToString[uint64](v)
	case types.T_float32:
		return vecToString[float32](v)
	case types.T_float64:
		return vecToString[float64](v)
	case types.T_date:
		return vecToString[types.Date](v)
	case types.T_datetime:
		return vecToString[types.Datetime](v)
	case types.T_timestamp:
		return vecToString[types.Timestamp](v)
	case types.T_decimal64:
		return vecToString[types.Decimal64](v)
	case types.T_decimal128:
		return vecToString[types.Decimal128](v)
	case types.T_varchar:
		if v.length == 1 {
			if nulls.Contains(v.nsp, 0) {
				return "null"
			}
			return v.GetStringAt(0)
		}
		strs := make([]string, v.length)
		for i := 0; i < v.length; i++ {
			if nulls.Contains(v.nsp, uint64(i)) {
				strs[i] = "null"
			} else {
				strs[i] = v.GetStringAt(i)
			}
		}
		return fmt.Sprintf("%v-%s", strs, nulls.String(v.nsp))
	default:
		panic("vec to string unknown types.")
	}
}

func vecToString[T types.FixedSizeT](v *Vector) string {
	col := MustFixedCol[T](v)
	if len(col) == 1 {
		if nulls.Contains(v.nsp, 0) {
			return "null"
		}
		return fmt.Sprintf("%v", col[0])
	}
	return fmt.Sprintf("%v-%s", col, nulls.String(v.nsp))
}

func (v *Vector) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(uint8(v.class))
	length := int64(v.length)
	buf.Write(types.EncodeInt64(&length))
	buf.Write(types.EncodeType(&v.typ))
	{ // write nsp
		data, err := v.nsp.Show()
		if err != nil {
			return nil, err
		}
		sz := uint32(len(data))
		buf.Write(types.EncodeUint32(&sz))
		buf.Write(data)
	}
	{ // write data
		n := v.dataBytes()
		sz := uint32(n)
		buf.Write(types.EncodeUint32(&sz))
		buf.Write(v.data[:n])
	}
	nchild := uint32(len(v.children))
	buf.Write(types.EncodeUint32(&nchild))
	for _, child := range v.children {
		data, err := child.MarshalBinary()
		if err != nil {
			return nil, err
		}
		sz := uint32(len(data))
		buf.Write(types.EncodeUint32(&sz))
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

func (v *Vector) dataBytes() int {
	if v.typ.IsVarlen() || len(v.data) == 0 {
		return 0
	}
	n := v.length
	if v.IsConst() {
		n = 1
	}
	return n * v.typ.TypeSize()
}

func (v *Vector) UnmarshalBinary(data []byte) error {
	return v.UnmarshalBinaryWithMpool(data, nil)
}

func (v *Vector) UnmarshalBinaryWithMpool(data []byte, mp *mpool.MPool) error {
	v.class = int(data[0])
	data = data[1:]
	v.length = int(types.DecodeInt64(data[:8]))
	data = data[8:]
	v.typ = types.DecodeType(data[:types.TSize])
	data = data[types.TSize:]
	{ // read nsp
		v.nsp = &nulls.Nulls{}
		v.nullCount = UnknownNullCount
		sz := types.DecodeUint32(data)
		data = data[4:]
		if sz > 0 {
			if err := v.nsp.Read(data[:sz]); err != nil {
				return err
			}
			data = data[sz:]
		}
	}
	{ // read data
		sz := int(types.DecodeUint32(data))
		data = data[4:]
		if sz > 0 {
			var buf []byte
			if mp != nil {
				var err error
				if buf, err = mp.Alloc(sz); err != nil {
					return err
				}
			} else {
				buf = make([]byte, sz)
			}
			copy(buf, data[:sz])
			v.data = buf
			v.capacity = sz / v.typ.TypeSize()
			data = data[sz:]
		}
	}
	nchild := int(types.DecodeUint32(data))
	data = data[4:]
	if nchild > 0 {
		v.children = make([]*Vector, nchild)
		for i := 0; i < nchild; i++ {
			sz := int(types.DecodeUint32(data))
			data = data[4:]
			child := new(Vector)
			if err := child.UnmarshalBinaryWithMpool(data[:sz], mp); err != nil {
				return err
			}
			v.children[i] = child
			data = data[sz:]
		}
	}
	return nil
}
