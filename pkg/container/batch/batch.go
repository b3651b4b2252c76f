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

package batch

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/mpool"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/vector"
)

// Batch is an ordered set of equal length vectors, the unit every
// operator consumes and produces.
type Batch struct {
	// Attrs names the vectors, positional
	Attrs []string
	Vecs  []*vector.Vector

	rowCount int

	// Cnt is the reference count; Clean only releases at zero
	Cnt int64
}

func New(attrs []string) *Batch {
	return &Batch{
		Cnt:   1,
		Attrs: attrs,
		Vecs:  make([]*vector.Vector, len(attrs)),
	}
}

func NewWithSize(n int) *Batch {
	return &Batch{
		Cnt:  1,
		Vecs: make([]*vector.Vector, n),
	}
}

func EmptyBatch() *Batch {
	return &Batch{Cnt: 1}
}

// NewWithVectors validates the column lengths once, up front.
func NewWithVectors(attrs []string, vecs []*vector.Vector) (*Batch, error) {
	if len(attrs) != len(vecs) {
		return nil, moerr.NewSizeNotMatchNoCtx("batch attrs")
	}
	bat := New(attrs)
	for i, vec := range vecs {
		if vec.Length() != vecs[0].Length() {
			return nil, moerr.NewSizeNotMatchNoCtx("batch vectors")
		}
		bat.Vecs[i] = vec
	}
	if len(vecs) > 0 {
		bat.rowCount = vecs[0].Length()
	}
	return bat, nil
}

func (bat *Batch) RowCount() int {
	return bat.rowCount
}

func (bat *Batch) SetRowCount(n int) {
	bat.rowCount = n
}

func (bat *Batch) VectorCount() int {
	return len(bat.Vecs)
}

func (bat *Batch) GetVector(pos int32) *vector.Vector {
	return bat.Vecs[pos]
}

func (bat *Batch) SetVector(pos int32, vec *vector.Vector) {
	bat.Vecs[pos] = vec
}

// ReplaceVector swaps a vector in place; the new vector must keep the
// row count consistent.
func (bat *Batch) ReplaceVector(pos int32, vec *vector.Vector) error {
	if vec.Length() != bat.rowCount {
		return moerr.NewSizeNotMatchNoCtx("batch replace vector")
	}
	bat.Vecs[pos] = vec
	return nil
}

func (bat *Batch) GetAttr(name string) *vector.Vector {
	for i, attr := range bat.Attrs {
		if attr == name {
			return bat.Vecs[i]
		}
	}
	return nil
}

// Shrink keeps only the selected rows across every column.
func (bat *Batch) Shrink(sels []int64) {
	for _, vec := range bat.Vecs {
		vec.Shrink(sels)
	}
	bat.rowCount = len(sels)
}

// Shuffle reorders every column to sels order; sels may repeat rows.
func (bat *Batch) Shuffle(sels []int64, mp *mpool.MPool) error {
	for _, vec := range bat.Vecs {
		if err := vec.Shuffle(sels, mp); err != nil {
			return err
		}
	}
	bat.rowCount = len(sels)
	return nil
}

func (bat *Batch) Dup(mp *mpool.MPool) (*Batch, error) {
	rbat := NewWithSize(len(bat.Vecs))
	rbat.Attrs = append(rbat.Attrs, bat.Attrs...)
	for i, vec := range bat.Vecs {
		dup, err := vec.Dup(mp)
		if err != nil {
			rbat.Clean(mp)
			return nil, err
		}
		rbat.Vecs[i] = dup
	}
	rbat.rowCount = bat.rowCount
	return rbat, nil
}

func (bat *Batch) Retain() {
	atomic.AddInt64(&bat.Cnt, 1)
}

// Clean drops one reference and frees the vectors at zero.
func (bat *Batch) Clean(mp *mpool.MPool) {
	if atomic.AddInt64(&bat.Cnt, -1) > 0 {
		return
	}
	for _, vec := range bat.Vecs {
		if vec != nil {
			vec.Free(mp)
		}
	}
	bat.Attrs = nil
	bat.Vecs = nil
	bat.rowCount = 0
}

func (bat *Batch) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	rowCount := int64(bat.rowCount)
	buf.Write(types.EncodeInt64(&rowCount))
	nattr := uint32(len(bat.Attrs))
	buf.Write(types.EncodeUint32(&nattr))
	for i := range bat.Attrs {
		sz := uint32(len(bat.Attrs[i]))
		buf.Write(types.EncodeUint32(&sz))
		buf.WriteString(bat.Attrs[i])
	}
	nvec := uint32(len(bat.Vecs))
	buf.Write(types.EncodeUint32(&nvec))
	for _, vec := range bat.Vecs {
		data, err := vec.MarshalBinary()
		if err != nil {
			return nil, err
		}
		sz := uint32(len(data))
		buf.Write(types.EncodeUint32(&sz))
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

func (bat *Batch) UnmarshalBinary(data []byte) error {
	return bat.UnmarshalBinaryWithMpool(data, nil)
}

func (bat *Batch) UnmarshalBinaryWithMpool(data []byte, mp *mpool.MPool) error {
	bat.Cnt = 1
	bat.rowCount = int(types.DecodeInt64(data[:8]))
	data = data[8:]
	nattr := int(types.DecodeUint32(data))
	data = data[4:]
	bat.Attrs = make([]string, nattr)
	for i := 0; i < nattr; i++ {
		sz := int(types.DecodeUint32(data))
		data = data[4:]
		bat.Attrs[i] = string(data[:sz])
		data = data[sz:]
	}
	nvec := int(types.DecodeUint32(data))
	data = data[4:]
	bat.Vecs = make([]*vector.Vector, nvec)
	for i := 0; i < nvec; i++ {
		sz := int(types.DecodeUint32(data))
		data = data[4:]
		vec := new(vector.Vector)
		if err := vec.UnmarshalBinaryWithMpool(data[:sz], mp); err != nil {
			return err
		}
		bat.Vecs[i] = vec
		data = data[sz:]
	}
	return nil
}

func (bat *Batch) String() string {
	var buf bytes.Buffer
	for i, vec := range bat.Vecs {
		buf.WriteString(fmt.Sprintf("%d : %s\n", i, vec.String()))
	}
	return buf.String()
}
