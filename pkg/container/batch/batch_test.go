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
	"testing"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/mpool"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/vector"
	"github.com/stretchr/testify/require"
)

func newTestBatch(t *testing.T, mp *mpool.MPool) *Batch {
	v0 := vector.NewVec(types.T_int64.ToType())
	require.NoError(t, vector.AppendList(v0, []int64{1, 2, 3}, nil, mp))
	v1 := vector.NewVec(types.T_varchar.ToType())
	require.NoError(t, vector.AppendStringList(v1, []string{"a", "b", "c"}, []bool{false, true, false}, mp))
	bat, err := NewWithVectors([]string{"id", "name"}, []*vector.Vector{v0, v1})
	require.NoError(t, err)
	return bat
}

func TestNewWithVectors(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := newTestBatch(t, mp)
	require.Equal(t, 3, bat.RowCount())
	require.Equal(t, 2, bat.VectorCount())
	require.NotNil(t, bat.GetAttr("name"))
	require.Nil(t, bat.GetAttr("missing"))
	bat.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestLengthMismatch(t *testing.T) {
	mp := mpool.MustNewZero()
	v0 := vector.NewVec(types.T_int64.ToType())
	require.NoError(t, vector.AppendList(v0, []int64{1, 2, 3}, nil, mp))
	v1 := vector.NewVec(types.T_int64.ToType())
	require.NoError(t, vector.AppendList(v1, []int64{1}, nil, mp))
	_, err := NewWithVectors([]string{"a", "b"}, []*vector.Vector{v0, v1})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrSizeNotMatch))
	v0.Free(mp)
	v1.Free(mp)
}

func TestBatchShrink(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := newTestBatch(t, mp)
	bat.Shrink([]int64{0, 2})
	require.Equal(t, 2, bat.RowCount())
	require.Equal(t, int64(3), vector.MustFixedCol[int64](bat.Vecs[0])[1])
	require.Equal(t, "c", bat.Vecs[1].GetStringAt(1))
	require.Equal(t, 0, bat.Vecs[1].NullCount())
	bat.Clean(mp)
}

func TestBatchShuffle(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := newTestBatch(t, mp)
	require.NoError(t, bat.Shuffle([]int64{2, 2, 0}, mp))
	require.Equal(t, 3, bat.RowCount())
	require.Equal(t, []int64{3, 3, 1}, vector.MustFixedCol[int64](bat.Vecs[0]))
	require.Equal(t, "c", bat.Vecs[1].GetStringAt(0))
	bat.Clean(mp)
}

func TestBatchDup(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := newTestBatch(t, mp)
	dup, err := bat.Dup(mp)
	require.NoError(t, err)
	require.Equal(t, bat.RowCount(), dup.RowCount())
	require.Equal(t, bat.Attrs, dup.Attrs)

	vector.MustMutableCol[int64](dup.Vecs[0])[0] = -1
	require.Equal(t, int64(1), vector.MustFixedCol[int64](bat.Vecs[0])[0])
	bat.Clean(mp)
	dup.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestBatchRefCount(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := newTestBatch(t, mp)
	bat.Retain()
	bat.Clean(mp)
	require.Equal(t, 3, bat.RowCount())
	bat.Clean(mp)
	require.Equal(t, 0, bat.VectorCount())
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestBatchMarshal(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := newTestBatch(t, mp)
	data, err := bat.MarshalBinary()
	require.NoError(t, err)

	got := new(Batch)
	require.NoError(t, got.UnmarshalBinaryWithMpool(data, mp))
	require.Equal(t, bat.Attrs, got.Attrs)
	require.Equal(t, bat.RowCount(), got.RowCount())
	require.Equal(t, vector.MustFixedCol[int64](bat.Vecs[0]), vector.MustFixedCol[int64](got.Vecs[0]))
	require.Equal(t, "c", got.Vecs[1].GetStringAt(2))
	require.Equal(t, 1, got.Vecs[1].NullCount())
	bat.Clean(mp)
	got.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}
