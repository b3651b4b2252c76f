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
	"testing"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/mpool"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
	"github.com/stretchr/testify/require"
)

func makeInt64Vec(t *testing.T, mp *mpool.MPool, vals []int64, nsp []bool) *Vector {
	vec := NewVec(types.T_int64.ToType())
	require.NoError(t, AppendList(vec, vals, nsp, mp))
	return vec
}

func TestWindow(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := makeInt64Vec(t, mp, []int64{0, 1, 2, 3, 4, 5, 6, 7}, []bool{false, true, false, false, true, false, false, false})

	view, err := vec.Window(2, 6)
	require.NoError(t, err)
	require.Equal(t, 4, view.Length())
	col := ViewFixedCol[int64](view)
	require.Equal(t, []int64{2, 3, 4, 5}, col)

	// null bits are addressed through the offset
	require.False(t, view.IsNull(0))
	require.True(t, view.IsNull(2))
	require.Equal(t, 1, view.NullCount())

	// windows compose
	sub, err := view.Window(1, 3)
	require.NoError(t, err)
	require.Equal(t, 3, sub.Offset())
	require.Equal(t, []int64{3, 4}, ViewFixedCol[int64](sub))

	_, err = vec.Window(5, 3)
	require.Error(t, err)
	_, err = vec.Window(0, 9)
	require.Error(t, err)
	vec.Free(mp)
}

func TestWindowZeroCopy(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := makeInt64Vec(t, mp, []int64{10, 20, 30}, nil)
	view, err := vec.Window(1, 3)
	require.NoError(t, err)

	// the view aliases the owner's buffer
	MustMutableCol[int64](vec)[1] = 99
	require.Equal(t, int64(99), ViewFixedCol[int64](view)[0])
	vec.Free(mp)
}

func TestViewDup(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := makeInt64Vec(t, mp, []int64{0, 1, 2, 3, 4, 5}, []bool{false, false, false, true, false, false})
	view, err := vec.Window(2, 5)
	require.NoError(t, err)

	w, err := view.Dup(mp)
	require.NoError(t, err)
	require.Equal(t, 3, w.Length())
	require.Equal(t, []int64{2, 3, 0}, MustFixedCol[int64](w))

	// null bit rebased from absolute row 3 to relative row 1
	require.Equal(t, 1, w.NullCount())
	require.True(t, w.GetNulls().Contains(1))
	vec.Free(mp)
	w.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestViewDupVarchar(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := NewVec(types.T_varchar.ToType())
	require.NoError(t, AppendStringList(vec, []string{"aa", "bbb", "c", "dddd"}, nil, mp))
	view, err := vec.Window(1, 3)
	require.NoError(t, err)
	require.Equal(t, []byte("bbb"), view.GetViewBytesAt(0))

	w, err := view.Dup(mp)
	require.NoError(t, err)
	require.Equal(t, 2, w.Length())
	require.Equal(t, "bbb", w.GetStringAt(0))
	require.Equal(t, "c", w.GetStringAt(1))
	require.Equal(t, []int32{0, 3, 4}, w.Offsets())
	vec.Free(mp)
	w.Free(mp)
}

func TestChildView(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := NewVec(types.T_varchar.ToType())
	require.NoError(t, AppendStringList(vec, []string{"aa", "bbb", "c"}, nil, mp))
	view, err := vec.Window(1, 3)
	require.NoError(t, err)

	offsView := view.ChildView(0)
	require.Equal(t, 3, offsView.Length())
	require.Equal(t, []int32{2, 5, 6}, ViewFixedCol[int32](offsView))

	bytesView := view.ChildView(1)
	require.Equal(t, 4, bytesView.Length())
	require.Equal(t, []byte("bbbc"), ViewFixedCol[uint8](bytesView))
	vec.Free(mp)
}

func TestMutableView(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := makeInt64Vec(t, mp, []int64{1, 2, 3, 4}, nil)
	require.Equal(t, 0, vec.NullCount())

	mv, err := vec.MutableWindow(1, 4)
	require.NoError(t, err)
	MutableCol[int64](mv)[0] = -2
	mv.SetNull(2, true)

	require.Equal(t, int64(-2), MustFixedCol[int64](vec)[1])
	require.Equal(t, 1, vec.NullCount())
	require.True(t, vec.GetNulls().Contains(3))
	vec.Free(mp)
}

func TestConstView(t *testing.T) {
	mp := mpool.MustNewZero()
	vec, err := NewConstFixed[int32](types.T_int32.ToType(), 5, 10, mp)
	require.NoError(t, err)
	view, err := vec.Window(2, 8)
	require.NoError(t, err)
	require.Equal(t, 0, view.NullCount())
	require.False(t, view.IsNull(3))

	w, err := view.Dup(mp)
	require.NoError(t, err)
	require.True(t, w.IsConst())
	require.Equal(t, 6, w.Length())
	require.Equal(t, int32(5), GetFixedAt[int32](w, 0))
	vec.Free(mp)
	w.Free(mp)
}
