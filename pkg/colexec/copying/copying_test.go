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

package copying

import (
	"context"
	"testing"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/mpool"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/batch"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/vector"
	"github.com/difyrrwrzd/cudf-sub003/pkg/vm/process"
	"github.com/stretchr/testify/require"
)

func testProc() *process.Process {
	return process.New(context.Background(), mpool.MustNewZero())
}

func newInt64Vec(t *testing.T, mp *mpool.MPool, vals []int64, nsp []bool) *vector.Vector {
	vec := vector.NewVec(types.T_int64.ToType())
	require.NoError(t, vector.AppendList(vec, vals, nsp, mp))
	return vec
}

func TestGatherIdentity(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	vec := newInt64Vec(t, mp, []int64{5, 6, 7, 8}, []bool{false, true, false, true})

	out, err := Gather(proc, vec, []int64{0, 1, 2, 3}, Options{})
	require.NoError(t, err)
	require.Equal(t, vec.Length(), out.Length())
	require.Equal(t, vector.MustFixedCol[int64](vec), vector.MustFixedCol[int64](out))
	require.True(t, vec.GetNulls().IsSame(out.GetNulls()))
	vec.Free(mp)
	out.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestGatherReverse(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	vec := newInt64Vec(t, mp, []int64{1, 2, 3, 4}, []bool{true, false, false, false})

	out, err := Gather(proc, vec, []int64{3, 2, 1, 0}, Options{})
	require.NoError(t, err)
	require.Equal(t, []int64{4, 3, 2, 1}, vector.MustFixedCol[int64](out))
	require.Equal(t, 1, out.NullCount())
	require.True(t, out.GetNulls().Contains(3))
	vec.Free(mp)
	out.Free(mp)
}

func TestGatherNullify(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	vec := newInt64Vec(t, mp, []int64{1, 2, 3}, nil)

	out, err := Gather(proc, vec, []int64{0, 5, 2, -1}, Options{OutOfBounds: Nullify})
	require.NoError(t, err)
	require.Equal(t, 4, out.Length())
	require.Equal(t, 2, out.NullCount())
	require.True(t, out.GetNulls().Contains(1))
	require.True(t, out.GetNulls().Contains(3))
	require.Equal(t, int64(3), vector.MustFixedCol[int64](out)[2])
	vec.Free(mp)
	out.Free(mp)
}

func TestGatherNegativeIndex(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	vec := newInt64Vec(t, mp, []int64{1, 2, 3}, nil)

	// -1 means the last row when negative indexing is on
	out, err := Gather(proc, vec, []int64{-1, -3}, Options{NegativeIndex: NegativeAllowed})
	require.NoError(t, err)
	require.Equal(t, []int64{3, 1}, vector.MustFixedCol[int64](out))
	out.Free(mp)

	// off without the policy
	_, err = Gather(proc, vec, []int64{-1}, Options{})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrIndexOutOfRange))
	vec.Free(mp)
}

func TestGatherOutOfRange(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	vec := newInt64Vec(t, mp, []int64{1, 2, 3}, nil)
	_, err := Gather(proc, vec, []int64{0, 7}, Options{})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrIndexOutOfRange))
	vec.Free(mp)
}

func TestGatherVarchar(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	vec := vector.NewVec(types.T_varchar.ToType())
	require.NoError(t, vector.AppendStringList(vec, []string{"aa", "b", "cccc"}, []bool{false, true, false}, mp))

	out, err := Gather(proc, vec, []int64{2, 0, 1, 2}, Options{})
	require.NoError(t, err)
	require.Equal(t, 4, out.Length())
	require.Equal(t, "cccc", out.GetStringAt(0))
	require.Equal(t, "aa", out.GetStringAt(1))
	require.Equal(t, "cccc", out.GetStringAt(3))
	require.Equal(t, 1, out.NullCount())
	require.True(t, out.GetNulls().Contains(2))
	require.Equal(t, []int32{0, 4, 6, 6, 10}, out.Offsets())
	vec.Free(mp)
	out.Free(mp)
}

func TestGatherAllNull(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	vec := vector.NewVec(types.T_int32.ToType())
	require.NoError(t, vector.AppendList(vec, []int32{0, 0, 0}, []bool{true, true, true}, mp))

	out, err := Gather(proc, vec, []int64{1, 0, 2, 1}, Options{})
	require.NoError(t, err)
	require.Equal(t, 4, out.Length())
	require.Equal(t, 4, out.NullCount())
	vec.Free(mp)
	out.Free(mp)
}

func TestGatherConst(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	vec, err := vector.NewConstFixed[int64](types.T_int64.ToType(), 11, 5, mp)
	require.NoError(t, err)

	out, err := Gather(proc, vec, []int64{4, 0, 2}, Options{})
	require.NoError(t, err)
	require.True(t, out.IsConst())
	require.Equal(t, 3, out.Length())
	require.Equal(t, int64(11), vector.GetFixedAt[int64](out, 2))
	out.Free(mp)

	// a nullified row forces a flat result
	out2, err := Gather(proc, vec, []int64{0, 9}, Options{OutOfBounds: Nullify})
	require.NoError(t, err)
	require.False(t, out2.IsConst())
	require.Equal(t, int64(11), vector.MustFixedCol[int64](out2)[0])
	require.True(t, out2.GetNulls().Contains(1))
	vec.Free(mp)
	out2.Free(mp)
}

func TestGatherBatch(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	v0 := newInt64Vec(t, mp, []int64{1, 2, 3}, nil)
	v1 := vector.NewVec(types.T_varchar.ToType())
	require.NoError(t, vector.AppendStringList(v1, []string{"x", "y", "z"}, nil, mp))
	bat, err := batch.NewWithVectors([]string{"id", "name"}, []*vector.Vector{v0, v1})
	require.NoError(t, err)

	out, err := GatherBatch(proc, bat, []int64{2, 0}, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())
	require.Equal(t, []int64{3, 1}, vector.MustFixedCol[int64](out.Vecs[0]))
	require.Equal(t, "z", out.Vecs[1].GetStringAt(0))
	bat.Clean(mp)
	out.Clean(mp)
}

func TestScatter(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	src := newInt64Vec(t, mp, []int64{100, 200}, []bool{false, true})
	dst := newInt64Vec(t, mp, []int64{1, 2, 3, 4}, []bool{true, false, false, false})

	out, err := Scatter(proc, src, dst, []int64{0, 2}, Options{})
	require.NoError(t, err)
	require.Equal(t, 4, out.Length())
	got := vector.MustFixedCol[int64](out)
	require.Equal(t, int64(100), got[0])
	require.Equal(t, int64(4), got[3])

	// row 0 got a valid value, row 2 got a null
	require.Equal(t, 1, out.NullCount())
	require.False(t, out.GetNulls().Contains(0))
	require.True(t, out.GetNulls().Contains(2))

	// the destination is untouched
	require.Equal(t, int64(1), vector.MustFixedCol[int64](dst)[0])
	src.Free(mp)
	dst.Free(mp)
	out.Free(mp)
}

func TestScatterVarchar(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	src := vector.NewVec(types.T_varchar.ToType())
	require.NoError(t, vector.AppendStringList(src, []string{"XXXX", "Y"}, nil, mp))
	dst := vector.NewVec(types.T_varchar.ToType())
	require.NoError(t, vector.AppendStringList(dst, []string{"a", "bb", "ccc"}, nil, mp))

	out, err := Scatter(proc, src, dst, []int64{2, 0}, Options{})
	require.NoError(t, err)
	require.Equal(t, 3, out.Length())
	require.Equal(t, "Y", out.GetStringAt(0))
	require.Equal(t, "bb", out.GetStringAt(1))
	require.Equal(t, "XXXX", out.GetStringAt(2))
	src.Free(mp)
	dst.Free(mp)
	out.Free(mp)
}

func TestScatterErrors(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	src := newInt64Vec(t, mp, []int64{1}, nil)
	dst := newInt64Vec(t, mp, []int64{1, 2}, nil)

	_, err := Scatter(proc, src, dst, []int64{0, 1}, Options{})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrSizeNotMatch))

	_, err = Scatter(proc, src, dst, []int64{5}, Options{})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrIndexOutOfRange))

	f32 := vector.NewVec(types.T_float32.ToType())
	require.NoError(t, vector.AppendList(f32, []float32{1}, nil, mp))
	_, err = Scatter(proc, f32, dst, []int64{0}, Options{})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrTypeMismatch))

	konst, err := vector.NewConstFixed[int64](types.T_int64.ToType(), 7, 2, mp)
	require.NoError(t, err)
	_, err = Scatter(proc, src, konst, []int64{0}, Options{})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	konst.Free(mp)
	src.Free(mp)
	dst.Free(mp)
	f32.Free(mp)
}

func TestGatherScatterRoundTrip(t *testing.T) {
	proc := testProc()
	mp := proc.Mp()
	vec := newInt64Vec(t, mp, []int64{10, 20, 30, 40, 50}, []bool{false, true, false, false, true})

	perm := []int64{3, 1, 4, 0, 2}
	// scatter(gather(c, perm), perm) restores c: gathered row i came
	// from perm[i], so pushing it back to perm[i] is the identity
	gathered, err := Gather(proc, vec, perm, Options{})
	require.NoError(t, err)
	restored, err := Scatter(proc, gathered, vec, perm, Options{})
	require.NoError(t, err)

	require.Equal(t, vector.MustFixedCol[int64](vec), vector.MustFixedCol[int64](restored))
	require.Equal(t, vec.NullCount(), restored.NullCount())
	require.True(t, vec.GetNulls().IsSame(restored.GetNulls()))
	vec.Free(mp)
	gathered.Free(mp)
	restored.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}
