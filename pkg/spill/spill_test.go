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

package spill

import (
	"path/filepath"
	"testing"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/mpool"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/batch"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/vector"
	"github.com/stretchr/testify/require"
)

func spillBatch(t *testing.T, mp *mpool.MPool, n int) *batch.Batch {
	ids := vector.NewVec(types.T_int64.ToType())
	names := vector.NewVec(types.T_varchar.ToType())
	for i := 0; i < n; i++ {
		require.NoError(t, vector.Append[int64](ids, int64(i), i%7 == 0, mp))
		require.NoError(t, vector.AppendBytes(names, []byte("row-payload"), i%5 == 0, mp))
	}
	bat, err := batch.NewWithVectors([]string{"id", "name"}, []*vector.Vector{ids, names})
	require.NoError(t, err)
	return bat
}

func TestRoundTrip(t *testing.T) {
	for _, codec := range []Codec{None, Snappy, LZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			mp := mpool.MustNewZero()
			bat := spillBatch(t, mp, 1000)
			data, err := Encode(bat, codec)
			require.NoError(t, err)

			got, err := Decode(data, mp)
			require.NoError(t, err)
			require.Equal(t, bat.RowCount(), got.RowCount())
			require.Equal(t, bat.Attrs, got.Attrs)
			require.Equal(t,
				vector.MustFixedCol[int64](bat.Vecs[0]),
				vector.MustFixedCol[int64](got.Vecs[0]))
			require.Equal(t, bat.Vecs[0].NullCount(), got.Vecs[0].NullCount())
			require.Equal(t, bat.Vecs[1].GetStringAt(1), got.Vecs[1].GetStringAt(1))
			require.Equal(t, bat.Vecs[1].NullCount(), got.Vecs[1].NullCount())
			bat.Clean(mp)
			got.Clean(mp)
			require.Equal(t, int64(0), mp.CurrNB())
		})
	}
}

func TestCompressionShrinks(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := spillBatch(t, mp, 5000)
	raw, err := Encode(bat, None)
	require.NoError(t, err)
	packed, err := Encode(bat, Snappy)
	require.NoError(t, err)
	require.Less(t, len(packed), len(raw))
	bat.Clean(mp)
}

func TestFileRoundTrip(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := spillBatch(t, mp, 100)
	path := filepath.Join(t.TempDir(), "spill.bin")
	require.NoError(t, WriteFile(path, bat, LZ4))

	got, err := ReadFile(path, mp)
	require.NoError(t, err)
	require.Equal(t, bat.RowCount(), got.RowCount())
	bat.Clean(mp)
	got.Clean(mp)
}

func TestDecodeErrors(t *testing.T) {
	mp := mpool.MustNewZero()
	_, err := Decode([]byte{1, 2}, mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadCompress))

	_, err = Decode([]byte{99, 0, 0, 0, 0, 1, 2, 3}, mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadCompress))
}
