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

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeSize(t *testing.T) {
	require.Equal(t, 1, T_bool.ToType().TypeSize())
	require.Equal(t, 2, T_int16.ToType().TypeSize())
	require.Equal(t, 4, T_float32.ToType().TypeSize())
	require.Equal(t, 8, T_timestamp.ToType().TypeSize())
	require.Equal(t, 16, T_decimal128.ToType().TypeSize())
	require.Equal(t, 4, T_varchar.ToType().TypeSize())
	require.False(t, T_varchar.ToType().IsFixedLen())
}

func TestConvertibleTo(t *testing.T) {
	require.True(t, T_int32.ConvertibleTo(T_int32))
	require.True(t, T_int32.ConvertibleTo(T_float64))
	require.True(t, T_bool.ConvertibleTo(T_int64))
	require.True(t, T_uint8.ConvertibleTo(T_bool))
	require.True(t, T_varchar.ConvertibleTo(T_varchar))

	require.False(t, T_varchar.ConvertibleTo(T_int64))
	require.False(t, T_date.ConvertibleTo(T_int64))
	require.False(t, T_timestamp.ConvertibleTo(T_float64))
}

func TestEncodeDecodeSlice(t *testing.T) {
	xs := []int32{1, -2, 3, 1 << 30}
	bs := EncodeSlice(xs)
	require.Equal(t, 16, len(bs))
	ys := DecodeSlice[int32](bs)
	require.Equal(t, xs, ys)

	require.Nil(t, EncodeSlice([]int64(nil)))
	require.Nil(t, DecodeSlice[int64](nil))
	require.Panics(t, func() { DecodeSlice[int64](make([]byte, 7)) })
}

func TestEncodeDecodeType(t *testing.T) {
	typ := New(T_decimal64, 18, 2)
	out := DecodeType(EncodeType(&typ))
	require.True(t, typ.Eq(out))
	require.Equal(t, "DECIMAL64(18,2)", typ.String())
}
