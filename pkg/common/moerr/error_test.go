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

package moerr

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	err := NewTypeMismatchNoCtx("expected %s, got %s", "bool", "int32")
	require.True(t, IsMoErrCode(err, ErrTypeMismatch))
	require.False(t, IsMoErrCode(err, ErrSizeNotMatch))
	require.Contains(t, err.Error(), "bool")

	require.True(t, IsMoErrCode(nil, Ok))
	require.False(t, IsMoErrCode(fmt.Errorf("plain"), ErrInternal))
}

func TestErrorWrapping(t *testing.T) {
	inner := NewSizeNotMatchNoCtx("mask")
	wrapped := fmt.Errorf("launch failed: %w", inner)
	require.True(t, IsMoErrCode(wrapped, ErrSizeNotMatch))
}

func TestConvertGoError(t *testing.T) {
	me := NewOOMNoCtx()
	require.Equal(t, error(me), ConvertGoError(context.Background(), me))

	require.Equal(t, context.Canceled,
		ConvertGoError(context.Background(), context.Canceled))

	err := ConvertGoError(context.Background(), fmt.Errorf("boom"))
	require.True(t, IsMoErrCode(err, ErrInternal))
}
