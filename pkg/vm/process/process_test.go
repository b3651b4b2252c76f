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

package process

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/mpool"
	"github.com/difyrrwrzd/cudf-sub003/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestParallelSerial(t *testing.T) {
	proc := New(context.Background(), mpool.MustNewZero())
	var rows int64
	err := proc.Parallel(20000, func(block, start, end int) error {
		atomic.AddInt64(&rows, int64(end-start))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(20000), rows)
	require.Equal(t, 3, proc.BlockCount(20000))
	require.Equal(t, 0, proc.BlockCount(0))
}

func TestParallelWithWorkers(t *testing.T) {
	cfg := config.Default()
	cfg.Kernel.BlockSize = 64
	cfg.Kernel.Parallelism = 4
	proc, err := NewFromConfig(context.Background(), mpool.MustNewZero(), cfg)
	require.NoError(t, err)
	defer proc.Release()

	covered := make([]int32, 1000)
	err = proc.Parallel(1000, func(block, start, end int) error {
		for i := start; i < end; i++ {
			atomic.AddInt32(&covered[i], 1)
		}
		return nil
	})
	require.NoError(t, err)
	for i, c := range covered {
		require.Equal(t, int32(1), c, "row %d", i)
	}
}

func TestParallelError(t *testing.T) {
	proc := New(context.Background(), mpool.MustNewZero())
	err := proc.Parallel(100000, func(block, start, end int) error {
		if block == 2 {
			return moerr.NewInternalErrorNoCtx("boom")
		}
		return nil
	})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
}

func TestParallelCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	proc := New(ctx, mpool.MustNewZero())
	err := proc.Parallel(100, func(block, start, end int) error {
		return nil
	})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrQueryInterrupted))
}
