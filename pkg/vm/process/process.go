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
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/mpool"
	"github.com/difyrrwrzd/cudf-sub003/pkg/config"
	"github.com/difyrrwrzd/cudf-sub003/pkg/logutil"
)

// DefaultBlockSize is the rows-per-task granule of partitioned kernels.
// It is a multiple of 64, so block boundaries fall on validity word
// boundaries and only the two words at a seam are ever shared.
const DefaultBlockSize = 8192

// Process carries everything a kernel invocation needs: the cancel
// scope, the memory pool, the worker pool and the partitioning granule.
// It plays the role a device stream plays elsewhere; kernels launched on
// one process run under its pool and its cancellation.
type Process struct {
	ctx       context.Context
	mp        *mpool.MPool
	workers   *ants.Pool
	blockSize int
}

func New(ctx context.Context, mp *mpool.MPool) *Process {
	return &Process{
		ctx:       ctx,
		mp:        mp,
		blockSize: DefaultBlockSize,
	}
}

// NewFromConfig builds a process with its own worker pool. The caller
// owns the returned process and must Release it.
func NewFromConfig(ctx context.Context, mp *mpool.MPool, cfg *config.EngineConfig) (*Process, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	workers, err := ants.NewPool(cfg.Kernel.Parallelism)
	if err != nil {
		return nil, moerr.ConvertGoError(ctx, err)
	}
	logutil.Infof("kernel process up: block size %d, parallelism %d", cfg.Kernel.BlockSize, cfg.Kernel.Parallelism)
	return &Process{
		ctx:       ctx,
		mp:        mp,
		workers:   workers,
		blockSize: cfg.Kernel.BlockSize,
	}, nil
}

func (proc *Process) Ctx() context.Context {
	return proc.ctx
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.mp
}

func (proc *Process) GetMPool() *mpool.MPool {
	return proc.mp
}

func (proc *Process) BlockSize() int {
	return proc.blockSize
}

// Release shuts the worker pool down. Processes built with New have no
// pool and Release is a no-op.
func (proc *Process) Release() {
	if proc.workers != nil {
		proc.workers.Release()
		proc.workers = nil
	}
}

// BlockCount returns how many tasks Parallel will partition n rows into.
func (proc *Process) BlockCount(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + proc.blockSize - 1) / proc.blockSize
}

// Parallel runs fn over [0, n) partitioned into blocks. fn(block, start,
// end) handles rows [start, end). Without a worker pool the blocks run
// in order on the calling goroutine. The first error wins; a canceled
// context surfaces as a query interrupted error.
func (proc *Process) Parallel(n int, fn func(block, start, end int) error) error {
	if err := proc.ctx.Err(); err != nil {
		return moerr.NewQueryInterrupted(proc.ctx)
	}
	nblocks := proc.BlockCount(n)
	if nblocks == 0 {
		return nil
	}
	if proc.workers == nil || nblocks == 1 {
		for b := 0; b < nblocks; b++ {
			start := b * proc.blockSize
			end := start + proc.blockSize
			if end > n {
				end = n
			}
			if err := fn(b, start, end); err != nil {
				return err
			}
			if err := proc.ctx.Err(); err != nil {
				return moerr.NewQueryInterrupted(proc.ctx)
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	for b := 0; b < nblocks; b++ {
		start := b * proc.blockSize
		end := start + proc.blockSize
		if end > n {
			end = n
		}
		block := b
		wg.Add(1)
		if err := proc.workers.Submit(func() {
			defer wg.Done()
			if proc.ctx.Err() != nil {
				return
			}
			if err := fn(block, start, end); err != nil {
				setErr(err)
			}
		}); err != nil {
			// pool rejected the task, run it inline
			func() {
				defer wg.Done()
				if err := fn(block, start, end); err != nil {
					setErr(err)
				}
			}()
		}
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	if err := proc.ctx.Err(); err != nil {
		return moerr.NewQueryInterrupted(proc.ctx)
	}
	return nil
}
