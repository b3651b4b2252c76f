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

package mpool

import (
	"sync"
	"testing"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/stretchr/testify/require"
)

func TestMPool(t *testing.T) {
	m, err := NewMPool("test-mpool-small", 0)
	require.True(t, err == nil, "new mpool failed %v", err)
	defer DeleteMPool(m)

	nb0 := m.CurrNB()
	nalloc0 := m.Stats().NumAlloc.Load()
	nfree0 := m.Stats().NumFree.Load()

	require.True(t, nalloc0 == 0, "bad nalloc")
	require.True(t, nfree0 == 0, "bad nfree")

	for i := 1; i <= 1000; i++ {
		a, err := m.Alloc(i * 10)
		require.True(t, err == nil, "alloc failure, %v", err)
		require.True(t, len(a) == i*10, "allocation i size error")
		a[0] = 0xF0
		require.True(t, a[1] == 0, "allocation result not zeroed.")
		a[i*10-1] = 0xBA
		a, err = m.Realloc(a, i*20)
		require.True(t, err == nil, "realloc failure %v", err)
		require.True(t, len(a) == i*20, "allocation i size error")
		require.True(t, a[0] == 0xF0, "reallocation not copied")
		require.True(t, a[i*10-1] == 0xBA, "reallocation not copied")
		require.True(t, a[i*10] == 0, "reallocation not zeroed")
		require.True(t, a[i*20-1] == 0, "reallocation not zeroed")
		m.Free(a)
	}

	require.True(t, nb0 == m.CurrNB(), "leak")
	require.True(t, nalloc0-nfree0 == m.Stats().NumAlloc.Load()-m.Stats().NumFree.Load(), "free")
}

func TestMPoolCap(t *testing.T) {
	m, err := NewMPool("test-mpool-capped", MB)
	require.NoError(t, err)
	defer DeleteMPool(m)

	buf, err := m.Alloc(MB / 2)
	require.NoError(t, err)

	_, err = m.Alloc(MB)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM), "expected OOM, got %v", err)

	m.Free(buf)
	buf, err = m.Alloc(MB)
	require.NoError(t, err)
	m.Free(buf)
}

func TestMPoolGrow(t *testing.T) {
	m := MustNewZero()
	buf, err := m.Alloc(10)
	require.NoError(t, err)
	buf[9] = 0xAB
	buf, err = m.Grow(buf, 2000)
	require.NoError(t, err)
	require.Equal(t, 2000, len(buf))
	require.Equal(t, byte(0xAB), buf[9])
	require.Equal(t, byte(0), buf[1999])
	m.Free(buf)
}

// test race
func TestMPoolForRace(t *testing.T) {
	pool := MustNewZero()
	var wg sync.WaitGroup
	run := func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			buf, err := pool.Alloc(8)
			if err != nil {
				panic(err)
			}
			pool.Free(buf)
		}
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go run()
	}
	wg.Wait()
	require.Equal(t, int64(0), pool.CurrNB())
}

func TestReportMemUsage(t *testing.T) {
	m, err := NewMPool("testjson", 0)
	require.True(t, err == nil, "new mpool failed %v", err)
	m.EnableDetailRecording()

	mem, err := m.Alloc(1000000)
	require.True(t, err == nil, "mpool alloc failed %v", err)

	j1 := ReportMemUsage("")
	j2 := ReportMemUsage("testjson")
	t.Logf("mem usage: %s", j1)
	t.Logf("testjson mem usage: %s", j2)

	m.Free(mem)
	DeleteMPool(m)
	j1 = ReportMemUsage("testjson")
	t.Logf("after delete: %s", j1)
}
