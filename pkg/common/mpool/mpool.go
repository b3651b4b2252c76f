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

// Package mpool implements the memory resource that every allocating call
// of the engine takes as an explicit parameter. There is no hidden default
// pool in kernel paths; a pool is created per process (or per test) and
// threaded through the call graph.
package mpool

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
)

const (
	MB = 1 << 20
	GB = 1 << 30

	// PB is effectively "no cap".
	PB = 1 << 50
)

// Stats counts pool traffic. HighWaterMark is monotonic; CurrNB can be
// read from MPool.CurrNB.
type Stats struct {
	NumAlloc      atomic.Int64
	NumFree       atomic.Int64
	NumCurrBytes  atomic.Int64
	HighWaterMark atomic.Int64
}

func (s *Stats) RecordAlloc(sz int64) {
	s.NumAlloc.Add(1)
	nb := s.NumCurrBytes.Add(sz)
	for {
		hw := s.HighWaterMark.Load()
		if nb <= hw {
			return
		}
		if s.HighWaterMark.CompareAndSwap(hw, nb) {
			return
		}
	}
}

func (s *Stats) RecordFree(sz int64) {
	s.NumFree.Add(1)
	s.NumCurrBytes.Add(-sz)
}

func (s *Stats) Report() string {
	m := map[string]int64{
		"numAlloc":      s.NumAlloc.Load(),
		"numFree":       s.NumFree.Load(),
		"currBytes":     s.NumCurrBytes.Load(),
		"highWaterMark": s.HighWaterMark.Load(),
	}
	data, _ := json.Marshal(m)
	return string(data)
}

// MPool is a named, capped memory pool. Buffers handed out are zeroed and
// exclusively owned by the requester until Free.
type MPool struct {
	name  string
	cap   int64
	stats Stats

	mu     sync.Mutex
	detail map[int]int64 // size class -> live count, only with detail recording
}

var (
	globalMu    sync.Mutex
	globalPools = map[string]*MPool{}
)

// NewMPool creates a pool. A cap of 0 means uncapped.
func NewMPool(name string, cap int64) (*MPool, error) {
	if cap < 0 {
		return nil, moerr.NewInvalidInputNoCtx("mpool cap %d is negative", cap)
	}
	if cap == 0 {
		cap = PB
	}
	mp := &MPool{name: name, cap: cap}
	globalMu.Lock()
	defer globalMu.Unlock()
	if _, ok := globalPools[name]; ok {
		return nil, moerr.NewInvalidInputNoCtx("mpool %s already exists", name)
	}
	globalPools[name] = mp
	return mp, nil
}

// MustNew is for tests and tools; it panics on a duplicate name.
func MustNew(name string) *MPool {
	mp, err := NewMPool(name, 0)
	if err != nil {
		panic(err)
	}
	return mp
}

// MustNewZero builds an anonymous uncapped pool that is not registered,
// so tests can create as many as they like.
func MustNewZero() *MPool {
	return &MPool{name: "", cap: PB}
}

// MustNewNoFixed is MustNewZero under a label; the pool stays out of the
// global registry.
func MustNewNoFixed(name string) *MPool {
	return &MPool{name: name, cap: PB}
}

func DeleteMPool(mp *MPool) {
	if mp == nil || mp.name == "" {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	delete(globalPools, mp.name)
}

func (mp *MPool) Name() string {
	return mp.name
}

func (mp *MPool) Cap() int64 {
	return mp.cap
}

func (mp *MPool) Stats() *Stats {
	return &mp.stats
}

func (mp *MPool) CurrNB() int64 {
	return mp.stats.NumCurrBytes.Load()
}

func (mp *MPool) EnableDetailRecording() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.detail == nil {
		mp.detail = make(map[int]int64)
	}
}

// Alloc returns a zeroed buffer of exactly sz bytes. Exceeding the pool cap
// is a runtime error, not a logic error.
func (mp *MPool) Alloc(sz int) ([]byte, error) {
	if sz < 0 {
		return nil, moerr.NewInvalidInputNoCtx("mpool alloc size %d is negative", sz)
	}
	if sz == 0 {
		return nil, nil
	}
	if mp.CurrNB()+int64(sz) > mp.cap {
		return nil, moerr.NewOOMNoCtx()
	}
	mp.stats.RecordAlloc(int64(sz))
	if mp.detail != nil {
		mp.mu.Lock()
		mp.detail[sz]++
		mp.mu.Unlock()
	}
	return make([]byte, sz), nil
}

func (mp *MPool) Free(bs []byte) {
	if bs == nil {
		return
	}
	mp.stats.RecordFree(int64(cap(bs)))
	if mp.detail != nil {
		mp.mu.Lock()
		mp.detail[cap(bs)]--
		mp.mu.Unlock()
	}
}

// Realloc grows a buffer, copying old content and zero filling the tail.
func (mp *MPool) Realloc(old []byte, sz int) ([]byte, error) {
	if sz <= cap(old) {
		return old[:sz], nil
	}
	bs, err := mp.Alloc(sz)
	if err != nil {
		return nil, err
	}
	copy(bs, old)
	mp.Free(old)
	return bs, nil
}

// Grow is Realloc with geometric growth, used by vector append paths.
func (mp *MPool) Grow(old []byte, sz int) ([]byte, error) {
	if sz < len(old) {
		return nil, moerr.NewInternalErrorNoCtx("mpool grow actually shrinks, %d, %d", len(old), sz)
	}
	if sz <= cap(old) {
		return old[:sz], nil
	}
	newCap := calcCap(sz)
	bs, err := mp.Alloc(newCap)
	if err != nil {
		return nil, err
	}
	copy(bs, old)
	mp.Free(old)
	return bs[:sz], nil
}

func calcCap(n int) int {
	if n < 1024 {
		return 1024
	}
	c := 1024
	for c < n {
		c *= 2
	}
	return c
}

// ReportMemUsage dumps stats of one pool, or of all pools for an empty name.
func ReportMemUsage(name string) string {
	globalMu.Lock()
	defer globalMu.Unlock()
	if name != "" {
		if mp, ok := globalPools[name]; ok {
			return mp.stats.Report()
		}
		return "{}"
	}
	m := make(map[string]json.RawMessage, len(globalPools))
	for n, mp := range globalPools {
		m[n] = json.RawMessage(mp.stats.Report())
	}
	data, _ := json.Marshal(m)
	return string(data)
}
