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

// Package nulls wraps the bitmap library into the null set of a column.
// A set bit marks a null row. A column whose null set was never allocated
// has zero nulls and every row implicitly valid.
package nulls

import (
	"fmt"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/bitmap"
)

type Nulls struct {
	np *bitmap.Bitmap
}

func NewWithSize(size int) *Nulls {
	nsp := &Nulls{np: bitmap.New()}
	nsp.np.InitWithSize(int64(size))
	return nsp
}

func Build(size int, rows ...uint64) *Nulls {
	nsp := NewWithSize(size)
	Add(nsp, rows...)
	return nsp
}

func (nsp *Nulls) Clone() *Nulls {
	if nsp == nil {
		return nil
	}
	if nsp.np == nil {
		return &Nulls{}
	}
	return &Nulls{np: nsp.np.Clone()}
}

// GetBitmap exposes the underlying bitmap for kernels that write whole
// words. May be nil.
func (nsp *Nulls) GetBitmap() *bitmap.Bitmap {
	if nsp == nil {
		return nil
	}
	return nsp.np
}

// Any returns true if any row is null.
func Any(nsp *Nulls) bool {
	if nsp == nil || nsp.np == nil {
		return false
	}
	return !nsp.np.IsEmpty()
}

func (nsp *Nulls) Any() bool {
	return Any(nsp)
}

// Size estimates the memory usage of the null set.
func Size(nsp *Nulls) int {
	if nsp == nil || nsp.np == nil {
		return 0
	}
	return nsp.np.Size()
}

// Count returns the number of null rows.
func (nsp *Nulls) Count() int {
	if nsp == nil || nsp.np == nil {
		return 0
	}
	return nsp.np.Count()
}

func Count(nsp *Nulls) int {
	return nsp.Count()
}

func TryExpand(nsp *Nulls, size int) {
	if nsp.np == nil {
		nsp.np = bitmap.New()
		nsp.np.InitWithSize(int64(size))
		return
	}
	nsp.np.TryExpandWithSize(size)
}

// Contains returns true if row is null.
func Contains(nsp *Nulls, row uint64) bool {
	return nsp != nil && nsp.np != nil && nsp.np.Contains(row)
}

func (nsp *Nulls) Contains(row uint64) bool {
	return Contains(nsp, row)
}

func Add(nsp *Nulls, rows ...uint64) {
	if nsp == nil || len(rows) == 0 {
		return
	}
	TryExpand(nsp, int(rows[len(rows)-1])+1)
	nsp.np.AddMany(rows)
}

func (nsp *Nulls) Set(row uint64) {
	TryExpand(nsp, int(row)+1)
	nsp.np.Add(row)
}

func AddRange(nsp *Nulls, start, end uint64) {
	if start >= end {
		return
	}
	TryExpand(nsp, int(end))
	nsp.np.AddRange(start, end)
}

func Del(nsp *Nulls, rows ...uint64) {
	if nsp == nil || nsp.np == nil {
		return
	}
	for _, row := range rows {
		nsp.np.Remove(row)
	}
}

func RemoveRange(nsp *Nulls, start, end uint64) {
	if nsp != nil && nsp.np != nil {
		nsp.np.RemoveRange(start, end)
	}
}

// Set unions m into nsp.
func Set(nsp, m *Nulls) {
	if m != nil && m.np != nil {
		if nsp.np == nil {
			nsp.np = bitmap.New()
		}
		nsp.np.Or(m.np)
	}
}

func (nsp *Nulls) Or(m *Nulls) *Nulls {
	switch {
	case m == nil || m.np == nil:
		return nsp
	case nsp.np == nil:
		return m
	default:
		nsp.np.Or(m.np)
		return nsp
	}
}

// Range copies the null rows of nsp within [start, end) into m, shifted
// down by bias. Used when a view with an offset materializes its null set.
func Range(nsp *Nulls, start, end, bias uint64, m *Nulls) *Nulls {
	if nsp == nil || nsp.np == nil {
		return m
	}
	if m.np == nil {
		m.np = bitmap.New()
	}
	m.np.InitWithSize(int64(end - bias))
	bitmap.CopyOffset(m.np, nsp.np, bias, int64(end-bias))
	if start > bias {
		m.np.RemoveRange(0, start-bias)
	}
	return m
}

// Filter rewrites nsp for a selection: output row i is null iff sels[i]
// was null.
func Filter(nsp *Nulls, sels []int64) *Nulls {
	if nsp == nil || nsp.np == nil || len(sels) == 0 {
		return nsp
	}
	nsp.np = nsp.np.Filter(sels)
	return nsp
}

// FilterCount returns how many of the selected rows are null.
func FilterCount(nsp *Nulls, sels []int64) int {
	var cnt int
	if nsp == nil || nsp.np == nil {
		return cnt
	}
	for _, sel := range sels {
		if nsp.np.Contains(uint64(sel)) {
			cnt++
		}
	}
	return cnt
}

func Reset(nsp *Nulls) {
	if nsp.np != nil {
		nsp.np.Reset()
	}
}

func (nsp *Nulls) IsSame(m *Nulls) bool {
	switch {
	case nsp == nil && m == nil:
		return true
	case nsp == nil || m == nil:
		return false
	case nsp.np == nil && m.np == nil:
		return true
	case nsp.np != nil && m.np != nil:
		return nsp.np.IsSame(m.np)
	default:
		return false
	}
}

func (nsp *Nulls) ToArray() []uint64 {
	if nsp == nil || nsp.np == nil {
		return []uint64{}
	}
	return nsp.np.ToArray()
}

func (nsp *Nulls) Show() ([]byte, error) {
	if nsp == nil || nsp.np == nil {
		return nil, nil
	}
	return nsp.np.Marshal(), nil
}

func (nsp *Nulls) Read(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	nsp.np = bitmap.New()
	nsp.np.Unmarshal(data)
	return nil
}

func String(nsp *Nulls) string {
	if nsp == nil || nsp.np == nil {
		return "[]"
	}
	return fmt.Sprintf("%v", nsp.np.ToArray())
}
