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

package bitmap

import "sync/atomic"

const (
	kEmptyFlagUnknown int32 = iota
	kEmptyFlagEmpty
	kEmptyFlagNotEmpty
)

// Bitmap is a bit-vector packed into uint64 words. Bits at and beyond len
// are kept zero. The empty flag is a three-state cache: unknown forces a
// scan on the next IsEmpty.
type Bitmap struct {
	emptyFlag atomic.Int32
	len       int64
	data      []uint64
}

// BitmapIterator yields the positions of set bits in ascending order.
type BitmapIterator struct {
	i       uint64
	bm      *Bitmap
	hasNext bool
}

type Iterator interface {
	HasNext() bool
	PeekNext() uint64
	Next() uint64
}
