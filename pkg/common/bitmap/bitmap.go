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

// Package bitmap implements the packed validity bitmap behind every
// nullable vector. One bit per row, stored in uint64 words, allocation
// padded to PaddingBytes so that whole words can always be addressed.
//
// In case len is not a multiple of 64, the code below assumes the trailing
// bits of the last word are zero. Mutators maintain that invariant.
package bitmap

import (
	"bytes"
	"encoding"
	"fmt"
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
)

const (
	// PaddingBytes rounds every bitmap allocation. 64 bytes keeps word
	// addressing safe for any block decomposition a kernel picks.
	PaddingBytes = 64

	wordBits = 64
)

// AllocationSizeBytes returns the padded byte size for a bitmap of n bits:
// PaddingBytes * ceil(ceil(n/8) / PaddingBytes). It is monotonic in n,
// always a multiple of PaddingBytes and always >= ceil(n/8).
func AllocationSizeBytes(n int) int {
	rawBytes := (n + 7) / 8
	return PaddingBytes * ((rawBytes + PaddingBytes - 1) / PaddingBytes)
}

func allocWords(n int) int {
	return AllocationSizeBytes(n) / 8
}

func New() *Bitmap {
	return &Bitmap{}
}

func (n *Bitmap) InitWith(other *Bitmap) {
	n.len = other.len
	n.emptyFlag.Store(other.emptyFlag.Load())
	n.data = append([]uint64(nil), other.data...)
}

func (n *Bitmap) InitWithSize(len int64) {
	n.len = len
	n.emptyFlag.Store(kEmptyFlagEmpty)
	n.data = make([]uint64, allocWords(int(len)))
}

// InitFromWords adopts an existing word buffer. The buffer must cover the
// full padded allocation for size bits; anything smaller is a contract
// violation.
func (n *Bitmap) InitFromWords(words []uint64, size int64) error {
	if len(words)*8 < AllocationSizeBytes(int(size)) {
		return moerr.NewInvalidInputNoCtx(
			"bitmap buffer of %d bytes is smaller than allocation size %d",
			len(words)*8, AllocationSizeBytes(int(size)))
	}
	n.len = size
	n.data = words
	n.emptyFlag.Store(kEmptyFlagUnknown)
	return nil
}

func (n *Bitmap) Clone() *Bitmap {
	if n == nil {
		return nil
	}
	ret := &Bitmap{}
	ret.InitWith(n)
	return ret
}

// Words exposes the raw words for kernels that assemble output bits a word
// at a time. The slice aliases the bitmap.
func (n *Bitmap) Words() []uint64 {
	return n.data
}

func (n *Bitmap) Reset() {
	n.len = 0
	n.emptyFlag.Store(kEmptyFlagEmpty)
	n.data = nil
}

// Len returns the number of bits in the Bitmap.
func (n *Bitmap) Len() int64 {
	return n.len
}

// Size returns the number of bytes held by n.data, including padding.
func (n *Bitmap) Size() int {
	return len(n.data) * 8
}

func (n *Bitmap) Ptr() *uint64 {
	if n == nil || len(n.data) == 0 {
		return nil
	}
	return &n.data[0]
}

// EmptyByFlag is a quick and dirty emptiness check. If it returns true the
// bitmap is empty; otherwise it may or may not be.
func (n *Bitmap) EmptyByFlag() bool {
	return n == nil || n.emptyFlag.Load() == kEmptyFlagEmpty || len(n.data) == 0
}

// IsEmpty returns true if no bit in [0, len) is set.
func (n *Bitmap) IsEmpty() bool {
	flag := n.emptyFlag.Load()
	if flag == kEmptyFlagEmpty {
		return true
	} else if flag == kEmptyFlagNotEmpty {
		return false
	}
	for i := 0; i < len(n.data); i++ {
		if n.data[i] != 0 {
			n.emptyFlag.Store(kEmptyFlagNotEmpty)
			return false
		}
	}
	n.emptyFlag.Store(kEmptyFlagEmpty)
	return true
}

// Add assumes the bitmap has been extended to cover row.
func (n *Bitmap) Add(row uint64) {
	n.data[row>>6] |= 1 << (row & 0x3F)
	n.emptyFlag.Store(kEmptyFlagNotEmpty)
}

func (n *Bitmap) AddMany(rows []uint64) {
	for _, row := range rows {
		n.data[row>>6] |= 1 << (row & 0x3F)
	}
	n.emptyFlag.Store(kEmptyFlagNotEmpty)
}

func (n *Bitmap) Remove(row uint64) {
	if row >= uint64(n.len) {
		return
	}
	n.data[row>>6] &^= uint64(1) << (row & 0x3F)
	n.emptyFlag.CompareAndSwap(kEmptyFlagNotEmpty, kEmptyFlagUnknown)
}

// Contains returns true if row is within range and its bit is set.
func (n *Bitmap) Contains(row uint64) bool {
	if row >= uint64(n.len) {
		return false
	}
	return (n.data[row>>6] & (1 << (row & 0x3F))) != 0
}

func (n *Bitmap) AddRange(start, end uint64) {
	if start >= end {
		return
	}
	i, j := start>>6, (end-1)>>6
	if i == j {
		n.data[i] |= (^uint64(0) << (start & 0x3F)) & (^uint64(0) >> (uint(-end) & 0x3F))
		n.emptyFlag.Store(kEmptyFlagNotEmpty)
		return
	}
	n.data[i] |= ^uint64(0) << (start & 0x3F)
	for k := i + 1; k < j; k++ {
		n.data[k] = ^uint64(0)
	}
	n.data[j] |= ^uint64(0) >> (uint(-end) & 0x3F)
	n.emptyFlag.Store(kEmptyFlagNotEmpty)
}

func (n *Bitmap) RemoveRange(start, end uint64) {
	if end > uint64(n.len) {
		end = uint64(n.len)
	}
	if start >= end {
		return
	}
	i, j := start>>6, (end-1)>>6
	if i == j {
		n.data[i] &^= (^uint64(0) << (start & 0x3F)) & (^uint64(0) >> (uint(-end) & 0x3F))
		n.emptyFlag.CompareAndSwap(kEmptyFlagNotEmpty, kEmptyFlagUnknown)
		return
	}
	n.data[i] &^= ^uint64(0) << (start & 0x3F)
	for k := i + 1; k < j; k++ {
		n.data[k] = 0
	}
	n.data[j] &^= ^uint64(0) >> (uint(-end) & 0x3F)
	n.emptyFlag.CompareAndSwap(kEmptyFlagNotEmpty, kEmptyFlagUnknown)
}

func (n *Bitmap) IsSame(m *Bitmap) bool {
	if n.len != m.len {
		return false
	}
	words := (int(n.len) + wordBits - 1) / wordBits
	for i := 0; i < words; i++ {
		if n.data[i] != m.data[i] {
			return false
		}
	}
	return true
}

func (n *Bitmap) Or(m *Bitmap) {
	n.TryExpand(m)
	size := (int(m.len) + wordBits - 1) / wordBits
	for i := 0; i < size; i++ {
		n.data[i] |= m.data[i]
	}
	n.emptyFlag.CompareAndSwap(kEmptyFlagEmpty, kEmptyFlagUnknown)
}

func (n *Bitmap) And(m *Bitmap) {
	n.TryExpand(m)
	size := (int(m.len) + wordBits - 1) / wordBits
	for i := 0; i < size; i++ {
		n.data[i] &= m.data[i]
	}
	for i := size; i < len(n.data); i++ {
		n.data[i] = 0
	}
	n.emptyFlag.CompareAndSwap(kEmptyFlagNotEmpty, kEmptyFlagUnknown)
}

func (n *Bitmap) Negate() {
	nBlock, nTail := int(n.len)/wordBits, int(n.len)%wordBits
	for i := 0; i < nBlock; i++ {
		n.data[i] = ^n.data[i]
	}
	if nTail > 0 {
		mask := (uint64(1) << nTail) - 1
		n.data[nBlock] ^= mask
	}
	n.emptyFlag.Store(kEmptyFlagUnknown)
}

func (n *Bitmap) TryExpand(m *Bitmap) {
	n.TryExpandWithSize(int(m.len))
}

func (n *Bitmap) TryExpandWithSize(size int) {
	if int(n.len) >= size {
		return
	}
	newCap := allocWords(size)
	n.len = int64(size)
	if newCap > cap(n.data) {
		data := make([]uint64, newCap)
		copy(data, n.data)
		n.data = data
		return
	}
	if len(n.data) < newCap {
		n.data = n.data[:newCap]
	}
}

// Filter builds a new bitmap of len(sels) bits where bit i mirrors bit
// sels[i] of n.
func (n *Bitmap) Filter(sels []int64) *Bitmap {
	m := &Bitmap{}
	m.InitWithSize(int64(len(sels)))
	for i, sel := range sels {
		if n.Contains(uint64(sel)) {
			m.Add(uint64(i))
		}
	}
	return m
}

// Count returns the number of set bits in [0, len). Padding words past the
// logical length never contribute.
func (n *Bitmap) Count() int {
	var cnt int
	if n.emptyFlag.Load() == kEmptyFlagEmpty {
		return 0
	}
	nWords := int(n.len) / wordBits
	for i := 0; i < nWords; i++ {
		cnt += bits.OnesCount64(n.data[i])
	}
	if tail := int(n.len) % wordBits; tail > 0 {
		mask := (uint64(1) << tail) - 1
		cnt += bits.OnesCount64(n.data[nWords] & mask)
	}
	if cnt > 0 {
		n.emptyFlag.Store(kEmptyFlagNotEmpty)
	} else {
		n.emptyFlag.Store(kEmptyFlagEmpty)
	}
	return cnt
}

// CountRange returns the number of set bits in [start, end), end capped to
// the logical length.
func (n *Bitmap) CountRange(start, end uint64) int {
	if end > uint64(n.len) {
		end = uint64(n.len)
	}
	if start >= end || n.emptyFlag.Load() == kEmptyFlagEmpty {
		return 0
	}
	var cnt int
	firstWord, lastWord := start>>6, (end-1)>>6
	for i := firstWord; i <= lastWord; i++ {
		w := n.data[i]
		if i == firstWord {
			w &= ^uint64(0) << (start & 0x3F)
		}
		if i == lastWord {
			if tail := end & 0x3F; tail > 0 {
				w &= (uint64(1) << tail) - 1
			}
		}
		cnt += bits.OnesCount64(w)
	}
	return cnt
}

// CopyOffset fills dst bits [0, size) from src bits [bitOffset, bitOffset+size).
// A zero offset degenerates to a word copy. Otherwise every destination word
// is assembled whole from the two source words it straddles, so no word is
// ever written bit by bit.
func CopyOffset(dst, src *Bitmap, bitOffset uint64, size int64) {
	if dst.len < size {
		dst.TryExpandWithSize(int(size))
	}
	dst.len = size
	nWords := allocWords(int(size))
	if bitOffset == 0 {
		srcWords := (int(size) + wordBits - 1) / wordBits
		copy(dst.data[:srcWords], src.data[:srcWords])
		for i := srcWords; i < nWords; i++ {
			dst.data[i] = 0
		}
	} else {
		word, shift := bitOffset>>6, bitOffset&0x3F
		outWords := (int(size) + wordBits - 1) / wordBits
		for i := 0; i < outWords; i++ {
			lo := src.word(word + uint64(i))
			hi := src.word(word + uint64(i) + 1)
			dst.data[i] = (lo >> shift) | (hi << (wordBits - shift))
		}
		for i := outWords; i < nWords; i++ {
			dst.data[i] = 0
		}
	}
	// zero the tail bits of the last logical word
	if tail := int(size) % wordBits; tail > 0 {
		dst.data[(size-1)>>6] &= (uint64(1) << tail) - 1
	}
	dst.emptyFlag.Store(kEmptyFlagUnknown)
}

func (n *Bitmap) word(i uint64) uint64 {
	if i >= uint64(len(n.data)) {
		return 0
	}
	return n.data[i]
}

// AtomicOrWord ORs bits into words[i]. Kernels writing adjacent output
// ranges use it for the two boundary words their ranges may share; interior
// words are written with plain stores. There is no native atomic OR before
// go1.23, so spin on CAS.
func AtomicOrWord(words []uint64, i int, mask uint64) {
	if mask == 0 {
		return
	}
	p := (*atomic.Uint64)(unsafe.Pointer(&words[i]))
	for {
		old := p.Load()
		if old&mask == mask {
			return
		}
		if p.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

// MarkNonEmpty is for kernels that write words directly and then need the
// cached flag to match.
func (n *Bitmap) MarkNonEmpty() {
	n.emptyFlag.Store(kEmptyFlagNotEmpty)
}

// MarkUnknown invalidates the cached empty flag after direct word writes.
func (n *Bitmap) MarkUnknown() {
	n.emptyFlag.Store(kEmptyFlagUnknown)
}

func (n *Bitmap) Iterator() Iterator {
	itr := BitmapIterator{i: 0, bm: n}
	if first, has := itr.seek(0); has {
		itr.i = first
		itr.hasNext = true
		return &itr
	}
	itr.hasNext = false
	return &itr
}

// seek finds the first set bit at position >= i, looping over words, not
// bits.
func (itr *BitmapIterator) seek(i uint64) (uint64, bool) {
	nWords := uint64(len(itr.bm.data))
	currentWord := i >> 6
	mask := ^uint64(0) << (i & 0x3F)
	for ; currentWord < nWords; currentWord++ {
		word := itr.bm.data[currentWord] & mask
		if word != 0 {
			pos := currentWord*wordBits + uint64(bits.TrailingZeros64(word))
			if pos >= uint64(itr.bm.len) {
				return 0, false
			}
			return pos, true
		}
		mask = ^uint64(0)
	}
	return 0, false
}

func (itr *BitmapIterator) HasNext() bool {
	return itr.hasNext
}

func (itr *BitmapIterator) PeekNext() uint64 {
	if itr.hasNext {
		return itr.i
	}
	return 0
}

func (itr *BitmapIterator) Next() uint64 {
	pos := itr.i
	if next, has := itr.seek(itr.i + 1); has {
		itr.i = next
		itr.hasNext = true
		return pos
	}
	itr.hasNext = false
	return pos
}

func (n *Bitmap) ToArray() []uint64 {
	var rows []uint64
	if n.EmptyByFlag() {
		return rows
	}
	itr := n.Iterator()
	for itr.HasNext() {
		rows = append(rows, itr.Next())
	}
	return rows
}

func (n *Bitmap) ToI64Array() []int64 {
	var rows []int64
	if n.EmptyByFlag() {
		return rows
	}
	itr := n.Iterator()
	for itr.HasNext() {
		rows = append(rows, int64(itr.Next()))
	}
	return rows
}

func (n *Bitmap) Marshal() []byte {
	var buf bytes.Buffer
	flag := n.emptyFlag.Load()
	u1 := uint64(n.len)
	u2 := uint64(len(n.data) * 8)
	buf.Write(encodeFixed(uint64(uint32(flag)))[:4])
	buf.Write(encodeFixed(u1))
	buf.Write(encodeFixed(u2))
	buf.Write(wordsToBytes(n.data))
	return buf.Bytes()
}

func (n *Bitmap) Unmarshal(data []byte) {
	n.emptyFlag.Store(int32(decodeFixed(data[:4], 4)))
	data = data[4:]
	n.len = int64(decodeFixed(data[:8], 8))
	data = data[8:]
	size := int(decodeFixed(data[:8], 8))
	data = data[8:]
	if size == 0 {
		n.data = nil
	} else {
		n.data = bytesToWords(data[:size])
	}
}

func (n *Bitmap) String() string {
	return fmt.Sprintf("%v", n.ToArray())
}

var _ encoding.BinaryMarshaler = new(Bitmap)

func (n *Bitmap) MarshalBinary() ([]byte, error) {
	return n.Marshal(), nil
}

var _ encoding.BinaryUnmarshaler = new(Bitmap)

func (n *Bitmap) UnmarshalBinary(data []byte) error {
	n.Unmarshal(data)
	return nil
}

func encodeFixed(v uint64) []byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b[:]
}

func decodeFixed(b []byte, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func wordsToBytes(words []uint64) []byte {
	if len(words) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)
}

func bytesToWords(bs []byte) []uint64 {
	out := make([]uint64, len(bs)/8)
	for i := range out {
		out[i] = decodeFixed(bs[i*8:], 8)
	}
	return out
}
