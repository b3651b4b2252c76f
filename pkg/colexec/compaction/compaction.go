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

// Package compaction filters rows through a boolean mask. A row survives
// when its mask entry is valid and true. The kernel runs in three phases:
// per-block survivor counts, one sequential exclusive scan over the block
// counts, then a per-block scatter into the output. Block boundaries are
// multiples of 64 rows, so each block owns its interior validity words
// outright and shares at most the two words at its seams, which are
// merged with atomic OR.
package compaction

import (
	"sync/atomic"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/bitmap"
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/batch"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/nulls"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/vector"
	"github.com/difyrrwrzd/cudf-sub003/pkg/logutil"
	"github.com/difyrrwrzd/cudf-sub003/pkg/vm/process"
)

// ApplyBooleanMask keeps the rows of vec whose mask entry is valid and
// true. The result is a fresh vector; a mask passing nothing yields a
// valid zero length vector.
func ApplyBooleanMask(proc *process.Process, vec, mask *vector.Vector) (*vector.Vector, error) {
	if err := checkMask(vec, mask); err != nil {
		return nil, err
	}
	n := vec.Length()
	logutil.Debug("apply boolean mask")
	if n == 0 {
		return vector.NewVec(*vec.GetType()), nil
	}

	pass := passFlags(mask)

	// phase 1: survivors per block
	nblocks := proc.BlockCount(n)
	counts := make([]int64, nblocks)
	err := proc.Parallel(n, func(block, start, end int) error {
		var cnt int64
		for i := start; i < end; i++ {
			if pass(i) {
				cnt++
			}
		}
		counts[block] = cnt
		return nil
	})
	if err != nil {
		return nil, err
	}

	// phase 2: exclusive scan, sequential on purpose
	offsets := make([]int64, nblocks)
	var total int64
	for b, cnt := range counts {
		offsets[b] = total
		total += cnt
	}
	if total == 0 {
		return vector.NewVec(*vec.GetType()), nil
	}

	if vec.IsConst() {
		out, err := vec.Dup(proc.Mp())
		if err != nil {
			return nil, err
		}
		out.SetLength(int(total))
		return out, nil
	}
	if vec.GetType().IsVarlen() {
		return compactBytes(proc, vec, pass, offsets, total)
	}
	return compactFixed(proc, vec, pass, offsets, total)
}

// ApplyBooleanMaskBatch filters every column of the batch through one
// mask.
func ApplyBooleanMaskBatch(proc *process.Process, bat *batch.Batch, mask *vector.Vector) (*batch.Batch, error) {
	rbat := batch.NewWithSize(bat.VectorCount())
	rbat.Attrs = append(rbat.Attrs, bat.Attrs...)
	for i, vec := range bat.Vecs {
		out, err := ApplyBooleanMask(proc, vec, mask)
		if err != nil {
			rbat.Clean(proc.Mp())
			return nil, err
		}
		rbat.Vecs[i] = out
	}
	if rbat.VectorCount() > 0 {
		rbat.SetRowCount(rbat.Vecs[0].Length())
	}
	return rbat, nil
}

func checkMask(vec, mask *vector.Vector) error {
	if mask.GetType().Oid != types.T_bool {
		return moerr.NewTypeMismatchNoCtx("boolean mask has type %s", mask.GetType())
	}
	if mask.Length() != vec.Length() {
		return moerr.NewSizeNotMatchNoCtx("boolean mask")
	}
	return nil
}

// passFlags folds mask value and mask validity into one predicate. A
// null mask entry fails the row.
func passFlags(mask *vector.Vector) func(i int) bool {
	if mask.IsConstNull() {
		return func(int) bool { return false }
	}
	if mask.IsConst() {
		val := vector.GetFixedAt[bool](mask, 0)
		return func(int) bool { return val }
	}
	col := vector.MustFixedCol[bool](mask)
	nsp := mask.GetNulls()
	if !nulls.Any(nsp) {
		return func(i int) bool { return col[i] }
	}
	return func(i int) bool {
		return col[i] && !nsp.Contains(uint64(i))
	}
}

func compactFixed(proc *process.Process, vec *vector.Vector, pass func(int) bool, offsets []int64, total int64) (*vector.Vector, error) {
	out, err := vector.NewVecWithSize(*vec.GetType(), int(total), proc.Mp())
	if err != nil {
		return nil, err
	}
	sz := vec.GetType().TypeSize()
	src := vec.UnsafeGetRawData()
	dst := out.UnsafeGetRawData()

	hasNulls := nulls.Any(vec.GetNulls())
	var outWords []uint64
	if hasNulls {
		nulls.TryExpand(out.GetNulls(), int(total))
		outWords = out.GetNulls().GetBitmap().Words()
	}
	srcNulls := vec.GetNulls()
	var nullCount int64

	err = proc.Parallel(vec.Length(), func(block, start, end int) error {
		slot := offsets[block]
		blockStart := slot
		var staged stagedWords
		if hasNulls {
			staged.init(blockStart)
		}
		for i := start; i < end; i++ {
			if !pass(i) {
				continue
			}
			copy(dst[slot*int64(sz):], src[i*sz:(i+1)*sz])
			if hasNulls && srcNulls.Contains(uint64(i)) {
				staged.set(slot)
			}
			slot++
		}
		if hasNulls {
			atomic.AddInt64(&nullCount, staged.flush(outWords, blockStart, slot))
		}
		return nil
	})
	if err != nil {
		out.Free(proc.Mp())
		return nil, err
	}
	if hasNulls {
		out.SetNullCount(int(nullCount))
	}
	return out, nil
}

func compactBytes(proc *process.Process, vec *vector.Vector, pass func(int) bool, offsets []int64, total int64) (*vector.Vector, error) {
	mp := proc.Mp()
	srcOffs := vec.Offsets()
	srcBuf := vec.ByteBuffer()

	// survivors and their byte lengths, slot addressed
	srcRows := make([]int32, total)
	lengths := make([]int32, total)
	err := proc.Parallel(vec.Length(), func(block, start, end int) error {
		slot := offsets[block]
		for i := start; i < end; i++ {
			if !pass(i) {
				continue
			}
			srcRows[slot] = int32(i)
			lengths[slot] = srcOffs[i+1] - srcOffs[i]
			slot++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// rebuild offsets with one scan of the surviving lengths
	newOffs := make([]int32, total+1)
	var totalBytes int32
	for s, l := range lengths {
		newOffs[s] = totalBytes
		totalBytes += l
	}
	newOffs[total] = totalBytes

	out := vector.NewVec(*vec.GetType())
	if err := vector.AppendList(out.Child(0), newOffs, nil, mp); err != nil {
		return nil, err
	}
	bytesChild := out.Child(1)
	if err := bytesChild.PreExtend(int(totalBytes), mp); err != nil {
		out.Free(mp)
		return nil, err
	}
	bytesChild.SetLength(int(totalBytes))
	out.SetLength(int(total))
	dstBuf := out.ByteBuffer()

	hasNulls := nulls.Any(vec.GetNulls())
	var outWords []uint64
	if hasNulls {
		nulls.TryExpand(out.GetNulls(), int(total))
		outWords = out.GetNulls().GetBitmap().Words()
	}
	srcNulls := vec.GetNulls()
	var nullCount int64

	// copy byte payloads slot-parallel
	err = proc.Parallel(int(total), func(block, start, end int) error {
		var staged stagedWords
		if hasNulls {
			staged.init(int64(start))
		}
		for s := start; s < end; s++ {
			row := srcRows[s]
			copy(dstBuf[newOffs[s]:newOffs[s]+lengths[s]], srcBuf[srcOffs[row]:srcOffs[row+1]])
			if hasNulls && srcNulls.Contains(uint64(row)) {
				staged.set(int64(s))
			}
		}
		if hasNulls {
			atomic.AddInt64(&nullCount, staged.flush(outWords, int64(start), int64(end)))
		}
		return nil
	})
	if err != nil {
		out.Free(mp)
		return nil, err
	}
	if hasNulls {
		out.SetNullCount(int(nullCount))
	}
	return out, nil
}

// stagedWords accumulates one block's output validity bits in a local
// buffer so every word is written whole. flush stores interior words
// directly and ORs the two words a block may share with its neighbors.
type stagedWords struct {
	firstWord int64
	words     []uint64
	count     int64
}

func (s *stagedWords) init(startBit int64) {
	s.firstWord = startBit >> 6
	s.words = nil
	s.count = 0
}

func (s *stagedWords) set(bit int64) {
	idx := (bit >> 6) - s.firstWord
	for int64(len(s.words)) <= idx {
		s.words = append(s.words, 0)
	}
	s.words[idx] |= uint64(1) << (bit & 0x3F)
	s.count++
}

// flush writes the staged words into out for the bit range
// [startBit, endBit). Returns the number of bits staged.
func (s *stagedWords) flush(out []uint64, startBit, endBit int64) int64 {
	if endBit <= startBit {
		return 0
	}
	lastWord := (endBit - 1) >> 6
	for w := s.firstWord; w <= lastWord && w-s.firstWord < int64(len(s.words)); w++ {
		staged := s.words[w-s.firstWord]
		if staged == 0 {
			continue
		}
		if w == s.firstWord || w == lastWord {
			bitmap.AtomicOrWord(out, int(w), staged)
		} else {
			out[w] = staged
		}
	}
	return s.count
}
