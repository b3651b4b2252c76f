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

// Package copying moves rows by index map. Gather pulls rows of a source
// into map order; Scatter pushes source rows into a copy of a
// destination. Null bits travel with their rows in both directions.
package copying

import (
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/batch"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/nulls"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/vector"
	"github.com/difyrrwrzd/cudf-sub003/pkg/logutil"
	"github.com/difyrrwrzd/cudf-sub003/pkg/vm/process"
)

// OutOfBoundsPolicy decides what an index outside [0, n) means.
type OutOfBoundsPolicy int

const (
	// DontCheck trusts the caller; no bounds work is done.
	DontCheck OutOfBoundsPolicy = iota
	// Nullify turns an out-of-range index into a null output row.
	Nullify
)

// NegativeIndexPolicy decides whether index k < 0 addresses row n+k.
type NegativeIndexPolicy int

const (
	NegativeNotAllowed NegativeIndexPolicy = iota
	NegativeAllowed
)

type Options struct {
	OutOfBounds   OutOfBoundsPolicy
	NegativeIndex NegativeIndexPolicy
}

// resolve maps a raw index to a source row. ok=false means the row
// nullifies; an error means the map is rejected outright.
func (opts Options) resolve(idx, n int64) (int64, bool, error) {
	if idx < 0 && opts.NegativeIndex == NegativeAllowed {
		idx += n
	}
	if idx < 0 || idx >= n {
		if opts.OutOfBounds == Nullify {
			return 0, false, nil
		}
		return 0, false, moerr.NewIndexOutOfRangeNoCtx(idx, n)
	}
	return idx, true, nil
}

// Gather builds a new vector whose row i is vec[gatherMap[i]].
func Gather(proc *process.Process, vec *vector.Vector, gatherMap []int64, opts Options) (*vector.Vector, error) {
	n := int64(vec.Length())
	m := len(gatherMap)
	logutil.Debugf("gather %d rows from %d", m, n)
	if vec.IsConst() {
		return gatherConst(proc, vec, gatherMap, opts)
	}
	if vec.GetType().IsVarlen() {
		return gatherBytes(proc, vec, gatherMap, opts)
	}

	out, err := vector.NewVecWithSize(*vec.GetType(), m, proc.Mp())
	if err != nil {
		return nil, err
	}
	sz := int64(vec.GetType().TypeSize())
	src := vec.UnsafeGetRawData()
	dst := out.UnsafeGetRawData()
	srcNulls := vec.GetNulls()
	trackNulls := nulls.Any(srcNulls) || opts.OutOfBounds == Nullify
	var outWords []uint64
	if trackNulls {
		nulls.TryExpand(out.GetNulls(), m)
		outWords = out.GetNulls().GetBitmap().Words()
	}

	// output blocks are blockSize aligned, a multiple of 64, so no two
	// blocks touch the same validity word and plain stores suffice
	err = proc.Parallel(m, func(block, start, end int) error {
		for i := start; i < end; i++ {
			row, ok, rerr := opts.resolve(gatherMap[i], n)
			if rerr != nil {
				return rerr
			}
			if !ok || srcNulls.Contains(uint64(row)) {
				outWords[i>>6] |= uint64(1) << (uint(i) & 0x3F)
				continue
			}
			copy(dst[int64(i)*sz:], src[row*sz:(row+1)*sz])
		}
		return nil
	})
	if err != nil {
		out.Free(proc.Mp())
		return nil, err
	}
	if trackNulls {
		out.InvalidateNullCount()
	}
	return out, nil
}

func gatherConst(proc *process.Process, vec *vector.Vector, gatherMap []int64, opts Options) (*vector.Vector, error) {
	n := int64(vec.Length())
	for _, idx := range gatherMap {
		if _, ok, err := opts.resolve(idx, n); err != nil {
			return nil, err
		} else if !ok {
			// a nullifying row breaks constness only for mixed
			// results; a const null swallows everything anyway
			if !vec.IsConstNull() {
				return gatherConstMixed(proc, vec, gatherMap, opts)
			}
		}
	}
	out, err := vec.Dup(proc.Mp())
	if err != nil {
		return nil, err
	}
	out.SetLength(len(gatherMap))
	return out, nil
}

// gatherConstMixed expands a const source whose gather has both valid
// and nullified rows.
func gatherConstMixed(proc *process.Process, vec *vector.Vector, gatherMap []int64, opts Options) (*vector.Vector, error) {
	n := int64(vec.Length())
	flat := vector.NewVec(*vec.GetType())
	defer flat.Free(proc.Mp())
	// materialize one row and gather from it with a rebased map
	rebased := make([]int64, len(gatherMap))
	for i, idx := range gatherMap {
		if _, ok, _ := opts.resolve(idx, n); ok {
			rebased[i] = 0
		} else {
			rebased[i] = -1
		}
	}
	if err := appendConstRow(flat, vec, proc); err != nil {
		return nil, err
	}
	return Gather(proc, flat, rebased, Options{OutOfBounds: Nullify})
}

func appendConstRow(flat, konst *vector.Vector, proc *process.Process) error {
	if konst.GetType().IsVarlen() {
		return vector.AppendBytes(flat, konst.GetBytesAt(0), false, proc.Mp())
	}
	if err := flat.PreExtend(1, proc.Mp()); err != nil {
		return err
	}
	flat.SetLength(1)
	copy(flat.UnsafeGetRawData(), konst.UnsafeGetRawData())
	return nil
}

func gatherBytes(proc *process.Process, vec *vector.Vector, gatherMap []int64, opts Options) (*vector.Vector, error) {
	mp := proc.Mp()
	n := int64(vec.Length())
	m := len(gatherMap)
	srcOffs := vec.Offsets()
	srcBuf := vec.ByteBuffer()
	srcNulls := vec.GetNulls()

	// pass one: resolve rows and collect lengths
	rows := make([]int64, m)
	lengths := make([]int32, m)
	valid := make([]bool, m)
	err := proc.Parallel(m, func(block, start, end int) error {
		for i := start; i < end; i++ {
			row, ok, rerr := opts.resolve(gatherMap[i], n)
			if rerr != nil {
				return rerr
			}
			if !ok || srcNulls.Contains(uint64(row)) {
				continue
			}
			rows[i] = row
			lengths[i] = srcOffs[row+1] - srcOffs[row]
			valid[i] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// exclusive scan of the gathered lengths gives the new offsets
	newOffs := make([]int32, m+1)
	var total int32
	for i, l := range lengths {
		newOffs[i] = total
		total += l
	}
	newOffs[m] = total

	out := vector.NewVec(*vec.GetType())
	if err := vector.AppendList(out.Child(0), newOffs, nil, mp); err != nil {
		return nil, err
	}
	bytesChild := out.Child(1)
	if err := bytesChild.PreExtend(int(total), mp); err != nil {
		out.Free(mp)
		return nil, err
	}
	bytesChild.SetLength(int(total))
	out.SetLength(m)
	dstBuf := out.ByteBuffer()

	var outWords []uint64
	trackNulls := nulls.Any(srcNulls) || opts.OutOfBounds == Nullify
	if trackNulls {
		nulls.TryExpand(out.GetNulls(), m)
		outWords = out.GetNulls().GetBitmap().Words()
	}

	err = proc.Parallel(m, func(block, start, end int) error {
		for i := start; i < end; i++ {
			if !valid[i] {
				if trackNulls {
					outWords[i>>6] |= uint64(1) << (uint(i) & 0x3F)
				}
				continue
			}
			row := rows[i]
			copy(dstBuf[newOffs[i]:newOffs[i+1]], srcBuf[srcOffs[row]:srcOffs[row+1]])
		}
		return nil
	})
	if err != nil {
		out.Free(mp)
		return nil, err
	}
	if trackNulls {
		out.InvalidateNullCount()
	}
	return out, nil
}

// GatherBatch gathers every column of the batch through one map.
func GatherBatch(proc *process.Process, bat *batch.Batch, gatherMap []int64, opts Options) (*batch.Batch, error) {
	rbat := batch.NewWithSize(bat.VectorCount())
	rbat.Attrs = append(rbat.Attrs, bat.Attrs...)
	for i, vec := range bat.Vecs {
		out, err := Gather(proc, vec, gatherMap, opts)
		if err != nil {
			rbat.Clean(proc.Mp())
			return nil, err
		}
		rbat.Vecs[i] = out
	}
	rbat.SetRowCount(len(gatherMap))
	return rbat, nil
}

// Scatter copies dst and overwrites row scatterMap[i] with src row i.
// Duplicate destinations leave which source wins unspecified; callers
// needing determinism must deduplicate the map. The map length must
// equal the source length.
func Scatter(proc *process.Process, src, dst *vector.Vector, scatterMap []int64, opts Options) (*vector.Vector, error) {
	if len(scatterMap) != src.Length() {
		return nil, moerr.NewSizeNotMatchNoCtx("scatter map")
	}
	if !src.GetType().Eq(*dst.GetType()) {
		return nil, moerr.NewTypeMismatchNoCtx("scatter %s into %s", src.GetType(), dst.GetType())
	}
	if dst.IsConst() {
		return nil, moerr.NewInvalidInputNoCtx("scatter destination is a const vector")
	}
	n := int64(dst.Length())
	logutil.Debugf("scatter %d rows into %d", len(scatterMap), n)

	// the destination index decides the output row; resolve all up
	// front so a rejected map leaves no partial output
	targets := make([]int64, len(scatterMap))
	keep := make([]bool, len(scatterMap))
	for i, idx := range scatterMap {
		row, ok, err := opts.resolve(idx, n)
		if err != nil {
			return nil, err
		}
		targets[i] = row
		keep[i] = ok
	}

	if dst.GetType().IsVarlen() {
		return scatterBytes(proc, src, dst, targets, keep)
	}

	out, err := dst.Dup(proc.Mp())
	if err != nil {
		return nil, err
	}
	sz := int64(src.GetType().TypeSize())
	srcData := src.UnsafeGetRawData()
	outData := out.UnsafeGetRawData()
	srcNulls := src.GetNulls()
	srcRow := func(i int) int64 {
		if src.IsConst() {
			return 0
		}
		return int64(i)
	}

	err = proc.Parallel(len(targets), func(block, start, end int) error {
		for i := start; i < end; i++ {
			if !keep[i] || len(srcData) == 0 {
				continue
			}
			r := srcRow(i)
			copy(outData[targets[i]*sz:(targets[i]+1)*sz], srcData[r*sz:(r+1)*sz])
		}
		return nil
	})
	if err != nil {
		out.Free(proc.Mp())
		return nil, err
	}

	// null maintenance is one sequential bit pass
	outNulls := out.GetNulls()
	for i, t := range targets {
		if !keep[i] {
			continue
		}
		if srcNulls.Contains(uint64(srcRow(i))) {
			nulls.Add(outNulls, uint64(t))
		} else {
			nulls.Del(outNulls, uint64(t))
		}
	}
	out.InvalidateNullCount()
	return out, nil
}

// scatterBytes rebuilds the whole varchar layout: changed rows change
// the byte budget, so offsets are rescanned from the merged row picks.
func scatterBytes(proc *process.Process, src, dst *vector.Vector, targets []int64, keep []bool) (*vector.Vector, error) {
	mp := proc.Mp()
	n := dst.Length()

	// fromSrc[j] >= 0 picks a source row for output row j, else the
	// destination row survives; later map entries win here
	fromSrc := make([]int64, n)
	for j := range fromSrc {
		fromSrc[j] = -1
	}
	for i, t := range targets {
		if keep[i] {
			if src.IsConst() {
				fromSrc[t] = 0
			} else {
				fromSrc[t] = int64(i)
			}
		}
	}

	srcOffs, dstOffs := src.Offsets(), dst.Offsets()
	srcBuf, dstBuf := src.ByteBuffer(), dst.ByteBuffer()
	srcNulls, dstNulls := src.GetNulls(), dst.GetNulls()
	constNull := src.IsConstNull()

	newOffs := make([]int32, n+1)
	var total int32
	for j := 0; j < n; j++ {
		newOffs[j] = total
		if i := fromSrc[j]; i >= 0 {
			if !constNull {
				total += srcOffs[i+1] - srcOffs[i]
			}
		} else {
			total += dstOffs[j+1] - dstOffs[j]
		}
	}
	newOffs[n] = total

	out := vector.NewVec(*dst.GetType())
	if err := vector.AppendList(out.Child(0), newOffs, nil, mp); err != nil {
		return nil, err
	}
	bytesChild := out.Child(1)
	if err := bytesChild.PreExtend(int(total), mp); err != nil {
		out.Free(mp)
		return nil, err
	}
	bytesChild.SetLength(int(total))
	out.SetLength(n)
	outBuf := out.ByteBuffer()

	err := proc.Parallel(n, func(block, start, end int) error {
		for j := start; j < end; j++ {
			if i := fromSrc[j]; i >= 0 {
				if !constNull {
					copy(outBuf[newOffs[j]:newOffs[j+1]], srcBuf[srcOffs[i]:srcOffs[i+1]])
				}
			} else {
				copy(outBuf[newOffs[j]:newOffs[j+1]], dstBuf[dstOffs[j]:dstOffs[j+1]])
			}
		}
		return nil
	})
	if err != nil {
		out.Free(mp)
		return nil, err
	}

	outNulls := out.GetNulls()
	for j := 0; j < n; j++ {
		if i := fromSrc[j]; i >= 0 {
			if srcNulls.Contains(uint64(i)) {
				nulls.Add(outNulls, uint64(j))
			}
		} else if dstNulls.Contains(uint64(j)) {
			nulls.Add(outNulls, uint64(j))
		}
	}
	out.InvalidateNullCount()
	return out, nil
}
