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

package vector

import (
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/common/mpool"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/nulls"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
)

// View is a non owning window over a vector: the same buffers seen from
// a row offset, at a shorter length. Views are cheap values, never free
// their buffers, and stay valid only as long as the owner does.
type View struct {
	vec    *Vector
	offset int
	length int

	// lazily computed; UnknownNullCount until first asked for
	nullCount int
}

// Window slices a vector into a view of rows [start, end) without
// copying any buffer.
func (v *Vector) Window(start, end int) (View, error) {
	if start < 0 || end < start || end > v.length {
		return View{}, moerr.NewInvalidRangeNoCtx("window", int64(start), int64(end))
	}
	return View{
		vec:       v,
		offset:    start,
		length:    end - start,
		nullCount: UnknownNullCount,
	}, nil
}

// AsView is the trivial full length window.
func (v *Vector) AsView() View {
	return View{vec: v, length: v.length, nullCount: UnknownNullCount}
}

func (view View) Length() int {
	return view.length
}

func (view View) Offset() int {
	return view.offset
}

func (view View) GetType() *types.Type {
	return view.vec.GetType()
}

func (view View) IsConst() bool {
	return view.vec.IsConst()
}

// Window narrows an existing view; offsets compose.
func (view View) Window(start, end int) (View, error) {
	if start < 0 || end < start || end > view.length {
		return View{}, moerr.NewInvalidRangeNoCtx("window", int64(start), int64(end))
	}
	return View{
		vec:       view.vec,
		offset:    view.offset + start,
		length:    end - start,
		nullCount: UnknownNullCount,
	}, nil
}

// IsNull reports whether row i of the view is null, i relative to the
// view's own offset.
func (view View) IsNull(i int) bool {
	if view.vec.IsConst() {
		return view.vec.IsConstNull()
	}
	return nulls.Contains(view.vec.nsp, uint64(view.offset+i))
}

// NullCount counts the null rows inside the window, caching the result
// on the view value.
func (view *View) NullCount() int {
	if view.nullCount != UnknownNullCount {
		return view.nullCount
	}
	if view.vec.IsConstNull() {
		view.nullCount = view.length
		return view.length
	}
	if view.vec.IsConst() {
		view.nullCount = 0
		return 0
	}
	bm := view.vec.nsp.GetBitmap()
	if bm == nil {
		view.nullCount = 0
		return 0
	}
	view.nullCount = bm.CountRange(uint64(view.offset), uint64(view.offset+view.length))
	return view.nullCount
}

func (view View) HasNulls() bool {
	v := &view
	return v.NullCount() > 0
}

// ViewFixedCol exposes the window's elements of a fixed width view. For
// const vectors the single stored element is returned; callers collapse
// the index themselves.
func ViewFixedCol[T types.FixedSizeT](view View) []T {
	col := MustFixedCol[T](view.vec)
	if view.vec.IsConst() {
		return col
	}
	return col[view.offset : view.offset+view.length]
}

// GetViewBytesAt resolves a varchar row through the offsets child.
func (view View) GetViewBytesAt(i int) []byte {
	if view.vec.IsConst() {
		return view.vec.GetBytesAt(0)
	}
	return view.vec.GetBytesAt(view.offset + i)
}

// ChildView returns the offsets child seen through the same window. The
// offsets child of a varchar parent has length+1 visible entries.
func (view View) ChildView(i int) View {
	child := view.vec.children[i]
	if i == 0 {
		return View{
			vec:       child,
			offset:    view.offset,
			length:    view.length + 1,
			nullCount: UnknownNullCount,
		}
	}
	// byte child: the window in bytes is derived from the offsets
	offs := view.vec.Offsets()
	lo, hi := offs[view.offset], offs[view.offset+view.length]
	return View{
		vec:       child,
		offset:    int(lo),
		length:    int(hi - lo),
		nullCount: UnknownNullCount,
	}
}

// Dup materializes the window into a fresh owning vector. Element data
// is copied from the offset and the null bits are rebased to zero.
func (view View) Dup(mp *mpool.MPool) (*Vector, error) {
	v := view.vec
	if v.IsConstNull() {
		return NewConstNull(v.typ, view.length, mp), nil
	}
	if v.IsConst() {
		w, err := v.Dup(mp)
		if err != nil {
			return nil, err
		}
		w.length = view.length
		return w, nil
	}
	if view.length == 0 {
		return NewVec(v.typ), nil
	}
	w := NewVec(v.typ)
	w.length = view.length
	if v.typ.IsVarlen() {
		offs := v.Offsets()
		lo, hi := offs[view.offset], offs[view.offset+view.length]
		newOffs := make([]int32, view.length+1)
		for i := range newOffs {
			newOffs[i] = offs[view.offset+i] - lo
		}
		if err := AppendList(w.children[0], newOffs, nil, mp); err != nil {
			w.Free(mp)
			return nil, err
		}
		if err := AppendList(w.children[1], v.ByteBuffer()[lo:hi], nil, mp); err != nil {
			w.Free(mp)
			return nil, err
		}
	} else if view.length > 0 {
		sz := v.typ.TypeSize()
		data, err := mp.Alloc(view.length * sz)
		if err != nil {
			return nil, err
		}
		copy(data, v.data[view.offset*sz:(view.offset+view.length)*sz])
		w.data = data
		w.capacity = len(data) / sz
	}
	if nulls.Any(v.nsp) {
		nulls.Range(v.nsp, uint64(view.offset), uint64(view.offset+view.length), uint64(view.offset), w.nsp)
	}
	w.nullCount = UnknownNullCount
	return w, nil
}

// CloneView materializes a view into an owning vector; see View.Dup.
func CloneView(view View, mp *mpool.MPool) (*Vector, error) {
	return view.Dup(mp)
}

// MutableView hands out writable access; taking one marks the owner's
// null count unknown until the next NullCount call recomputes it.
type MutableView struct {
	View
}

func (v *Vector) AsMutableView() MutableView {
	v.InvalidateNullCount()
	return MutableView{View: v.AsView()}
}

func (v *Vector) MutableWindow(start, end int) (MutableView, error) {
	view, err := v.Window(start, end)
	if err != nil {
		return MutableView{}, err
	}
	v.InvalidateNullCount()
	return MutableView{View: view}, nil
}

// MutableCol exposes writable elements of the window.
func MutableCol[T types.FixedSizeT](view MutableView) []T {
	return ViewFixedCol[T](view.View)
}

// SetNull sets or clears the null bit of row i, i relative to the view.
func (view MutableView) SetNull(i int, isNull bool) {
	row := uint64(view.offset + i)
	if isNull {
		nulls.Add(view.vec.nsp, row)
	} else {
		nulls.Del(view.vec.nsp, row)
	}
	view.vec.nullCount = UnknownNullCount
}

func (view MutableView) Owner() *Vector {
	return view.vec
}
