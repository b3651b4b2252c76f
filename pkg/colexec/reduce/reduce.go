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

// Package reduce folds a column view into a one row const vector. Null
// rows are skipped by selection; an empty or all-null input produces a
// null scalar, never an error. The output validity rule is uniform:
// the scalar is valid iff at least one input row was valid.
package reduce

import (
	"math"

	"github.com/difyrrwrzd/cudf-sub003/pkg/common/moerr"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/vector"
	"github.com/difyrrwrzd/cudf-sub003/pkg/logutil"
	"github.com/difyrrwrzd/cudf-sub003/pkg/vectorize/max"
	"github.com/difyrrwrzd/cudf-sub003/pkg/vectorize/min"
	"github.com/difyrrwrzd/cudf-sub003/pkg/vectorize/sum"
	"github.com/difyrrwrzd/cudf-sub003/pkg/vm/process"
)

type accKind int

const (
	accInt accKind = iota
	accUint
	accFloat
)

// acc carries a reduced value in its widest representation until the
// output type is known.
type acc struct {
	kind accKind
	i    int64
	u    uint64
	f    float64
}

func intAcc(v int64) acc     { return acc{kind: accInt, i: v} }
func uintAcc(v uint64) acc   { return acc{kind: accUint, u: v} }
func floatAcc(v float64) acc { return acc{kind: accFloat, f: v} }

func castAcc[T types.Number](a acc) T {
	switch a.kind {
	case accUint:
		return T(a.u)
	case accFloat:
		return T(a.f)
	default:
		return T(a.i)
	}
}

func (a acc) nonZero() bool {
	switch a.kind {
	case accUint:
		return a.u != 0
	case accFloat:
		return a.f != 0
	default:
		return a.i != 0
	}
}

// makeScalar converts the accumulator into a valid one row const vector
// of the requested type.
func makeScalar(proc *process.Process, outTyp types.Type, a acc) (*vector.Vector, error) {
	mp := proc.Mp()
	switch outTyp.Oid {
	case types.T_bool:
		return vector.NewConstFixed[bool](outTyp, a.nonZero(), 1, mp)
	case types.T_int8:
		return vector.NewConstFixed[int8](outTyp, castAcc[int8](a), 1, mp)
	case types.T_int16:
		return vector.NewConstFixed[int16](outTyp, castAcc[int16](a), 1, mp)
	case types.T_int32:
		return vector.NewConstFixed[int32](outTyp, castAcc[int32](a), 1, mp)
	case types.T_int64:
		return vector.NewConstFixed[int64](outTyp, castAcc[int64](a), 1, mp)
	case types.T_uint8:
		return vector.NewConstFixed[uint8](outTyp, castAcc[uint8](a), 1, mp)
	case types.T_uint16:
		return vector.NewConstFixed[uint16](outTyp, castAcc[uint16](a), 1, mp)
	case types.T_uint32:
		return vector.NewConstFixed[uint32](outTyp, castAcc[uint32](a), 1, mp)
	case types.T_uint64:
		return vector.NewConstFixed[uint64](outTyp, castAcc[uint64](a), 1, mp)
	case types.T_float32:
		return vector.NewConstFixed[float32](outTyp, castAcc[float32](a), 1, mp)
	case types.T_float64:
		return vector.NewConstFixed[float64](outTyp, castAcc[float64](a), 1, mp)
	default:
		return nil, moerr.NewUnsupportedTypeNoCtx("%s as reduction output", outTyp)
	}
}

// validSels lists the valid rows of the view, view relative. nil means
// every row is valid.
func validSels(view vector.View) []int64 {
	if !view.HasNulls() {
		return nil
	}
	sels := make([]int64, 0, view.Length()-nullCountOf(view))
	for i := 0; i < view.Length(); i++ {
		if !view.IsNull(i) {
			sels = append(sels, int64(i))
		}
	}
	return sels
}

func nullCountOf(view vector.View) int {
	v := &view
	return v.NullCount()
}

// degenerate reports whether the reduction has no valid input, in which
// case the scalar is null.
func degenerate(view vector.View) bool {
	return view.Length() == 0 || nullCountOf(view) == view.Length()
}

func checkOut(view vector.View, outTyp types.Type) error {
	if !view.GetType().Oid.ConvertibleTo(outTyp.Oid) {
		return moerr.NewTypeMismatchNoCtx("cannot reduce %s into %s", view.GetType(), &outTyp)
	}
	return nil
}

// Sum adds the valid rows. Bool columns sum to the count of true rows.
func Sum(proc *process.Process, view vector.View, outTyp types.Type) (*vector.Vector, error) {
	if err := checkOut(view, outTyp); err != nil {
		return nil, err
	}
	logutil.Debugf("reduce sum over %d rows", view.Length())
	if degenerate(view) {
		return vector.NewConstNull(outTyp, 1, proc.Mp()), nil
	}
	if view.IsConst() {
		// one stored element meaning length rows
		a, err := sumAcc(view, []int64{0})
		if err != nil {
			return nil, err
		}
		return makeScalar(proc, outTyp, a.scale(int64(view.Length())))
	}
	sels := validSels(view)
	a, err := sumAcc(view, sels)
	if err != nil {
		return nil, err
	}
	return makeScalar(proc, outTyp, a)
}

func (a acc) scale(n int64) acc {
	switch a.kind {
	case accUint:
		a.u *= uint64(n)
	case accFloat:
		a.f *= float64(n)
	default:
		a.i *= n
	}
	return a
}

func sumAcc(view vector.View, sels []int64) (acc, error) {
	switch view.GetType().Oid {
	case types.T_bool:
		var cnt int64
		xs := vector.ViewFixedCol[bool](view)
		if sels == nil {
			for _, x := range xs {
				if x {
					cnt++
				}
			}
		} else {
			for _, sel := range sels {
				if xs[sel] {
					cnt++
				}
			}
		}
		return intAcc(cnt), nil
	case types.T_int8:
		return sumNum[int8, int64](view, sels), nil
	case types.T_int16:
		return sumNum[int16, int64](view, sels), nil
	case types.T_int32:
		return sumNum[int32, int64](view, sels), nil
	case types.T_int64:
		return sumNum[int64, int64](view, sels), nil
	case types.T_uint8:
		return sumNum[uint8, uint64](view, sels), nil
	case types.T_uint16:
		return sumNum[uint16, uint64](view, sels), nil
	case types.T_uint32:
		return sumNum[uint32, uint64](view, sels), nil
	case types.T_uint64:
		return sumNum[uint64, uint64](view, sels), nil
	case types.T_float32:
		return sumNum[float32, float64](view, sels), nil
	case types.T_float64:
		return sumNum[float64, float64](view, sels), nil
	default:
		return acc{}, moerr.NewUnsupportedTypeNoCtx("sum over %s", view.GetType())
	}
}

func sumNum[T types.Number, R sum.ReturnType](view vector.View, sels []int64) acc {
	xs := vector.ViewFixedCol[T](view)
	var r R
	if sels == nil {
		r = sum.Sum[T, R](xs)
	} else {
		r = sum.SumSels[T, R](xs, sels)
	}
	switch v := any(r).(type) {
	case int64:
		return intAcc(v)
	case uint64:
		return uintAcc(v)
	default:
		return floatAcc(any(r).(float64))
	}
}

// Min returns the smallest valid row.
func Min(proc *process.Process, view vector.View, outTyp types.Type) (*vector.Vector, error) {
	return extremum(proc, view, outTyp, true)
}

// Max returns the largest valid row.
func Max(proc *process.Process, view vector.View, outTyp types.Type) (*vector.Vector, error) {
	return extremum(proc, view, outTyp, false)
}

func extremum(proc *process.Process, view vector.View, outTyp types.Type, isMin bool) (*vector.Vector, error) {
	if err := checkOut(view, outTyp); err != nil {
		return nil, err
	}
	if degenerate(view) {
		return vector.NewConstNull(outTyp, 1, proc.Mp()), nil
	}
	sels := validSels(view)
	switch view.GetType().Oid {
	case types.T_bool:
		xs := vector.ViewFixedCol[bool](view)
		var v bool
		if isMin {
			if sels == nil {
				v = min.BoolMin(xs)
			} else {
				v = min.BoolMinSels(xs, sels)
			}
		} else {
			if sels == nil {
				v = max.BoolMax(xs)
			} else {
				v = max.BoolMaxSels(xs, sels)
			}
		}
		a := intAcc(0)
		if v {
			a = intAcc(1)
		}
		return makeScalar(proc, outTyp, a)
	case types.T_int8:
		return makeScalar(proc, outTyp, extAcc[int8](view, sels, isMin, accInt))
	case types.T_int16:
		return makeScalar(proc, outTyp, extAcc[int16](view, sels, isMin, accInt))
	case types.T_int32:
		return makeScalar(proc, outTyp, extAcc[int32](view, sels, isMin, accInt))
	case types.T_int64:
		return makeScalar(proc, outTyp, extAcc[int64](view, sels, isMin, accInt))
	case types.T_uint8:
		return makeScalar(proc, outTyp, extAcc[uint8](view, sels, isMin, accUint))
	case types.T_uint16:
		return makeScalar(proc, outTyp, extAcc[uint16](view, sels, isMin, accUint))
	case types.T_uint32:
		return makeScalar(proc, outTyp, extAcc[uint32](view, sels, isMin, accUint))
	case types.T_uint64:
		return makeScalar(proc, outTyp, extAcc[uint64](view, sels, isMin, accUint))
	case types.T_float32:
		return makeScalar(proc, outTyp, extAcc[float32](view, sels, isMin, accFloat))
	case types.T_float64:
		return makeScalar(proc, outTyp, extAcc[float64](view, sels, isMin, accFloat))
	case types.T_date:
		return extremumFixed[types.Date](proc, view, outTyp, sels, isMin)
	case types.T_datetime:
		return extremumFixed[types.Datetime](proc, view, outTyp, sels, isMin)
	case types.T_timestamp:
		return extremumFixed[types.Timestamp](proc, view, outTyp, sels, isMin)
	case types.T_decimal64:
		return extremumFixed[types.Decimal64](proc, view, outTyp, sels, isMin)
	default:
		return nil, moerr.NewUnsupportedTypeNoCtx("min/max over %s", view.GetType())
	}
}

func extAcc[T types.Number](view vector.View, sels []int64, isMin bool, kind accKind) acc {
	xs := vector.ViewFixedCol[T](view)
	var v T
	if isMin {
		if sels == nil {
			v = min.Min(xs)
		} else {
			v = min.MinSels(xs, sels)
		}
	} else {
		if sels == nil {
			v = max.Max(xs)
		} else {
			v = max.MaxSels(xs, sels)
		}
	}
	switch kind {
	case accUint:
		return uintAcc(uint64(v))
	case accFloat:
		return floatAcc(float64(v))
	default:
		return intAcc(int64(v))
	}
}

// extremumFixed handles the ordered non-arithmetic types, whose output
// type is always the input type.
func extremumFixed[T types.OrderedT](proc *process.Process, view vector.View, outTyp types.Type, sels []int64, isMin bool) (*vector.Vector, error) {
	xs := vector.ViewFixedCol[T](view)
	var v T
	if isMin {
		if sels == nil {
			v = min.Min(xs)
		} else {
			v = min.MinSels(xs, sels)
		}
	} else {
		if sels == nil {
			v = max.Max(xs)
		} else {
			v = max.MaxSels(xs, sels)
		}
	}
	return vector.NewConstFixed[T](outTyp, v, 1, proc.Mp())
}

// SumOfSquares adds the squares of the valid rows into a float scalar.
func SumOfSquares(proc *process.Process, view vector.View, outTyp types.Type) (*vector.Vector, error) {
	if err := checkOut(view, outTyp); err != nil {
		return nil, err
	}
	if degenerate(view) {
		return vector.NewConstNull(outTyp, 1, proc.Mp()), nil
	}
	sels := validSels(view)
	if view.IsConst() {
		sels = []int64{0}
	}
	var v float64
	switch view.GetType().Oid {
	case types.T_int8:
		v = sumSq[int8](view, sels)
	case types.T_int16:
		v = sumSq[int16](view, sels)
	case types.T_int32:
		v = sumSq[int32](view, sels)
	case types.T_int64:
		v = sumSq[int64](view, sels)
	case types.T_uint8:
		v = sumSq[uint8](view, sels)
	case types.T_uint16:
		v = sumSq[uint16](view, sels)
	case types.T_uint32:
		v = sumSq[uint32](view, sels)
	case types.T_uint64:
		v = sumSq[uint64](view, sels)
	case types.T_float32:
		v = sumSq[float32](view, sels)
	case types.T_float64:
		v = sumSq[float64](view, sels)
	default:
		return nil, moerr.NewUnsupportedTypeNoCtx("sum of squares over %s", view.GetType())
	}
	if view.IsConst() {
		v *= float64(view.Length())
	}
	return makeScalar(proc, outTyp, floatAcc(v))
}

func sumSq[T types.Number](view vector.View, sels []int64) float64 {
	xs := vector.ViewFixedCol[T](view)
	if sels == nil {
		return sum.SumOfSquares(xs)
	}
	return sum.SumOfSquaresSels(xs, sels)
}

// Any is true when any valid row is true.
func Any(proc *process.Process, view vector.View) (*vector.Vector, error) {
	return boolFold(proc, view, false)
}

// All is true when every valid row is true.
func All(proc *process.Process, view vector.View) (*vector.Vector, error) {
	return boolFold(proc, view, true)
}

func boolFold(proc *process.Process, view vector.View, conjunctive bool) (*vector.Vector, error) {
	outTyp := types.T_bool.ToType()
	if view.GetType().Oid != types.T_bool {
		return nil, moerr.NewTypeMismatchNoCtx("any/all over %s", view.GetType())
	}
	if degenerate(view) {
		return vector.NewConstNull(outTyp, 1, proc.Mp()), nil
	}
	sels := validSels(view)
	xs := vector.ViewFixedCol[bool](view)
	var v bool
	if conjunctive {
		if sels == nil {
			v = min.BoolMin(xs)
		} else {
			v = min.BoolMinSels(xs, sels)
		}
	} else {
		if sels == nil {
			v = max.BoolMax(xs)
		} else {
			v = max.BoolMaxSels(xs, sels)
		}
	}
	return vector.NewConstFixed[bool](outTyp, v, 1, proc.Mp())
}

// Mean is the sum of the valid rows over their count, as float64.
func Mean(proc *process.Process, view vector.View) (*vector.Vector, error) {
	outTyp := types.T_float64.ToType()
	if !view.GetType().Oid.IsArithmetic() {
		return nil, moerr.NewUnsupportedTypeNoCtx("mean over %s", view.GetType())
	}
	if degenerate(view) {
		return vector.NewConstNull(outTyp, 1, proc.Mp()), nil
	}
	m, _, ok := meanOf(view)
	if !ok {
		return vector.NewConstNull(outTyp, 1, proc.Mp()), nil
	}
	return vector.NewConstFixed[float64](outTyp, m, 1, proc.Mp())
}

// Var is the squared deviation sum over (count - ddof). The scalar is
// null when count <= ddof.
func Var(proc *process.Process, view vector.View, ddof int) (*vector.Vector, error) {
	outTyp := types.T_float64.ToType()
	if !view.GetType().Oid.IsArithmetic() {
		return nil, moerr.NewUnsupportedTypeNoCtx("variance over %s", view.GetType())
	}
	v, ok := varOf(view, ddof)
	if !ok {
		return vector.NewConstNull(outTyp, 1, proc.Mp()), nil
	}
	return vector.NewConstFixed[float64](outTyp, v, 1, proc.Mp())
}

// Std is the square root of Var with the same ddof rule.
func Std(proc *process.Process, view vector.View, ddof int) (*vector.Vector, error) {
	outTyp := types.T_float64.ToType()
	if !view.GetType().Oid.IsArithmetic() {
		return nil, moerr.NewUnsupportedTypeNoCtx("stddev over %s", view.GetType())
	}
	v, ok := varOf(view, ddof)
	if !ok {
		return vector.NewConstNull(outTyp, 1, proc.Mp()), nil
	}
	return vector.NewConstFixed[float64](outTyp, math.Sqrt(v), 1, proc.Mp())
}

// meanOf returns mean and valid count.
func meanOf(view vector.View) (float64, int, bool) {
	count := view.Length() - nullCountOf(view)
	if count == 0 {
		return 0, 0, false
	}
	if view.IsConst() {
		// mean of a repeated value is the value
		a, err := sumAcc(view, []int64{0})
		if err != nil {
			return 0, 0, false
		}
		var v float64
		switch a.kind {
		case accUint:
			v = float64(a.u)
		case accFloat:
			v = a.f
		default:
			v = float64(a.i)
		}
		return v, count, true
	}
	sels := validSels(view)
	a, err := sumAcc(view, sels)
	if err != nil {
		return 0, 0, false
	}
	var total float64
	switch a.kind {
	case accUint:
		total = float64(a.u)
	case accFloat:
		total = a.f
	default:
		total = float64(a.i)
	}
	return total / float64(count), count, true
}

// varOf runs the two pass variance: mean first, then squared deviations.
func varOf(view vector.View, ddof int) (float64, bool) {
	m, count, ok := meanOf(view)
	if !ok || count <= ddof {
		return 0, false
	}
	if view.IsConst() {
		// zero spread
		return 0, true
	}
	var ssd float64
	add := func(x float64) {
		d := x - m
		ssd += d * d
	}
	switch view.GetType().Oid {
	case types.T_int8:
		devSum[int8](view, add)
	case types.T_int16:
		devSum[int16](view, add)
	case types.T_int32:
		devSum[int32](view, add)
	case types.T_int64:
		devSum[int64](view, add)
	case types.T_uint8:
		devSum[uint8](view, add)
	case types.T_uint16:
		devSum[uint16](view, add)
	case types.T_uint32:
		devSum[uint32](view, add)
	case types.T_uint64:
		devSum[uint64](view, add)
	case types.T_float32:
		devSum[float32](view, add)
	case types.T_float64:
		devSum[float64](view, add)
	}
	return ssd / float64(count-ddof), true
}

func devSum[T types.Number](view vector.View, add func(float64)) {
	xs := vector.ViewFixedCol[T](view)
	if !view.HasNulls() {
		for _, x := range xs {
			add(float64(x))
		}
		return
	}
	for i, x := range xs {
		if !view.IsNull(i) {
			add(float64(x))
		}
	}
}
