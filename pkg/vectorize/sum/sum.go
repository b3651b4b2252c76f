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

package sum

import (
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
)

// ReturnType widens the accumulator: signed ints sum into int64,
// unsigned into uint64, floats into float64.
type ReturnType interface {
	int64 | uint64 | float64
}

func Sum[T types.Number, R ReturnType](xs []T) R {
	var sum R
	for _, x := range xs {
		sum += R(x)
	}
	return sum
}

// SumSels accumulates only the selected rows.
func SumSels[T types.Number, R ReturnType](xs []T, sels []int64) R {
	var sum R
	for _, sel := range sels {
		sum += R(xs[sel])
	}
	return sum
}

func SumOfSquares[T types.Number](xs []T) float64 {
	var sum float64
	for _, x := range xs {
		f := float64(x)
		sum += f * f
	}
	return sum
}

func SumOfSquaresSels[T types.Number](xs []T, sels []int64) float64 {
	var sum float64
	for _, sel := range sels {
		f := float64(xs[sel])
		sum += f * f
	}
	return sum
}
