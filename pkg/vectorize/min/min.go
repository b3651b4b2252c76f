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

package min

import (
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
)

func Min[T types.OrderedT](xs []T) T {
	res := xs[0]
	for _, x := range xs {
		if x < res {
			res = x
		}
	}
	return res
}

func MinSels[T types.OrderedT](xs []T, sels []int64) T {
	res := xs[sels[0]]
	for _, sel := range sels {
		if xs[sel] < res {
			res = xs[sel]
		}
	}
	return res
}

// BoolMin is logical AND over the column.
func BoolMin(xs []bool) bool {
	for _, x := range xs {
		if !x {
			return false
		}
	}
	return true
}

func BoolMinSels(xs []bool, sels []int64) bool {
	for _, sel := range sels {
		if !xs[sel] {
			return false
		}
	}
	return true
}
