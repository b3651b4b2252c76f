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

package max

import (
	"github.com/difyrrwrzd/cudf-sub003/pkg/container/types"
)

func Max[T types.OrderedT](xs []T) T {
	res := xs[0]
	for _, x := range xs {
		if x > res {
			res = x
		}
	}
	return res
}

func MaxSels[T types.OrderedT](xs []T, sels []int64) T {
	res := xs[sels[0]]
	for _, sel := range sels {
		if xs[sel] > res {
			res = xs[sel]
		}
	}
	return res
}

// BoolMax is logical OR over the column.
func BoolMax(xs []bool) bool {
	for _, x := range xs {
		if x {
			return true
		}
	}
	return false
}

func BoolMaxSels(xs []bool, sels []int64) bool {
	for _, sel := range sels {
		if xs[sel] {
			return true
		}
	}
	return false
}
