/** Copyright 2020-2023 Alibaba Group Holding Limited.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wire

import (
	"math"
	"math/bits"

	"golang.org/x/exp/constraints"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
)

// Align rounds v up to a multiple of a, which must be a power of two. The
// second result is false if the rounded value does not fit in T.
func Align[T constraints.Unsigned](v, a T) (T, bool) {
	r := (v + a - 1) &^ (a - 1)
	return r, r >= v
}

// WireAlignSizeof rounds size up to the wire alignment.
func WireAlignSizeof(size int) int {
	return (size + common.WireAlignment - 1) &^ (common.WireAlignment - 1)
}

// WireAlignSizeofN computes count*elemSize rounded up to the wire alignment.
// It fails if the product or the rounding overflows, or if the result is not
// addressable.
func WireAlignSizeofN(count, elemSize uint64) (uint64, bool) {
	hi, lo := bits.Mul64(count, elemSize)
	if hi != 0 {
		return 0, false
	}
	size, ok := Align(lo, uint64(common.WireAlignment))
	if !ok || size > math.MaxInt {
		return 0, false
	}
	return size, true
}

func alignInt(v, a int) int {
	return (v + a - 1) &^ (a - 1)
}
