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

package memory

import (
	"unsafe"

	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
)

func Slice(s []byte, offset, length uint64) []byte {
	return s[offset : offset+length]
}

// CastFrom views length elements of T starting at pointer.
func CastFrom[T types.Number](pointer unsafe.Pointer, length uint64) []T {
	return unsafe.Slice((*T)(pointer), length)
}

// InRange reports whether [offset, offset+size) lies within a region of
// the given length, without overflowing.
func InRange(offset, size, length uint64) bool {
	return offset <= length && size <= length-offset
}
