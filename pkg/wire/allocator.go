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
	"unsafe"

	arrow "github.com/apache/arrow/go/v11/arrow/memory"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/memory"
)

// DeserializeAllocator hands out the memory decoded records point into.
// GetSpace returns size bytes aligned to the wire alignment, or nil when the
// request cannot be satisfied.
type DeserializeAllocator interface {
	GetSpace(size int) []byte
}

// HeapAllocator allocates every request from the Go heap. A non-zero Limit
// caps the total number of bytes it will hand out.
type HeapAllocator struct {
	Limit     int
	allocated int
}

func (a *HeapAllocator) GetSpace(size int) []byte {
	if size < 0 || (a.Limit > 0 && size > a.Limit-a.allocated) {
		return nil
	}
	a.allocated += size
	words := make([]uint64, (size+7)/8)
	if len(words) == 0 {
		return []byte{}
	}
	return memory.CastFrom[byte](unsafe.Pointer(&words[0]), uint64(len(words)*8))[:size]
}

const arenaChunkSize = 2048

// ArenaAllocator carves decode space out of chunks obtained from an Arrow
// allocator. Everything it handed out is released at once by Reset, which
// the server calls after each command batch.
type ArenaAllocator struct {
	mem       arrow.Allocator
	limit     int
	allocated int
	chunks    [][]byte
	current   []byte
	used      int
}

// NewArenaAllocator returns an arena over mem. A limit of 0 selects
// common.DefaultMaxAllocationSize.
func NewArenaAllocator(mem arrow.Allocator, limit int) *ArenaAllocator {
	if mem == nil {
		mem = arrow.DefaultAllocator
	}
	if limit <= 0 {
		limit = common.DefaultMaxAllocationSize
	}
	return &ArenaAllocator{mem: mem, limit: limit}
}

func (a *ArenaAllocator) GetSpace(size int) []byte {
	if size < 0 {
		return nil
	}
	aligned := alignInt(size, common.WireAlignment)
	if aligned < size {
		return nil
	}
	if aligned <= len(a.current)-a.used {
		space := a.current[a.used : a.used+size : a.used+aligned]
		a.used += aligned
		return space
	}
	chunk := aligned
	if chunk < arenaChunkSize {
		chunk = arenaChunkSize
	}
	if chunk > a.limit-a.allocated {
		return nil
	}
	buf := a.mem.Allocate(chunk)
	if len(buf) < chunk {
		return nil
	}
	a.allocated += chunk
	a.chunks = append(a.chunks, buf)
	a.current, a.used = buf, aligned
	return buf[:size:aligned]
}

// Allocated reports the number of bytes currently held from the underlying
// allocator.
func (a *ArenaAllocator) Allocated() int {
	return a.allocated
}

// Reset releases every chunk. Records decoded into the arena must not be
// used afterwards.
func (a *ArenaAllocator) Reset() {
	for _, chunk := range a.chunks {
		a.mem.Free(chunk)
	}
	a.chunks = nil
	a.current, a.used, a.allocated = nil, 0, 0
}
