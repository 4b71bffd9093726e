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
	"github.com/v6d-io/v6d/go/wire/pkg/common"
)

// SerializeBuffer is a forward-only cursor over a fixed byte region that hands
// out zeroed, wire-aligned slots.
type SerializeBuffer struct {
	buf []byte
	pos int
}

func NewSerializeBuffer(buf []byte) *SerializeBuffer {
	return &SerializeBuffer{buf: buf}
}

// Next reserves size bytes, advancing the cursor by size rounded up to the
// wire alignment.
func (b *SerializeBuffer) Next(size int) ([]byte, error) {
	if size < 0 {
		return nil, common.FatalError("negative reservation of %d bytes", size)
	}
	return b.NextN(uint64(size), 1)
}

// NextN reserves count contiguous elements of elemSize bytes.
func (b *SerializeBuffer) NextN(count uint64, elemSize int) ([]byte, error) {
	size, ok := WireAlignSizeofN(count, uint64(elemSize))
	if !ok {
		return nil, common.FatalError("reserving %d elements of %d bytes overflows", count, elemSize)
	}
	if size > uint64(b.AvailableSize()) {
		return nil, common.FatalError("reserving %d bytes with only %d available", size, b.AvailableSize())
	}
	slot := b.buf[b.pos : b.pos+int(size)]
	clear(slot)
	b.pos += int(size)
	return slot[:count*uint64(elemSize)], nil
}

func (b *SerializeBuffer) AvailableSize() int {
	return len(b.buf) - b.pos
}

// Bytes returns everything reserved so far.
func (b *SerializeBuffer) Bytes() []byte {
	return b.buf[:b.pos]
}

// DeserializeBuffer is a forward-only cursor over untrusted bytes. Peek and
// Read return private snapshots, so a value checked once cannot change
// underneath the caller even when the source is shared with the peer.
type DeserializeBuffer struct {
	buf []byte
	pos int
}

func NewDeserializeBuffer(buf []byte) *DeserializeBuffer {
	return &DeserializeBuffer{buf: buf}
}

func (b *DeserializeBuffer) AvailableSize() int {
	return len(b.buf) - b.pos
}

// Peek returns a copy of the next size bytes without consuming them.
func (b *DeserializeBuffer) Peek(size int) ([]byte, error) {
	if size < 0 || size > b.AvailableSize() {
		return nil, common.FatalError("peeking %d bytes with only %d available", size, b.AvailableSize())
	}
	out := make([]byte, size)
	copy(out, b.buf[b.pos:])
	return out, nil
}

// Read consumes a wire-aligned slot of size bytes and returns a copy of it.
func (b *DeserializeBuffer) Read(size int) ([]byte, error) {
	if size < 0 {
		return nil, common.FatalError("negative read of %d bytes", size)
	}
	view, err := b.ReadN(uint64(size), 1)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// ReadN consumes count elements of elemSize bytes and returns a view into
// the source. Callers must copy the view before interpreting it unless the
// bytes are opaque data.
func (b *DeserializeBuffer) ReadN(count uint64, elemSize int) ([]byte, error) {
	size, ok := WireAlignSizeofN(count, uint64(elemSize))
	if !ok {
		return nil, common.FatalError("reading %d elements of %d bytes overflows", count, elemSize)
	}
	if size > uint64(b.AvailableSize()) {
		return nil, common.FatalError("reading %d bytes with only %d available", size, b.AvailableSize())
	}
	view := b.buf[b.pos : b.pos+int(count*uint64(elemSize)) : b.pos+int(count*uint64(elemSize))]
	b.pos += int(size)
	return view, nil
}
