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

package transfer

import (
	"github.com/apache/arrow/go/v11/arrow/memory"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	cmemory "github.com/v6d-io/v6d/go/wire/pkg/common/memory"
)

func checkRange(what string, offset, size, length uint64) error {
	if !cmemory.InRange(offset, size, length) {
		return common.FatalError("%s [%d, +%d) is out of the %d bytes mapped", what, offset, size, length)
	}
	return nil
}

// InlineClientService sends buffer contents through the command stream
// itself. Its shadow memory comes from an Arrow allocator.
type InlineClientService struct {
	mem memory.Allocator
}

func NewInlineClientService(mem memory.Allocator) *InlineClientService {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &InlineClientService{mem: mem}
}

func (s *InlineClientService) shadow(size uint64) (*memory.Buffer, error) {
	if size > common.DefaultMaxAllocationSize {
		return nil, common.Errorf(common.KNotEnoughMemory, "cannot shadow a buffer of %d bytes", size)
	}
	buf := memory.NewResizableBuffer(s.mem)
	buf.Resize(int(size))
	return buf, nil
}

func (s *InlineClientService) CreateReadHandle(size uint64) (ReadHandle, error) {
	buf, err := s.shadow(size)
	if err != nil {
		return nil, err
	}
	return &inlineReadHandle{buf: buf}, nil
}

func (s *InlineClientService) CreateWriteHandle(size uint64) (WriteHandle, error) {
	buf, err := s.shadow(size)
	if err != nil {
		return nil, err
	}
	return &inlineWriteHandle{buf: buf}, nil
}

type inlineReadHandle struct {
	buf *memory.Buffer
}

func (h *inlineReadHandle) SerializeCreateSize() uint64 { return 0 }

func (h *inlineReadHandle) SerializeCreate([]byte) {}

func (h *inlineReadHandle) DeserializeDataUpdate(src []byte, offset, size uint64) error {
	if uint64(len(src)) != size {
		return common.FatalError("read update carries %d bytes, %d expected", len(src), size)
	}
	data := h.buf.Bytes()
	if err := checkRange("read update", offset, size, uint64(len(data))); err != nil {
		return err
	}
	copy(data[offset:], src)
	return nil
}

func (h *inlineReadHandle) Data() []byte {
	return h.buf.Bytes()
}

func (h *inlineReadHandle) Close() error {
	if h.buf != nil {
		h.buf.Release()
		h.buf = nil
	}
	return nil
}

type inlineWriteHandle struct {
	buf *memory.Buffer
}

func (h *inlineWriteHandle) SerializeCreateSize() uint64 { return 0 }

func (h *inlineWriteHandle) SerializeCreate([]byte) {}

func (h *inlineWriteHandle) SetTarget([]byte) {}

func (h *inlineWriteHandle) SizeOfSerializeDataUpdate(_, size uint64) uint64 {
	return size
}

func (h *inlineWriteHandle) SerializeDataUpdate(dst []byte, offset, size uint64) {
	copy(dst[:size], cmemory.Slice(h.buf.Bytes(), offset, size))
}

func (h *inlineWriteHandle) Data() []byte {
	return h.buf.Bytes()
}

func (h *inlineWriteHandle) Close() error {
	if h.buf != nil {
		h.buf.Release()
		h.buf = nil
	}
	return nil
}

// InlineServerService is the server side of InlineClientService.
type InlineServerService struct{}

func (InlineServerService) DeserializeReadHandle(info []byte) (ServerReadHandle, error) {
	if len(info) != 0 {
		return nil, common.FatalError("inline read handle carries %d bytes of metadata", len(info))
	}
	return inlineServerReadHandle{}, nil
}

func (InlineServerService) DeserializeWriteHandle(info []byte) (ServerWriteHandle, error) {
	if len(info) != 0 {
		return nil, common.FatalError("inline write handle carries %d bytes of metadata", len(info))
	}
	return &inlineServerWriteHandle{}, nil
}

type inlineServerReadHandle struct{}

func (inlineServerReadHandle) SizeOfSerializeDataUpdate(_, size uint64) uint64 {
	return size
}

func (inlineServerReadHandle) SerializeDataUpdate(data []byte, _, size uint64, dst []byte) error {
	if uint64(len(data)) < size || uint64(len(dst)) < size {
		return common.Errorf(common.KInvalid, "read update of %d bytes does not fit", size)
	}
	copy(dst, data[:size])
	return nil
}

func (inlineServerReadHandle) Close() error { return nil }

type inlineServerWriteHandle struct {
	target []byte
}

func (h *inlineServerWriteHandle) SetTarget(data []byte) {
	h.target = data
}

func (h *inlineServerWriteHandle) DeserializeDataUpdate(src []byte, offset, size uint64) error {
	if uint64(len(src)) != size {
		return common.FatalError("write update carries %d bytes, %d expected", len(src), size)
	}
	if h.target == nil {
		return common.FatalError("write update with no mapped target")
	}
	if err := checkRange("write update", offset, size, uint64(len(h.target))); err != nil {
		return err
	}
	copy(h.target[offset:], src)
	return nil
}

func (h *inlineServerWriteHandle) Close() error {
	h.target = nil
	return nil
}
