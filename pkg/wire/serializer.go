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

// CommandSerializer hands out space for commands and ships them to the peer.
type CommandSerializer interface {
	// GetCmdSpace returns size bytes to encode one command into. They must be
	// filled before the next call.
	GetCmdSpace(size uint64) ([]byte, error)
	Flush() error
}

// CommandHandler consumes a batch of serialized commands.
type CommandHandler interface {
	HandleCommands(data []byte) error
}

// SerializeCommandTo encodes cmd and copies it into space reserved from s.
// Nothing is reserved if encoding fails.
func SerializeCommandTo(s CommandSerializer, cmd Command, provider ObjectIdProvider) error {
	data, err := Encode(cmd, provider)
	if err != nil {
		return err
	}
	space, err := s.GetCmdSpace(uint64(len(data)))
	if err != nil {
		return err
	}
	copy(space, data)
	return nil
}

const DefaultMaxCommandBufferSize = 1 << 24

// CommandBuffer batches commands in memory and hands them to a handler on
// Flush.
type CommandBuffer struct {
	handler CommandHandler
	maxSize uint64
	buf     []byte
}

// NewCommandBuffer returns a buffer holding at most maxSize bytes between
// flushes; 0 selects DefaultMaxCommandBufferSize.
func NewCommandBuffer(handler CommandHandler, maxSize uint64) *CommandBuffer {
	if maxSize == 0 {
		maxSize = DefaultMaxCommandBufferSize
	}
	return &CommandBuffer{handler: handler, maxSize: maxSize}
}

func (b *CommandBuffer) SetHandler(handler CommandHandler) {
	b.handler = handler
}

func (b *CommandBuffer) GetCmdSpace(size uint64) ([]byte, error) {
	if size > b.maxSize {
		return nil, common.Errorf(common.KNotEnoughMemory, "command of %d bytes exceeds the buffer size %d", size, b.maxSize)
	}
	if uint64(len(b.buf))+size > b.maxSize {
		if err := b.Flush(); err != nil {
			return nil, err
		}
	}
	start := len(b.buf)
	b.buf = append(b.buf, make([]byte, size)...)
	return b.buf[start:], nil
}

// Flush passes everything buffered to the handler. The handler may issue new
// commands into this buffer while it runs.
func (b *CommandBuffer) Flush() error {
	if len(b.buf) == 0 {
		return nil
	}
	data := b.buf
	b.buf = nil
	if b.handler == nil {
		return common.Error(common.KInvalid, "command buffer has no handler")
	}
	return b.handler.HandleCommands(data)
}

// Pending returns the number of buffered bytes.
func (b *CommandBuffer) Pending() int {
	return len(b.buf)
}
