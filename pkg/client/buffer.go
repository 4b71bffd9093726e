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


package client

import (
	"github.com/gogpu/gputypes"
	"go.uber.org/multierr"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/memory"
	"github.com/v6d-io/v6d/go/wire/pkg/protocol"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
	"github.com/v6d-io/v6d/go/wire/pkg/wire/transfer"
)

type BufferMapState int

const (
	BufferMapStateUnmapped BufferMapState = iota
	BufferMapStatePending
	BufferMapStateMapped
)

type MapCallback func(status protocol.MapAsyncStatus)

type mapRequest struct {
	serial   uint64
	mode     gputypes.MapMode
	offset   uint64
	size     uint64
	callback MapCallback
}

// Buffer is a GPU buffer. Mappable buffers own transfer handles: a read
// handle if they have MapRead usage, a write handle if they have MapWrite
// usage or were mapped at creation.
type Buffer struct {
	object

	size  uint64
	usage gputypes.BufferUsage

	readHandle  transfer.ReadHandle
	writeHandle transfer.WriteHandle

	mapState         BufferMapState
	mapMode          gputypes.MapMode
	mapOffset        uint64
	mapSize          uint64
	mappedAtCreation bool
	pending          *mapRequest
}

func (d *Device) CreateBuffer(desc *protocol.BufferDescriptor) (*Buffer, error) {
	if desc == nil {
		return nil, common.Error(common.KInvalid, "null buffer descriptor")
	}
	b := &Buffer{size: desc.Size, usage: desc.Usage}
	cmd := &protocol.DeviceCreateBufferCmd{Self: d, Descriptor: desc}

	var err error
	if desc.Usage.Contains(gputypes.BufferUsageMapRead) {
		if b.readHandle, err = d.client.transfer.CreateReadHandle(desc.Size); err != nil {
			return nil, err
		}
		cmd.ReadHandleCreateInfo = make([]byte, b.readHandle.SerializeCreateSize())
		b.readHandle.SerializeCreate(cmd.ReadHandleCreateInfo)
	}
	if desc.Usage.Contains(gputypes.BufferUsageMapWrite) || desc.MappedAtCreation {
		if b.writeHandle, err = d.client.transfer.CreateWriteHandle(desc.Size); err != nil {
			return nil, multierr.Append(err, b.closeHandles())
		}
		cmd.WriteHandleCreateInfo = make([]byte, b.writeHandle.SerializeCreateSize())
		b.writeHandle.SerializeCreate(cmd.WriteHandleCreateInfo)
	}
	cmd.ReadHandleCreateInfoLength = uint64(len(cmd.ReadHandleCreateInfo))
	cmd.WriteHandleCreateInfoLength = uint64(len(cmd.WriteHandleCreateInfo))

	err = d.create(&b.object, protocol.ObjectBuffer, b, func() wire.Command {
		cmd.Result = b.handle
		return cmd
	})
	if err != nil {
		return nil, multierr.Append(err, b.closeHandles())
	}
	if desc.MappedAtCreation {
		b.mapState = BufferMapStateMapped
		b.mapMode = gputypes.MapModeWrite
		b.mapOffset, b.mapSize = 0, desc.Size
		b.mappedAtCreation = true
	}
	return b, nil
}

func (b *Buffer) Size() uint64 {
	return b.size
}

func (b *Buffer) Usage() gputypes.BufferUsage {
	return b.usage
}

func (b *Buffer) MapState() BufferMapState {
	return b.mapState
}

// MapAsync asks the server to map [offset, offset+size) in mode, which must
// be exactly one of MapModeRead or MapModeWrite. callback runs from
// HandleCommands once the server answers, or earlier if the buffer is
// unmapped or destroyed first.
func (b *Buffer) MapAsync(mode gputypes.MapMode, offset, size uint64, callback MapCallback) error {
	if err := b.checkAlive(); err != nil {
		return err
	}
	if callback == nil {
		return common.Error(common.KInvalid, "map callback is nil")
	}
	if b.mapState != BufferMapStateUnmapped {
		return common.Errorf(common.KInvalid, "buffer %s is already mapped or pending", b.handle)
	}
	switch mode {
	case gputypes.MapModeRead:
		if b.readHandle == nil {
			return common.Errorf(common.KInvalid, "buffer %s does not have MapRead usage", b.handle)
		}
	case gputypes.MapModeWrite:
		if b.writeHandle == nil || !b.usage.Contains(gputypes.BufferUsageMapWrite) {
			return common.Errorf(common.KInvalid, "buffer %s does not have MapWrite usage", b.handle)
		}
	default:
		return common.Errorf(common.KInvalid, "invalid map mode %d", mode)
	}
	if !memory.InRange(offset, size, b.size) {
		return common.Errorf(common.KInvalid, "map range [%d, +%d) exceeds the buffer size %d", offset, size, b.size)
	}

	req := &mapRequest{serial: b.client.nextSerial(), mode: mode, offset: offset, size: size, callback: callback}
	err := b.client.serialize(&protocol.BufferMapAsyncCmd{
		Self:          b,
		RequestSerial: req.serial,
		Mode:          mode,
		Offset:        offset,
		Size:          size,
	})
	if err != nil {
		return err
	}
	b.pending = req
	b.mapState = BufferMapStatePending
	return nil
}

func (b *Buffer) onMapAsyncCallback(cmd *protocol.BufferMapAsyncCallbackCmd) error {
	req := b.pending
	if req == nil || req.serial != cmd.RequestSerial {
		// answered already, by Unmap or an earlier request
		return nil
	}
	b.pending = nil
	b.mapState = BufferMapStateUnmapped
	if cmd.Status == protocol.MapAsyncStatusSuccess {
		if req.mode == gputypes.MapModeRead {
			if err := b.readHandle.DeserializeDataUpdate(cmd.ReadDataUpdateInfo, req.offset, req.size); err != nil {
				return err
			}
		}
		b.mapState = BufferMapStateMapped
		b.mapMode, b.mapOffset, b.mapSize = req.mode, req.offset, req.size
	}
	req.callback(cmd.Status)
	return nil
}

// GetMappedRange returns the mapped bytes of [offset, offset+size), which must
// lie inside the mapped range. The slice is valid until Unmap.
func (b *Buffer) GetMappedRange(offset, size uint64) ([]byte, error) {
	if b.mapState != BufferMapStateMapped {
		return nil, common.Errorf(common.KInvalid, "buffer %s is not mapped", b.handle)
	}
	if offset < b.mapOffset || !memory.InRange(offset-b.mapOffset, size, b.mapSize) {
		return nil, common.Errorf(common.KInvalid, "range [%d, +%d) is outside the mapped range", offset, size)
	}
	var data []byte
	if b.mapMode == gputypes.MapModeRead {
		data = b.readHandle.Data()
	} else {
		data = b.writeHandle.Data()
	}
	return data[offset : offset+size : offset+size], nil
}

// Unmap flushes the written range of a buffer mapped for writing and
// releases the mapping. A pending map request completes as unmapped.
func (b *Buffer) Unmap() error {
	if err := b.checkAlive(); err != nil {
		return err
	}
	b.abortPending(protocol.MapAsyncStatusUnmappedBeforeCallback)

	if b.mapState == BufferMapStateMapped && b.mapMode == gputypes.MapModeWrite {
		update := make([]byte, b.writeHandle.SizeOfSerializeDataUpdate(b.mapOffset, b.mapSize))
		b.writeHandle.SerializeDataUpdate(update, b.mapOffset, b.mapSize)
		err := b.client.serialize(&protocol.BufferUpdateMappedDataCmd{
			Self:                      b,
			WriteDataUpdateInfoLength: uint64(len(update)),
			Offset:                    b.mapOffset,
			Size:                      b.mapSize,
			WriteDataUpdateInfo:       update,
		})
		if err != nil {
			return err
		}
	}
	if err := b.client.serialize(&protocol.BufferUnmapCmd{Self: b}); err != nil {
		return err
	}

	b.mapState = BufferMapStateUnmapped
	var err error
	if b.mappedAtCreation && !b.usage.Contains(gputypes.BufferUsageMapWrite) {
		err = b.writeHandle.Close()
		b.writeHandle = nil
	}
	b.mappedAtCreation = false
	return err
}

func (b *Buffer) abortPending(status protocol.MapAsyncStatus) {
	if req := b.pending; req != nil {
		b.pending = nil
		b.mapState = BufferMapStateUnmapped
		req.callback(status)
	}
}

func (b *Buffer) Destroy() error {
	if b.destroyed {
		return nil
	}
	b.abortPending(protocol.MapAsyncStatusDestroyedBeforeCallback)
	b.mapState = BufferMapStateUnmapped
	return multierr.Append(b.closeHandles(), b.object.Destroy())
}

func (b *Buffer) closeHandles() error {
	var err error
	if b.readHandle != nil {
		err = multierr.Append(err, b.readHandle.Close())
		b.readHandle = nil
	}
	if b.writeHandle != nil {
		err = multierr.Append(err, b.writeHandle.Close())
		b.writeHandle = nil
	}
	return err
}
