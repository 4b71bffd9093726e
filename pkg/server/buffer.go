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


package server

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"go.uber.org/multierr"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/log"
	"github.com/v6d-io/v6d/go/wire/pkg/common/memory"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/protocol"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
	"github.com/v6d-io/v6d/go/wire/pkg/wire/transfer"
)

// bufferState is the mapping state of a live buffer.
type bufferState struct {
	handle types.ObjectHandle
	obj    wire.Object
	size   uint64
	usage  gputypes.BufferUsage

	read  transfer.ServerReadHandle
	write transfer.ServerWriteHandle

	// serial of the map request in flight, 0 if none
	pendingSerial    uint64
	mapped           bool
	mapMode          gputypes.MapMode
	mapOffset        uint64
	mapSize          uint64
	mappedAtCreation bool
	destroyed        bool
}

func (st *bufferState) destroy() error {
	st.destroyed = true
	var err error
	if st.read != nil {
		err = multierr.Append(err, st.read.Close())
		st.read = nil
	}
	if st.write != nil {
		err = multierr.Append(err, st.write.Close())
		st.write = nil
	}
	return err
}

func (s *Server) doDeviceCreateBuffer(cmd *protocol.DeviceCreateBufferCmd) error {
	desc := cmd.Descriptor
	obj, err := s.procs.DeviceCreateBuffer(cmd.Self, desc)
	if err != nil || wire.IsNullObject(obj) {
		if err == nil {
			err = common.Errorf(common.KInvalid, "backend returned no buffer")
		}
		return s.insertResult(protocol.ObjectBuffer, cmd.Result, nil, err)
	}
	if err := s.insertResult(protocol.ObjectBuffer, cmd.Result, obj, nil); err != nil {
		return err
	}

	st := &bufferState{handle: cmd.Result, obj: obj, size: desc.Size, usage: desc.Usage}
	s.buffers[cmd.Result.ID] = st
	if desc.Usage.Contains(gputypes.BufferUsageMapRead) {
		if st.read, err = s.transfer.DeserializeReadHandle(cmd.ReadHandleCreateInfo); err != nil {
			return err
		}
	}
	if desc.Usage.Contains(gputypes.BufferUsageMapWrite) || desc.MappedAtCreation {
		if st.write, err = s.transfer.DeserializeWriteHandle(cmd.WriteHandleCreateInfo); err != nil {
			return err
		}
	}
	if desc.MappedAtCreation {
		data := s.procs.BufferGetMappedData(obj)
		if uint64(len(data)) < desc.Size {
			return s.reportError(protocol.ErrorTypeInternal, "buffer mapped at creation has no mapped data")
		}
		st.write.SetTarget(data)
		st.mapped, st.mappedAtCreation = true, true
		st.mapMode, st.mapOffset, st.mapSize = gputypes.MapModeWrite, 0, desc.Size
	}
	return nil
}

func (s *Server) lookupBuffer(obj wire.Object) (*bufferState, error) {
	id, ok := s.objects.Table(protocol.ObjectBuffer).IdOf(obj)
	if !ok {
		return nil, common.FatalError("buffer %v has no id", obj)
	}
	st, ok := s.buffers[id]
	if !ok {
		return nil, common.FatalError("buffer %s has no mapping state", types.ObjectIDToString(id))
	}
	return st, nil
}

func (s *Server) doBufferMapAsync(cmd *protocol.BufferMapAsyncCmd) error {
	st, err := s.lookupBuffer(cmd.Self)
	if err != nil {
		return err
	}
	fail := func(format string, args ...any) error {
		return s.sendReturn(&protocol.BufferMapAsyncCallbackCmd{
			Buffer:        st.handle,
			RequestSerial: cmd.RequestSerial,
			Status:        protocol.MapAsyncStatusError,
			Message:       fmt.Sprintf(format, args...),
		})
	}
	switch {
	case cmd.RequestSerial == 0:
		return common.FatalError("map request without a serial")
	case st.mapped || st.pendingSerial != 0:
		return fail("buffer is already mapped or pending")
	case cmd.Mode == gputypes.MapModeRead && st.read == nil:
		return fail("buffer cannot be mapped for reading")
	case cmd.Mode == gputypes.MapModeWrite && (st.write == nil || !st.usage.Contains(gputypes.BufferUsageMapWrite)):
		return fail("buffer cannot be mapped for writing")
	case cmd.Mode != gputypes.MapModeRead && cmd.Mode != gputypes.MapModeWrite:
		return fail("invalid map mode %d", cmd.Mode)
	case !memory.InRange(cmd.Offset, cmd.Size, st.size):
		return fail("map range [%d, +%d) exceeds the buffer size %d", cmd.Offset, cmd.Size, st.size)
	}

	st.pendingSerial = cmd.RequestSerial
	serial, mode, offset, size := cmd.RequestSerial, cmd.Mode, cmd.Offset, cmd.Size
	s.procs.BufferMapAsync(cmd.Self, mode, offset, size, func(status protocol.MapAsyncStatus, message string) {
		if err := s.onBufferMapped(st, serial, mode, offset, size, status, message); err != nil {
			log.Error(err, "completing map request", "buffer", st.handle.String())
			s.deferred = multierr.Append(s.deferred, err)
		}
	})
	return nil
}

func (s *Server) onBufferMapped(st *bufferState, serial uint64, mode gputypes.MapMode, offset, size uint64, status protocol.MapAsyncStatus, message string) error {
	cmd := &protocol.BufferMapAsyncCallbackCmd{
		Buffer:        st.handle,
		RequestSerial: serial,
		Status:        status,
		Message:       message,
	}
	switch {
	case st.destroyed:
		cmd.Status = protocol.MapAsyncStatusDestroyedBeforeCallback
	case st.pendingSerial != serial:
		cmd.Status = protocol.MapAsyncStatusUnmappedBeforeCallback
	}
	if cmd.Status == protocol.MapAsyncStatusSuccess {
		st.pendingSerial = 0
		data := s.procs.BufferGetMappedData(st.obj)
		if !memory.InRange(offset, size, uint64(len(data))) {
			cmd.Status, cmd.Message = protocol.MapAsyncStatusError, "mapped data does not cover the requested range"
		} else if mode == gputypes.MapModeRead {
			update := make([]byte, st.read.SizeOfSerializeDataUpdate(offset, size))
			if err := st.read.SerializeDataUpdate(data[offset:offset+size], offset, size, update); err != nil {
				return err
			}
			cmd.ReadDataUpdateInfoLength = uint64(len(update))
			cmd.ReadDataUpdateInfo = update
		} else {
			st.write.SetTarget(data)
		}
		if cmd.Status == protocol.MapAsyncStatusSuccess {
			st.mapped = true
			st.mapMode, st.mapOffset, st.mapSize = mode, offset, size
		}
	} else if st.pendingSerial == serial {
		st.pendingSerial = 0
	}
	return s.sendReturn(cmd)
}

func (s *Server) doBufferUpdateMappedData(cmd *protocol.BufferUpdateMappedDataCmd) error {
	st, err := s.lookupBuffer(cmd.Self)
	if err != nil {
		return err
	}
	if !st.mapped || st.mapMode != gputypes.MapModeWrite || st.write == nil {
		return common.FatalError("buffer %s is not mapped for writing", st.handle)
	}
	if cmd.Offset < st.mapOffset || !memory.InRange(cmd.Offset-st.mapOffset, cmd.Size, st.mapSize) {
		return common.FatalError("update [%d, +%d) is outside the mapped range of buffer %s", cmd.Offset, cmd.Size, st.handle)
	}
	return st.write.DeserializeDataUpdate(cmd.WriteDataUpdateInfo, cmd.Offset, cmd.Size)
}

func (s *Server) doBufferUnmap(cmd *protocol.BufferUnmapCmd) error {
	st, err := s.lookupBuffer(cmd.Self)
	if err != nil {
		return err
	}
	s.procs.BufferUnmap(st.obj)
	st.mapped, st.pendingSerial = false, 0
	if st.write != nil {
		st.write.SetTarget(nil)
		if st.mappedAtCreation && !st.usage.Contains(gputypes.BufferUsageMapWrite) {
			err = st.write.Close()
			st.write = nil
		}
	}
	st.mappedAtCreation = false
	return err
}
