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


// Package server is the receiving side of the GPU wire protocol. It decodes
// commands sent by a client, maps the client's ids to backend objects and
// calls the backend, and reports results back as return commands.
//
// A Server is not safe for concurrent use. Backend callbacks must run from
// within the server's own calls, see Procs.
package server

import (
	goio "io"

	arrow "github.com/apache/arrow/go/v11/arrow/memory"
	"go.uber.org/multierr"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/log"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/protocol"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
	"github.com/v6d-io/v6d/go/wire/pkg/wire/objects"
	"github.com/v6d-io/v6d/go/wire/pkg/wire/transfer"
)

type Options struct {
	// Transfer rebuilds the client's transfer handles. Defaults to the
	// inline service.
	Transfer transfer.ServerService
	// Memory backs the space commands are decoded into.
	Memory arrow.Allocator
	// MaxAllocationSize caps the decode space of one batch of commands.
	MaxAllocationSize int
}

type Server struct {
	procs    Procs
	returns  wire.CommandSerializer
	objects  *objects.TableSet
	alloc    *wire.ArenaAllocator
	transfer transfer.ServerService

	device  types.ObjectHandle
	buffers map[types.ObjectID]*bufferState

	// errors raised by callbacks, reported by the next Flush
	deferred error
}

var _ wire.CommandHandler = &Server{}

// New returns a server calling procs and writing return commands to returns.
func New(procs Procs, returns wire.CommandSerializer, options Options) *Server {
	if options.Transfer == nil {
		options.Transfer = transfer.InlineServerService{}
	}
	if options.Memory == nil {
		options.Memory = arrow.DefaultAllocator
	}
	if options.MaxAllocationSize == 0 {
		options.MaxAllocationSize = common.DefaultMaxAllocationSize
	}
	return &Server{
		procs:    procs,
		returns:  returns,
		objects:  objects.NewTableSet(protocol.ObjectTypes...),
		alloc:    wire.NewArenaAllocator(options.Memory, options.MaxAllocationSize),
		transfer: options.Transfer,
		buffers:  map[types.ObjectID]*bufferState{},
	}
}

// InjectDevice makes device known as protocol.DeviceID, the device clients
// start with.
func (s *Server) InjectDevice(device wire.Object) error {
	h := types.ObjectHandle{ID: protocol.DeviceID}
	if err := s.objects.Table(protocol.ObjectDevice).Insert(h, device); err != nil {
		return err
	}
	s.device = h
	return nil
}

// Objects exposes the id tables of the server.
func (s *Server) Objects() *objects.TableSet {
	return s.objects
}

// HandleCommands executes a batch of commands. Decode space is released when
// the batch is done. Any error is fatal for the connection.
func (s *Server) HandleCommands(data []byte) error {
	defer s.alloc.Reset()
	err := wire.HandleCommands(protocol.Commands, data, s.alloc, s.objects, s.handleCommand)
	if err != nil {
		log.Error(err, "rejecting command stream")
	}
	return err
}

func (s *Server) handleCommand(cmd wire.Command) error {
	switch cmd := cmd.(type) {
	case *protocol.DeviceGetQueueCmd:
		obj, err := s.procs.DeviceGetQueue(cmd.Self)
		return s.insertResult(protocol.ObjectQueue, cmd.Result, obj, err)
	case *protocol.DeviceCreateBufferCmd:
		return s.doDeviceCreateBuffer(cmd)
	case *protocol.DeviceCreateTextureCmd:
		obj, err := s.procs.DeviceCreateTexture(cmd.Self, cmd.Descriptor)
		return s.insertResult(protocol.ObjectTexture, cmd.Result, obj, err)
	case *protocol.DeviceCreateShaderModuleCmd:
		var obj wire.Object
		err := wire.ValidateSTypes(cmd.Descriptor.NextInChain, false)
		if err == nil {
			obj, err = s.procs.DeviceCreateShaderModule(cmd.Self, cmd.Descriptor)
		}
		return s.insertResult(protocol.ObjectShaderModule, cmd.Result, obj, err)
	case *protocol.DeviceCreateBindGroupLayoutCmd:
		obj, err := s.procs.DeviceCreateBindGroupLayout(cmd.Self, cmd.Descriptor)
		return s.insertResult(protocol.ObjectBindGroupLayout, cmd.Result, obj, err)
	case *protocol.DeviceCreateBindGroupCmd:
		obj, err := s.procs.DeviceCreateBindGroup(cmd.Self, cmd.Descriptor)
		return s.insertResult(protocol.ObjectBindGroup, cmd.Result, obj, err)
	case *protocol.QueueWriteBufferCmd:
		if err := s.procs.QueueWriteBuffer(cmd.Self, cmd.Buffer, cmd.BufferOffset, cmd.Data); err != nil {
			return s.reportError(protocol.ErrorTypeValidation, err.Error())
		}
		return nil
	case *protocol.BufferMapAsyncCmd:
		return s.doBufferMapAsync(cmd)
	case *protocol.BufferUpdateMappedDataCmd:
		return s.doBufferUpdateMappedData(cmd)
	case *protocol.BufferUnmapCmd:
		return s.doBufferUnmap(cmd)
	case *protocol.DestroyObjectCmd:
		return s.doDestroyObject(cmd)
	}
	return common.FatalError("unhandled command %T", cmd)
}

// insertResult stores the result of a creation under the handle the client
// chose. A failed creation stores nil and is reported to the client.
func (s *Server) insertResult(typ types.ObjectType, h types.ObjectHandle, obj wire.Object, err error) error {
	if err != nil {
		obj = nil
	}
	if ierr := s.objects.Table(typ).Insert(h, obj); ierr != nil {
		if obj != nil {
			s.procs.Release(typ, obj)
		}
		return common.FatalError("creating %s %s: %v", wire.ObjectTypeName(typ), h, ierr)
	}
	if err != nil {
		return s.reportError(protocol.ErrorTypeValidation, err.Error())
	}
	return nil
}

func (s *Server) doDestroyObject(cmd *protocol.DestroyObjectCmd) error {
	table := s.objects.Table(cmd.ObjectType)
	if table == nil {
		return common.FatalError("destroying an object of unknown type %d", cmd.ObjectType)
	}
	obj, ok := table.Get(cmd.ObjectID)
	if !ok {
		return common.FatalError("destroying unknown %s %s", wire.ObjectTypeName(cmd.ObjectType), types.ObjectIDToString(cmd.ObjectID))
	}
	if err := table.Free(cmd.ObjectID); err != nil {
		return common.FatalError("%v", err)
	}
	var err error
	if cmd.ObjectType == protocol.ObjectBuffer {
		if st, ok := s.buffers[cmd.ObjectID]; ok {
			err = st.destroy()
			delete(s.buffers, cmd.ObjectID)
		}
	}
	if !wire.IsNullObject(obj) {
		s.procs.Release(cmd.ObjectType, obj)
	}
	return err
}

func (s *Server) sendReturn(cmd wire.Command) error {
	return wire.SerializeCommandTo(s.returns, cmd, wire.ErrorObjectIdProvider)
}

func (s *Server) reportError(typ protocol.ErrorType, message string) error {
	return s.sendReturn(&protocol.DeviceUncapturedErrorCallbackCmd{Device: s.device, Type: typ, Message: message})
}

// EmitLog forwards a backend log message to the client.
func (s *Server) EmitLog(typ protocol.LoggingType, message string) error {
	return s.sendReturn(&protocol.DeviceLoggingCallbackCmd{Device: s.device, Type: typ, Message: message})
}

// Tick runs backend callbacks and flushes the return commands they produced.
func (s *Server) Tick() error {
	s.procs.Tick()
	return s.Flush()
}

// Flush ships pending return commands.
func (s *Server) Flush() error {
	err := s.deferred
	s.deferred = nil
	return multierr.Append(err, s.returns.Flush())
}

// Close releases every object the client left alive, except the injected
// device, and shuts down the transfer service.
func (s *Server) Close() error {
	var err error
	for id, st := range s.buffers {
		err = multierr.Append(err, st.destroy())
		delete(s.buffers, id)
	}
	for i := len(protocol.ObjectTypes) - 1; i >= 0; i-- {
		typ := protocol.ObjectTypes[i]
		s.objects.Table(typ).Range(func(h types.ObjectHandle, obj wire.Object) bool {
			if !wire.IsNullObject(obj) && !(typ == protocol.ObjectDevice && h == s.device) {
				s.procs.Release(typ, obj)
			}
			return true
		})
	}
	if closer, ok := s.transfer.(goio.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	return err
}
