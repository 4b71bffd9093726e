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

package protocol

import (
	"github.com/gogpu/gputypes"

	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

const (
	DeviceGetQueue types.CommandID = iota + 1
	DeviceCreateBuffer
	DeviceCreateTexture
	DeviceCreateShaderModule
	DeviceCreateBindGroupLayout
	DeviceCreateBindGroup
	QueueWriteBuffer
	BufferMapAsync
	BufferUpdateMappedData
	BufferUnmap
	DestroyObject
)

// Creation commands name the new object with a handle reserved by the client.

type DeviceGetQueueCmd struct {
	Self   wire.Object `wire:"object,type=Device"`
	Result types.ObjectHandle
}

func (DeviceGetQueueCmd) CommandID() types.CommandID { return DeviceGetQueue }

// DeviceCreateBufferCmd carries the creation metadata of the transfer
// handles the client made for a mappable buffer.
type DeviceCreateBufferCmd struct {
	Self                        wire.Object       `wire:"object,type=Device"`
	Descriptor                  *BufferDescriptor `wire:"array"`
	Result                      types.ObjectHandle
	ReadHandleCreateInfoLength  uint64
	WriteHandleCreateInfoLength uint64
	ReadHandleCreateInfo        []byte `wire:"array,len=ReadHandleCreateInfoLength"`
	WriteHandleCreateInfo       []byte `wire:"array,len=WriteHandleCreateInfoLength"`
}

func (DeviceCreateBufferCmd) CommandID() types.CommandID { return DeviceCreateBuffer }

type DeviceCreateTextureCmd struct {
	Self       wire.Object        `wire:"object,type=Device"`
	Descriptor *TextureDescriptor `wire:"array"`
	Result     types.ObjectHandle
}

func (DeviceCreateTextureCmd) CommandID() types.CommandID { return DeviceCreateTexture }

type DeviceCreateShaderModuleCmd struct {
	Self       wire.Object             `wire:"object,type=Device"`
	Descriptor *ShaderModuleDescriptor `wire:"array"`
	Result     types.ObjectHandle
}

func (DeviceCreateShaderModuleCmd) CommandID() types.CommandID { return DeviceCreateShaderModule }

type DeviceCreateBindGroupLayoutCmd struct {
	Self       wire.Object                `wire:"object,type=Device"`
	Descriptor *BindGroupLayoutDescriptor `wire:"array"`
	Result     types.ObjectHandle
}

func (DeviceCreateBindGroupLayoutCmd) CommandID() types.CommandID { return DeviceCreateBindGroupLayout }

type DeviceCreateBindGroupCmd struct {
	Self       wire.Object          `wire:"object,type=Device"`
	Descriptor *BindGroupDescriptor `wire:"array"`
	Result     types.ObjectHandle
}

func (DeviceCreateBindGroupCmd) CommandID() types.CommandID { return DeviceCreateBindGroup }

// QueueWriteBufferCmd hands its payload to the backend without copying it
// out of the command stream.
type QueueWriteBufferCmd struct {
	Self         wire.Object `wire:"object,type=Queue"`
	Buffer       wire.Object `wire:"object,type=Buffer"`
	BufferOffset uint64
	Size         uint64
	Data         []byte `wire:"array,len=Size,dataonly"`
}

func (QueueWriteBufferCmd) CommandID() types.CommandID { return QueueWriteBuffer }

type BufferMapAsyncCmd struct {
	Self          wire.Object `wire:"object,type=Buffer"`
	RequestSerial uint64
	Mode          gputypes.MapMode
	Offset        uint64
	Size          uint64
}

func (BufferMapAsyncCmd) CommandID() types.CommandID { return BufferMapAsync }

// BufferUpdateMappedDataCmd flushes [Offset, Offset+Size) of a buffer mapped
// for writing through its write handle.
type BufferUpdateMappedDataCmd struct {
	Self                      wire.Object `wire:"object,type=Buffer"`
	WriteDataUpdateInfoLength uint64
	Offset                    uint64
	Size                      uint64
	WriteDataUpdateInfo       []byte `wire:"array,len=WriteDataUpdateInfoLength,dataonly"`
}

func (BufferUpdateMappedDataCmd) CommandID() types.CommandID { return BufferUpdateMappedData }

type BufferUnmapCmd struct {
	Self wire.Object `wire:"object,type=Buffer"`
}

func (BufferUnmapCmd) CommandID() types.CommandID { return BufferUnmap }

type DestroyObjectCmd struct {
	ObjectType types.ObjectType
	ObjectID   types.ObjectID
}

func (DestroyObjectCmd) CommandID() types.CommandID { return DestroyObject }
