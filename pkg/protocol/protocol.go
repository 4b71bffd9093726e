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

// Package protocol declares the commands exchanged by the GPU client and
// server: the object types they reference, the descriptors they carry and the
// two command sets, one per direction.
package protocol

import (
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

const (
	ObjectDevice types.ObjectType = iota + 1
	ObjectQueue
	ObjectBuffer
	ObjectTexture
	ObjectShaderModule
	ObjectBindGroupLayout
	ObjectBindGroup
)

// ObjectTypes lists every object type, in declaration order.
var ObjectTypes = []types.ObjectType{
	ObjectDevice,
	ObjectQueue,
	ObjectBuffer,
	ObjectTexture,
	ObjectShaderModule,
	ObjectBindGroupLayout,
	ObjectBindGroup,
}

// DeviceID is the id of the device every session starts with.
const DeviceID types.ObjectID = 1

// Chained struct types.
const (
	STypeShaderSourceWGSL types.SType = iota + 1
	STypeShaderSourceSPIRV
)

var (
	// Commands are sent from the client to the server.
	Commands = wire.NewCommandSet("Commands")
	// ReturnCommands are sent from the server back to the client.
	ReturnCommands = wire.NewCommandSet("ReturnCommands")
)

func init() {
	wire.RegisterObjectType(ObjectDevice, "Device")
	wire.RegisterObjectType(ObjectQueue, "Queue")
	wire.RegisterObjectType(ObjectBuffer, "Buffer")
	wire.RegisterObjectType(ObjectTexture, "Texture")
	wire.RegisterObjectType(ObjectShaderModule, "ShaderModule")
	wire.RegisterObjectType(ObjectBindGroupLayout, "BindGroupLayout")
	wire.RegisterObjectType(ObjectBindGroup, "BindGroup")

	wire.RegisterChainedStruct(ShaderSourceWGSL{})
	wire.RegisterChainedStruct(ShaderSourceSPIRV{})

	Commands.Register(func() wire.Command { return &DeviceGetQueueCmd{} })
	Commands.Register(func() wire.Command { return &DeviceCreateBufferCmd{} })
	Commands.Register(func() wire.Command { return &DeviceCreateTextureCmd{} })
	Commands.Register(func() wire.Command { return &DeviceCreateShaderModuleCmd{} })
	Commands.Register(func() wire.Command { return &DeviceCreateBindGroupLayoutCmd{} })
	Commands.Register(func() wire.Command { return &DeviceCreateBindGroupCmd{} })
	Commands.Register(func() wire.Command { return &QueueWriteBufferCmd{} })
	Commands.Register(func() wire.Command { return &BufferMapAsyncCmd{} })
	Commands.Register(func() wire.Command { return &BufferUpdateMappedDataCmd{} })
	Commands.Register(func() wire.Command { return &BufferUnmapCmd{} })
	Commands.Register(func() wire.Command { return &DestroyObjectCmd{} })

	ReturnCommands.Register(func() wire.Command { return &BufferMapAsyncCallbackCmd{} })
	ReturnCommands.Register(func() wire.Command { return &DeviceUncapturedErrorCallbackCmd{} })
	ReturnCommands.Register(func() wire.Command { return &DeviceLoggingCallbackCmd{} })
}
