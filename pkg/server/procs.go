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
	"github.com/gogpu/gputypes"

	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/protocol"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

// MapCallback completes a BufferMapAsync request.
type MapCallback func(status protocol.MapAsyncStatus, message string)

// Procs is the GPU backend the server drives. Objects are opaque to the
// server but must be comparable, typically pointers.
//
// Descriptors and byte slices passed in are only valid for the duration of
// the call. Creation methods report failure by returning an error; the
// object id then stays reserved but cannot be used by later commands.
type Procs interface {
	DeviceGetQueue(device wire.Object) (wire.Object, error)
	DeviceCreateBuffer(device wire.Object, desc *protocol.BufferDescriptor) (wire.Object, error)
	DeviceCreateTexture(device wire.Object, desc *protocol.TextureDescriptor) (wire.Object, error)
	DeviceCreateShaderModule(device wire.Object, desc *protocol.ShaderModuleDescriptor) (wire.Object, error)
	DeviceCreateBindGroupLayout(device wire.Object, desc *protocol.BindGroupLayoutDescriptor) (wire.Object, error)
	DeviceCreateBindGroup(device wire.Object, desc *protocol.BindGroupDescriptor) (wire.Object, error)

	QueueWriteBuffer(queue, buffer wire.Object, offset uint64, data []byte) error

	// BufferMapAsync calls callback exactly once, either before returning or
	// from Tick.
	BufferMapAsync(buffer wire.Object, mode gputypes.MapMode, offset, size uint64, callback MapCallback)
	// BufferGetMappedData returns the whole backing memory of a mapped
	// buffer, indexed from the start of the buffer, or nil.
	BufferGetMappedData(buffer wire.Object) []byte
	BufferUnmap(buffer wire.Object)

	Release(objectType types.ObjectType, obj wire.Object)

	// Tick runs pending callbacks.
	Tick()
}
