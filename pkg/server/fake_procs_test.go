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
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/pkg/errors"

	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/protocol"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

type fakeObject struct {
	kind string
	desc any
}

type fakeBuffer struct {
	data   []byte
	mapped bool
}

type fakeMapRequest struct {
	buffer   *fakeBuffer
	callback MapCallback
}

// fakeProcs records what the server asked of it. Map requests complete on
// Tick.
type fakeProcs struct {
	device   *fakeObject
	queue    *fakeObject
	fail     map[string]bool
	pending  []fakeMapRequest
	released []wire.Object
	shaders  []string
	groups   [][]protocol.BindGroupEntry
}

func newFakeProcs() *fakeProcs {
	return &fakeProcs{
		device: &fakeObject{kind: "device"},
		queue:  &fakeObject{kind: "queue"},
		fail:   map[string]bool{},
	}
}

func (p *fakeProcs) create(kind string, desc any) (wire.Object, error) {
	if p.fail[kind] {
		return nil, errors.Errorf("cannot create %s", kind)
	}
	return &fakeObject{kind: kind, desc: desc}, nil
}

func (p *fakeProcs) DeviceGetQueue(device wire.Object) (wire.Object, error) {
	return p.queue, nil
}

func (p *fakeProcs) DeviceCreateBuffer(device wire.Object, desc *protocol.BufferDescriptor) (wire.Object, error) {
	if p.fail["buffer"] {
		return nil, errors.New("cannot create buffer")
	}
	return &fakeBuffer{data: make([]byte, desc.Size), mapped: desc.MappedAtCreation}, nil
}

func (p *fakeProcs) DeviceCreateTexture(device wire.Object, desc *protocol.TextureDescriptor) (wire.Object, error) {
	d := *desc
	d.Label = nil
	d.ViewFormats = append([]gputypes.TextureFormat(nil), desc.ViewFormats...)
	return p.create("texture", &d)
}

func (p *fakeProcs) DeviceCreateShaderModule(device wire.Object, desc *protocol.ShaderModuleDescriptor) (wire.Object, error) {
	if src, ok := wire.GetChainedStruct[protocol.ShaderSourceWGSL](desc.NextInChain); ok {
		p.shaders = append(p.shaders, strings.Clone(src.Code))
	}
	return p.create("shader", nil)
}

func (p *fakeProcs) DeviceCreateBindGroupLayout(device wire.Object, desc *protocol.BindGroupLayoutDescriptor) (wire.Object, error) {
	return p.create("layout", nil)
}

func (p *fakeProcs) DeviceCreateBindGroup(device wire.Object, desc *protocol.BindGroupDescriptor) (wire.Object, error) {
	p.groups = append(p.groups, append([]protocol.BindGroupEntry(nil), desc.Entries...))
	return p.create("group", nil)
}

func (p *fakeProcs) QueueWriteBuffer(queue, buffer wire.Object, offset uint64, data []byte) error {
	b := buffer.(*fakeBuffer)
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return errors.New("write out of range")
	}
	copy(b.data[offset:], data)
	return nil
}

func (p *fakeProcs) BufferMapAsync(buffer wire.Object, mode gputypes.MapMode, offset, size uint64, callback MapCallback) {
	p.pending = append(p.pending, fakeMapRequest{buffer: buffer.(*fakeBuffer), callback: callback})
}

func (p *fakeProcs) BufferGetMappedData(buffer wire.Object) []byte {
	b := buffer.(*fakeBuffer)
	if !b.mapped {
		return nil
	}
	return b.data
}

func (p *fakeProcs) BufferUnmap(buffer wire.Object) {
	buffer.(*fakeBuffer).mapped = false
}

func (p *fakeProcs) Release(objectType types.ObjectType, obj wire.Object) {
	p.released = append(p.released, obj)
}

func (p *fakeProcs) Tick() {
	pending := p.pending
	p.pending = nil
	for _, req := range pending {
		req.buffer.mapped = true
		req.callback(protocol.MapAsyncStatusSuccess, "")
	}
}
