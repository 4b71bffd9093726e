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
	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/protocol"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

type Device struct {
	object
}

// create reserves an id for proxy and sends the command that creates it on
// the server. The id is released again if the command cannot be sent.
func (d *Device) create(o *object, typ types.ObjectType, proxy wire.Object, cmd func() wire.Command) error {
	if err := d.checkAlive(); err != nil {
		return err
	}
	d.client.track(o, typ, proxy)
	if err := d.client.serialize(cmd()); err != nil {
		d.client.untrack(o)
		return err
	}
	return nil
}

func (d *Device) GetQueue() (*Queue, error) {
	q := &Queue{}
	err := d.create(&q.object, protocol.ObjectQueue, q, func() wire.Command {
		return &protocol.DeviceGetQueueCmd{Self: d, Result: q.handle}
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (d *Device) CreateTexture(desc *protocol.TextureDescriptor) (*Texture, error) {
	t := &Texture{}
	err := d.create(&t.object, protocol.ObjectTexture, t, func() wire.Command {
		return &protocol.DeviceCreateTextureCmd{Self: d, Descriptor: desc, Result: t.handle}
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateShaderModule requires a WGSL or SPIR-V source in the descriptor's
// chain.
func (d *Device) CreateShaderModule(desc *protocol.ShaderModuleDescriptor) (*ShaderModule, error) {
	if desc == nil {
		return nil, common.Error(common.KInvalid, "null shader module descriptor")
	}
	_, wgsl := wire.GetChainedStruct[protocol.ShaderSourceWGSL](desc.NextInChain)
	_, spirv := wire.GetChainedStruct[protocol.ShaderSourceSPIRV](desc.NextInChain)
	if !wgsl && !spirv {
		return nil, common.Error(common.KInvalid, "shader module descriptor has no source")
	}
	m := &ShaderModule{}
	err := d.create(&m.object, protocol.ObjectShaderModule, m, func() wire.Command {
		return &protocol.DeviceCreateShaderModuleCmd{Self: d, Descriptor: desc, Result: m.handle}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Device) CreateBindGroupLayout(desc *protocol.BindGroupLayoutDescriptor) (*BindGroupLayout, error) {
	l := &BindGroupLayout{}
	err := d.create(&l.object, protocol.ObjectBindGroupLayout, l, func() wire.Command {
		return &protocol.DeviceCreateBindGroupLayoutCmd{Self: d, Descriptor: desc, Result: l.handle}
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (d *Device) CreateBindGroup(desc *protocol.BindGroupDescriptor) (*BindGroup, error) {
	g := &BindGroup{}
	err := d.create(&g.object, protocol.ObjectBindGroup, g, func() wire.Command {
		return &protocol.DeviceCreateBindGroupCmd{Self: d, Descriptor: desc, Result: g.handle}
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
