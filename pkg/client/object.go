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
	"go.uber.org/multierr"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/protocol"
)

// object is the part shared by every proxy: its id on the wire.
type object struct {
	client    *Client
	typ       types.ObjectType
	handle    types.ObjectHandle
	destroyed bool
}

func (o *object) Handle() types.ObjectHandle {
	return o.handle
}

// Destroy releases the object on both sides. Its id is reused by later
// objects with the next generation.
func (o *object) Destroy() error {
	if o.destroyed {
		return nil
	}
	o.destroyed = true
	err := o.client.serialize(&protocol.DestroyObjectCmd{ObjectType: o.typ, ObjectID: o.handle.ID})
	return multierr.Append(err, o.client.objects.Table(o.typ).Free(o.handle.ID))
}

func (o *object) checkAlive() error {
	if o.destroyed {
		return common.Errorf(common.KObjectNotExists, "object %s was destroyed", o.handle)
	}
	return nil
}

type Queue struct {
	object
}

// WriteBuffer copies data into buffer at offset through the command stream.
func (q *Queue) WriteBuffer(buffer *Buffer, offset uint64, data []byte) error {
	if err := q.checkAlive(); err != nil {
		return err
	}
	return q.client.serialize(&protocol.QueueWriteBufferCmd{
		Self:         q,
		Buffer:       buffer,
		BufferOffset: offset,
		Size:         uint64(len(data)),
		Data:         data,
	})
}

type Texture struct {
	object
}

type ShaderModule struct {
	object
}

type BindGroupLayout struct {
	object
}

type BindGroup struct {
	object
}
