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


// Package client is the sending side of the GPU wire protocol. Its objects are
// proxies: every method serializes a command for the server, and results
// arrive later as return commands.
//
// A Client and its objects are not safe for concurrent use.
package client

import (
	"go.uber.org/multierr"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/log"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/protocol"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
	"github.com/v6d-io/v6d/go/wire/pkg/wire/objects"
	"github.com/v6d-io/v6d/go/wire/pkg/wire/transfer"
)

type ErrorCallback func(typ protocol.ErrorType, message string)

type LoggingCallback func(typ protocol.LoggingType, message string)

type Options struct {
	// Transfer creates the handles of mappable buffers. Defaults to an
	// inline service.
	Transfer transfer.ClientService
	// MaxReturnAllocation caps the bytes decoded from one batch of return
	// commands; 0 means no limit.
	MaxReturnAllocation int

	OnUncapturedError ErrorCallback
	OnLogging         LoggingCallback
}

type Client struct {
	serializer wire.CommandSerializer
	objects    *objects.TableSet
	transfer   transfer.ClientService
	options    Options

	device       *Device
	serial       uint64
	disconnected bool
}

var _ wire.CommandHandler = &Client{}

// New creates a client writing to serializer. The client starts with its
// device, which the server must have injected under protocol.DeviceID.
func New(serializer wire.CommandSerializer, options Options) *Client {
	c := &Client{
		serializer: serializer,
		objects:    objects.NewTableSet(protocol.ObjectTypes...),
		transfer:   options.Transfer,
		options:    options,
	}
	if c.transfer == nil {
		c.transfer = transfer.NewInlineClientService(nil)
	}
	c.device = &Device{}
	c.track(&c.device.object, protocol.ObjectDevice, c.device)
	return c
}

func (c *Client) Device() *Device {
	return c.device
}

// Objects exposes the id tables of the client.
func (c *Client) Objects() *objects.TableSet {
	return c.objects
}

func (c *Client) track(o *object, typ types.ObjectType, proxy wire.Object) {
	o.client, o.typ = c, typ
	o.handle = c.objects.Table(typ).Reserve(proxy)
}

// untrack forgets an object whose creation could not be sent.
func (c *Client) untrack(o *object) {
	_ = c.objects.Table(o.typ).Free(o.handle.ID)
	o.destroyed = true
}

func (c *Client) serialize(cmd wire.Command) error {
	if c.disconnected {
		return common.NotConnected()
	}
	return wire.SerializeCommandTo(c.serializer, cmd, c.objects)
}

func (c *Client) nextSerial() uint64 {
	c.serial++
	return c.serial
}

// Flush sends everything serialized so far.
func (c *Client) Flush() error {
	if c.disconnected {
		return common.NotConnected()
	}
	return c.serializer.Flush()
}

// HandleCommands decodes a batch of return commands and runs their
// callbacks. Return commands about objects that are gone are dropped.
func (c *Client) HandleCommands(data []byte) error {
	alloc := &wire.HeapAllocator{Limit: c.options.MaxReturnAllocation}
	return wire.HandleCommands(protocol.ReturnCommands, data, alloc, wire.ErrorObjectIdResolver, c.handleCommand)
}

func (c *Client) handleCommand(cmd wire.Command) error {
	switch cmd := cmd.(type) {
	case *protocol.BufferMapAsyncCallbackCmd:
		return c.handleBufferMapAsyncCallback(cmd)
	case *protocol.DeviceUncapturedErrorCallbackCmd:
		if cmd.Device != c.device.handle {
			return nil
		}
		if c.options.OnUncapturedError != nil {
			c.options.OnUncapturedError(cmd.Type, cmd.Message)
		} else {
			log.Infof("uncaptured device error (%d): %s", cmd.Type, cmd.Message)
		}
		return nil
	case *protocol.DeviceLoggingCallbackCmd:
		if cmd.Device != c.device.handle {
			return nil
		}
		if c.options.OnLogging != nil {
			c.options.OnLogging(cmd.Type, cmd.Message)
		} else {
			log.V(1).Info(cmd.Message, "type", cmd.Type)
		}
		return nil
	}
	return common.FatalError("unexpected return command %T", cmd)
}

func (c *Client) handleBufferMapAsyncCallback(cmd *protocol.BufferMapAsyncCallbackCmd) error {
	obj, err := c.objects.ResolveHandle(protocol.ObjectBuffer, cmd.Buffer)
	if err != nil {
		log.V(1).Info("dropping map callback", "buffer", cmd.Buffer.String(), "reason", err.Error())
		return nil
	}
	buffer, ok := obj.(*Buffer)
	if !ok {
		return common.FatalError("object %s is not a buffer", cmd.Buffer)
	}
	return buffer.onMapAsyncCallback(cmd)
}

// Disconnect stops sending commands. Pending map requests complete as
// aborted.
func (c *Client) Disconnect() {
	if c.disconnected {
		return
	}
	c.disconnected = true
	c.objects.Table(protocol.ObjectBuffer).Range(func(_ types.ObjectHandle, obj wire.Object) bool {
		obj.(*Buffer).abortPending(protocol.MapAsyncStatusAborted)
		return true
	})
}

// Close disconnects and releases the transfer handles of every buffer.
func (c *Client) Close() error {
	c.Disconnect()
	var err error
	c.objects.Table(protocol.ObjectBuffer).Range(func(_ types.ObjectHandle, obj wire.Object) bool {
		err = multierr.Append(err, obj.(*Buffer).closeHandles())
		return true
	})
	return err
}
