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
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/protocol"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
	"github.com/v6d-io/v6d/go/wire/pkg/wire/transfer"
)

// fakeHandle serves as both a read and a write handle.
type fakeHandle struct {
	info    string
	data    []byte
	updates int
	closed  bool
}

func (h *fakeHandle) SerializeCreateSize() uint64 { return uint64(len(h.info)) }
func (h *fakeHandle) SerializeCreate(dst []byte)  { copy(dst, h.info) }
func (h *fakeHandle) Data() []byte                { return h.data }
func (h *fakeHandle) SetTarget([]byte)            {}

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

func (h *fakeHandle) DeserializeDataUpdate(src []byte, offset, size uint64) error {
	if uint64(len(src)) != size {
		return common.FatalError("bad update")
	}
	h.updates++
	copy(h.data[offset:], src)
	return nil
}

func (h *fakeHandle) SizeOfSerializeDataUpdate(_, size uint64) uint64 { return size }

func (h *fakeHandle) SerializeDataUpdate(dst []byte, offset, size uint64) {
	h.updates++
	copy(dst, h.data[offset:offset+size])
}

type fakeTransfer struct {
	reads, writes []*fakeHandle
}

func (t *fakeTransfer) CreateReadHandle(size uint64) (transfer.ReadHandle, error) {
	h := &fakeHandle{info: "read", data: make([]byte, size)}
	t.reads = append(t.reads, h)
	return h, nil
}

func (t *fakeTransfer) CreateWriteHandle(size uint64) (transfer.WriteHandle, error) {
	h := &fakeHandle{info: "write", data: make([]byte, size)}
	t.writes = append(t.writes, h)
	return h, nil
}

// recorder decodes everything the client sends.
type recorder struct {
	client *Client
	cmds   []wire.Command
}

func (r *recorder) HandleCommands(data []byte) error {
	return wire.HandleCommands(protocol.Commands, data, &wire.HeapAllocator{}, r.client.Objects(), func(cmd wire.Command) error {
		r.cmds = append(r.cmds, cmd)
		return nil
	})
}

func (r *recorder) flush(t *testing.T) []wire.Command {
	r.cmds = nil
	require.NoError(t, r.client.Flush())
	return r.cmds
}

type setup struct {
	client   *Client
	sent     *recorder
	transfer *fakeTransfer
	errors   []string
}

func newSetup() *setup {
	s := &setup{sent: &recorder{}, transfer: &fakeTransfer{}}
	s.client = New(wire.NewCommandBuffer(s.sent, 0), Options{
		Transfer: s.transfer,
		OnUncapturedError: func(_ protocol.ErrorType, message string) {
			s.errors = append(s.errors, message)
		},
	})
	s.sent.client = s.client
	return s
}

// deliver hands return commands to the client.
func (s *setup) deliver(t *testing.T, cmds ...wire.Command) error {
	var data []byte
	for _, cmd := range cmds {
		encoded, err := wire.Encode(cmd, wire.ErrorObjectIdProvider)
		require.NoError(t, err)
		data = append(data, encoded...)
	}
	return s.client.HandleCommands(data)
}

func TestDeviceIsTheFirstObject(t *testing.T) {
	s := newSetup()
	assert.Equal(t, types.ObjectHandle{ID: protocol.DeviceID}, s.client.Device().Handle())
}

func TestCreateBufferSendsHandleMetadata(t *testing.T) {
	s := newSetup()
	b, err := s.client.Device().CreateBuffer(&protocol.BufferDescriptor{
		Label: protocol.Label("staging"),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageMapWrite,
		Size:  32,
	})
	require.NoError(t, err)

	cmds := s.sent.flush(t)
	require.Len(t, cmds, 1)
	cmd := cmds[0].(*protocol.DeviceCreateBufferCmd)
	assert.Same(t, s.client.Device(), cmd.Self)
	assert.Equal(t, b.Handle(), cmd.Result)
	assert.Equal(t, "staging", *cmd.Descriptor.Label)
	assert.Equal(t, uint64(32), cmd.Descriptor.Size)
	assert.Equal(t, []byte("read"), cmd.ReadHandleCreateInfo)
	assert.Equal(t, []byte("write"), cmd.WriteHandleCreateInfo)

	plain, err := s.client.Device().CreateBuffer(&protocol.BufferDescriptor{Usage: gputypes.BufferUsageVertex, Size: 4})
	require.NoError(t, err)
	cmds = s.sent.flush(t)
	cmd = cmds[0].(*protocol.DeviceCreateBufferCmd)
	assert.Nil(t, cmd.ReadHandleCreateInfo)
	assert.Nil(t, cmd.WriteHandleCreateInfo)
	assert.Error(t, plain.MapAsync(gputypes.MapModeRead, 0, 4, func(protocol.MapAsyncStatus) {}))
}

func TestMapAsyncValidation(t *testing.T) {
	s := newSetup()
	b, err := s.client.Device().CreateBuffer(&protocol.BufferDescriptor{Usage: gputypes.BufferUsageMapRead, Size: 16})
	require.NoError(t, err)
	noop := func(protocol.MapAsyncStatus) {}

	assert.Error(t, b.MapAsync(gputypes.MapModeWrite, 0, 16, noop))
	assert.Error(t, b.MapAsync(gputypes.MapModeRead|gputypes.MapModeWrite, 0, 16, noop))
	assert.Error(t, b.MapAsync(gputypes.MapModeRead, 8, 16, noop))
	assert.Error(t, b.MapAsync(gputypes.MapModeRead, 0, 16, nil))
	_, err = b.GetMappedRange(0, 4)
	assert.Error(t, err)

	require.NoError(t, b.MapAsync(gputypes.MapModeRead, 0, 16, noop))
	assert.Error(t, b.MapAsync(gputypes.MapModeRead, 0, 16, noop), "already pending")

	cmds := s.sent.flush(t)
	require.Len(t, cmds, 2)
	mapCmd := cmds[1].(*protocol.BufferMapAsyncCmd)
	assert.Same(t, b, mapCmd.Self)
	assert.Equal(t, uint64(1), mapCmd.RequestSerial)
	assert.Equal(t, gputypes.MapModeRead, mapCmd.Mode)
}

func TestMapCallbacks(t *testing.T) {
	s := newSetup()
	b, err := s.client.Device().CreateBuffer(&protocol.BufferDescriptor{Usage: gputypes.BufferUsageMapRead, Size: 16})
	require.NoError(t, err)

	var statuses []protocol.MapAsyncStatus
	require.NoError(t, b.MapAsync(gputypes.MapModeRead, 8, 4, func(st protocol.MapAsyncStatus) {
		statuses = append(statuses, st)
	}))

	stale := b.Handle()
	stale.Generation++
	require.NoError(t, s.deliver(t,
		// answers for other buffers, generations and requests are dropped
		&protocol.BufferMapAsyncCallbackCmd{Buffer: types.ObjectHandle{ID: 9}, RequestSerial: 1, Status: protocol.MapAsyncStatusSuccess},
		&protocol.BufferMapAsyncCallbackCmd{Buffer: stale, RequestSerial: 1, Status: protocol.MapAsyncStatusSuccess},
		&protocol.BufferMapAsyncCallbackCmd{Buffer: b.Handle(), RequestSerial: 5, Status: protocol.MapAsyncStatusSuccess},
	))
	assert.Empty(t, statuses)

	require.NoError(t, s.deliver(t, &protocol.BufferMapAsyncCallbackCmd{
		Buffer:                   b.Handle(),
		RequestSerial:            1,
		Status:                   protocol.MapAsyncStatusSuccess,
		ReadDataUpdateInfoLength: 4,
		ReadDataUpdateInfo:       []byte("data"),
	}))
	assert.Equal(t, []protocol.MapAsyncStatus{protocol.MapAsyncStatusSuccess}, statuses)
	data, err := b.GetMappedRange(8, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)

	require.NoError(t, b.Unmap())
	require.NoError(t, b.MapAsync(gputypes.MapModeRead, 0, 4, func(st protocol.MapAsyncStatus) {
		statuses = append(statuses, st)
	}))
	require.NoError(t, s.deliver(t, &protocol.BufferMapAsyncCallbackCmd{
		Buffer:        b.Handle(),
		RequestSerial: 2,
		Status:        protocol.MapAsyncStatusError,
		Message:       "lost",
	}))
	assert.Equal(t, protocol.MapAsyncStatusError, statuses[1])
	assert.Equal(t, BufferMapStateUnmapped, b.MapState())
	assert.Equal(t, 1, s.transfer.reads[0].updates)
}

func TestUnmapFlushesWrittenRange(t *testing.T) {
	s := newSetup()
	b, err := s.client.Device().CreateBuffer(&protocol.BufferDescriptor{Usage: gputypes.BufferUsageMapWrite, Size: 8})
	require.NoError(t, err)
	require.NoError(t, b.MapAsync(gputypes.MapModeWrite, 0, 8, func(protocol.MapAsyncStatus) {}))
	require.NoError(t, s.deliver(t, &protocol.BufferMapAsyncCallbackCmd{
		Buffer:        b.Handle(),
		RequestSerial: 1,
		Status:        protocol.MapAsyncStatusSuccess,
	}))
	s.sent.flush(t)

	data, err := b.GetMappedRange(0, 8)
	require.NoError(t, err)
	copy(data, "payload!")
	require.NoError(t, b.Unmap())

	cmds := s.sent.flush(t)
	require.Len(t, cmds, 2)
	update := cmds[0].(*protocol.BufferUpdateMappedDataCmd)
	assert.Equal(t, []byte("payload!"), update.WriteDataUpdateInfo)
	assert.Equal(t, uint64(8), update.Size)
	assert.IsType(t, &protocol.BufferUnmapCmd{}, cmds[1])
	assert.False(t, s.transfer.writes[0].closed)
}

func TestDestroy(t *testing.T) {
	s := newSetup()
	b, err := s.client.Device().CreateBuffer(&protocol.BufferDescriptor{Usage: gputypes.BufferUsageMapRead, Size: 8})
	require.NoError(t, err)
	var statuses []protocol.MapAsyncStatus
	require.NoError(t, b.MapAsync(gputypes.MapModeRead, 0, 8, func(st protocol.MapAsyncStatus) {
		statuses = append(statuses, st)
	}))
	s.sent.flush(t)

	require.NoError(t, b.Destroy())
	require.NoError(t, b.Destroy())
	assert.Equal(t, []protocol.MapAsyncStatus{protocol.MapAsyncStatusDestroyedBeforeCallback}, statuses)
	assert.True(t, s.transfer.reads[0].closed)

	cmds := s.sent.flush(t)
	require.Len(t, cmds, 1)
	assert.Equal(t, &protocol.DestroyObjectCmd{ObjectType: protocol.ObjectBuffer, ObjectID: b.Handle().ID}, cmds[0])
	assert.Equal(t, 0, s.client.Objects().Table(protocol.ObjectBuffer).Len())
	assert.Error(t, b.MapAsync(gputypes.MapModeRead, 0, 8, func(protocol.MapAsyncStatus) {}))
}

func TestFailedSerializationReleasesTheId(t *testing.T) {
	s := newSetup()
	_, err := s.client.Device().CreateTexture(&protocol.TextureDescriptor{
		ViewFormatCount: 2,
		ViewFormats:     []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm},
	})
	assert.True(t, common.IsFatal(err))
	assert.Equal(t, 0, s.client.Objects().Table(protocol.ObjectTexture).Len())
	assert.Empty(t, s.sent.flush(t))

	tex, err := s.client.Device().CreateTexture(&protocol.TextureDescriptor{})
	require.NoError(t, err)
	assert.Equal(t, types.ObjectHandle{ID: 1, Generation: 1}, tex.Handle())
}

func TestDeviceCallbacks(t *testing.T) {
	s := newSetup()
	require.NoError(t, s.deliver(t,
		&protocol.DeviceUncapturedErrorCallbackCmd{Device: s.client.Device().Handle(), Type: protocol.ErrorTypeValidation, Message: "invalid"},
		&protocol.DeviceUncapturedErrorCallbackCmd{Device: types.ObjectHandle{ID: 2}, Type: protocol.ErrorTypeValidation, Message: "other"},
		&protocol.DeviceLoggingCallbackCmd{Device: s.client.Device().Handle(), Type: protocol.LoggingTypeInfo, Message: "hello"},
	))
	assert.Equal(t, []string{"invalid"}, s.errors)

	assert.True(t, common.IsFatal(s.client.HandleCommands([]byte{0})))
}

func TestDisconnect(t *testing.T) {
	s := newSetup()
	b, err := s.client.Device().CreateBuffer(&protocol.BufferDescriptor{Usage: gputypes.BufferUsageMapRead, Size: 8})
	require.NoError(t, err)
	var statuses []protocol.MapAsyncStatus
	require.NoError(t, b.MapAsync(gputypes.MapModeRead, 0, 8, func(st protocol.MapAsyncStatus) {
		statuses = append(statuses, st)
	}))

	s.client.Disconnect()
	assert.Equal(t, []protocol.MapAsyncStatus{protocol.MapAsyncStatusAborted}, statuses)
	_, err = s.client.Device().GetQueue()
	assert.Equal(t, common.KAssertionFailed, common.StatusCode(err))
	assert.Error(t, s.client.Flush())

	require.NoError(t, s.client.Close())
	assert.True(t, s.transfer.reads[0].closed)
}
