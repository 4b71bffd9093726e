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
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

func TestCommandSets(t *testing.T) {
	ids := Commands.IDs()
	require.Len(t, ids, int(DestroyObject))
	for i, id := range ids {
		assert.Equal(t, types.CommandID(i+1), id)
		assert.Equal(t, id, Commands.New(id).CommandID())
	}
	assert.Equal(t, "BufferMapAsyncCmd", Commands.Name(BufferMapAsync))
	assert.Equal(t, []types.CommandID{1, 2, 3}, ReturnCommands.IDs())
	assert.Nil(t, ReturnCommands.New(DestroyObject))
}

func TestObjectTypeNames(t *testing.T) {
	assert.Len(t, ObjectTypes, 7)
	assert.Equal(t, "Device", wire.ObjectTypeName(ObjectDevice))
	assert.Equal(t, "BindGroupLayout", wire.ObjectTypeName(ObjectBindGroupLayout))
}

func TestTextureDescriptorRoundTrip(t *testing.T) {
	size := gputypes.Extent3D{Width: 64, Height: 32, DepthOrArrayLayers: 1}
	desc := &TextureDescriptor{
		Label:           Label("atlas"),
		Usage:           gputypes.TextureUsage(2),
		Dimension:       gputypes.TextureDimension(1),
		Size:            ExtentFrom(size),
		Format:          gputypes.TextureFormatRGBA8Unorm,
		MipLevelCount:   1,
		SampleCount:     1,
		ViewFormatCount: 1,
		ViewFormats:     []gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm},
	}
	n, err := wire.TransferSize(desc)
	require.NoError(t, err)
	extra, err := wire.GetExtraRequiredSize(desc)
	require.NoError(t, err)

	buf := wire.NewSerializeBuffer(make([]byte, uint64(wire.WireAlignSizeof(n))+extra))
	require.NoError(t, wire.SerializeRecord(desc, buf, wire.ErrorObjectIdProvider))

	var got TextureDescriptor
	require.NoError(t, wire.DeserializeRecord(&got, wire.NewDeserializeBuffer(buf.Bytes()), &wire.HeapAllocator{}, wire.ErrorObjectIdResolver))
	assert.Equal(t, desc, &got)
	assert.Equal(t, size, got.Size.GPU())
}

func TestMapAsyncStatusString(t *testing.T) {
	assert.Equal(t, "Success", MapAsyncStatusSuccess.String())
	assert.Equal(t, "UnmappedBeforeCallback", MapAsyncStatusUnmappedBeforeCallback.String())
	assert.Equal(t, "Unknown", MapAsyncStatus(42).String())
}
