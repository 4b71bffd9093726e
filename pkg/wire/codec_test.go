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

package wire

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
)

func scenarioBytes() []byte {
	b := make([]byte, 40)
	binary.NativeEndian.PutUint64(b[0:], 40)
	binary.NativeEndian.PutUint32(b[8:], 7)
	binary.NativeEndian.PutUint32(b[12:], 7)
	b[16] = 0
	binary.NativeEndian.PutUint64(b[24:], 2)
	copy(b[32:], "hi")
	return b
}

func TestConcreteScenario(t *testing.T) {
	x := &testObject{name: "X"}
	cmd := &scenarioCmd{Target: x, Label: "hi"}

	size, err := GetRequiredSize(cmd)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), size)

	enc, err := Encode(cmd, newTestObjects(map[types.ObjectID]Object{7: x}))
	require.NoError(t, err)
	assert.Equal(t, scenarioBytes(), enc)

	alloc := &recordingAllocator{}
	var got scenarioCmd
	err = DeserializeCommandWithResolver(&got, NewDeserializeBuffer(scenarioBytes()), alloc,
		newTestObjects(map[types.ObjectID]Object{7: x}))
	require.NoError(t, err)
	assert.True(t, got.Target == Object(x))
	assert.Nil(t, got.Optional)
	assert.Equal(t, "hi", got.Label)
	assert.Equal(t, []byte{'h', 'i', 0}, alloc.last)
}

func newFullObjects() (*testObjects, Object, Object, Object) {
	dev, buf1, buf2 := &testObject{"device"}, &testObject{"a"}, &testObject{"b"}
	return newTestObjects(map[types.ObjectID]Object{1: dev, 2: buf1, 5: buf2}), dev, buf1, buf2
}

func maximalFullCmd(dev, buf1, buf2 Object) *fullCmd {
	return &fullCmd{
		Enabled: true,
		Level:   -3,
		Kind:    0xdeadbeef,
		Scale:   2.5,
		Device:  dev,
		Parent:  buf1,
		Value:   testValue{X: -7, Y: math.MaxUint16, Owner: dev},
		Handle:  types.ObjectHandle{ID: 9, Generation: 4},
		Name:    "full",
		Label:   strPtr("label"),

		Fixed:        []uint16{1, 2, 3},
		DataSize:     5,
		Data:         []byte{1, 2, 3, 4, 5},
		OptionalSize: 2,
		OptionalData: []int64{-1, 1 << 40},
		EntryCount:   2,
		Entries: []testEntry{
			{Binding: 0, Name: "a", Buffer: buf1, WeightCount: 2, Weights: []float32{0.5, 1.5}},
			{Binding: 3, Name: "", Buffer: buf2},
		},
		BufferCount: 3,
		Buffers:     []Object{buf1, nil, buf2},
		Flags:       []bool{true, false},
		Descriptor: &testDescriptor{
			Chain: []ChainedStruct{
				testChainA{Flags: 1, Code: "main"},
				testChainB{Count: 2, Values: []int32{-1, 2}},
			},
			Size:  64,
			Label: strPtr("desc"),
		},
		PayloadSize: 3,
		Payload:     []byte("xyz"),
	}
}

func minimalFullCmd(dev Object) *fullCmd {
	return &fullCmd{Device: dev, Fixed: make([]uint16, 3), Flags: make([]bool, 2)}
}

func TestRoundTrip(t *testing.T) {
	objs, dev, buf1, buf2 := newFullObjects()
	for name, cmd := range map[string]*fullCmd{
		"maximal": maximalFullCmd(dev, buf1, buf2),
		"minimal": minimalFullCmd(dev),
	} {
		t.Run(name, func(t *testing.T) {
			enc, err := Encode(cmd, objs)
			require.NoError(t, err)
			assert.Zero(t, len(enc)%common.WireAlignment)
			assert.Equal(t, uint64(len(enc)), binary.NativeEndian.Uint64(enc))

			var got fullCmd
			require.NoError(t, DeserializeCommandWithResolver(&got, NewDeserializeBuffer(enc), &HeapAllocator{}, objs))
			assert.Equal(t, cmd, &got)
		})
	}
}

func TestTruncatedCommandsAreRejected(t *testing.T) {
	objs, dev, buf1, buf2 := newFullObjects()
	for _, cmd := range []*fullCmd{maximalFullCmd(dev, buf1, buf2), minimalFullCmd(dev)} {
		enc, err := Encode(cmd, objs)
		require.NoError(t, err)
		for i := 0; i < len(enc); i++ {
			var got fullCmd
			err := DeserializeCommandWithResolver(&got, NewDeserializeBuffer(enc[:i]), &HeapAllocator{}, objs)
			require.Error(t, err, "truncated at %d of %d", i, len(enc))
			assert.True(t, common.IsFatal(err))
		}
	}
}

func TestDataOnlyIsAViewOthersAreCopies(t *testing.T) {
	objs, dev, buf1, buf2 := newFullObjects()
	enc, err := Encode(maximalFullCmd(dev, buf1, buf2), objs)
	require.NoError(t, err)

	var got fullCmd
	require.NoError(t, DeserializeCommandWithResolver(&got, NewDeserializeBuffer(enc), &HeapAllocator{}, objs))
	for i := range enc {
		enc[i] = 0xee
	}
	assert.Equal(t, []byte{0xee, 0xee, 0xee}, got.Payload)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got.Data)
	assert.Equal(t, "full", got.Name)
	assert.Equal(t, uint32(5), got.DataSize)
}

type countCmd struct {
	Count  uint64
	Values []uint32 `wire:"array,len=Count"`
}

func (countCmd) CommandID() types.CommandID { return 9 }

func TestArrayCountOverflow(t *testing.T) {
	enc, err := Encode(&countCmd{Count: 1, Values: []uint32{1}}, ErrorObjectIdProvider)
	require.NoError(t, err)

	binary.NativeEndian.PutUint64(enc[16:], math.MaxUint64/4+1)
	var got countCmd
	err = DeserializeCommand(&got, NewDeserializeBuffer(enc), &HeapAllocator{})
	assert.True(t, common.IsFatal(err))

	_, err = Encode(&countCmd{Count: 2, Values: []uint32{1}}, ErrorObjectIdProvider)
	assert.True(t, common.IsFatal(err), "length disagrees with the slice")
}

type narrowingCmd struct {
	Value uint16 `wire:"value,as=uint32"`
}

func (narrowingCmd) CommandID() types.CommandID { return 10 }

type testEnum uint64

type wideningCmd struct {
	Signed   int64    `wire:"value,as=int32"`
	Unsigned uint64   `wire:"value,as=uint32"`
	Small    int32    `wire:"value,as=int8"`
	Enum     testEnum `wire:"value,as=uint32"`
}

func (wideningCmd) CommandID() types.CommandID { return 11 }

func TestNarrowingIsRejected(t *testing.T) {
	_, err := GetRequiredSize(&narrowingCmd{Value: 1})
	assert.True(t, common.IsFatal(err))

	var got narrowingCmd
	err = DeserializeCommand(&got, NewDeserializeBuffer(make([]byte, 64)), &HeapAllocator{})
	assert.True(t, common.IsFatal(err))
}

func TestWideningExtends(t *testing.T) {
	size, err := TransferSize(wideningCmd{})
	require.NoError(t, err)
	assert.Equal(t, 32, size)

	b := make([]byte, 32)
	binary.NativeEndian.PutUint64(b[0:], 32)
	binary.NativeEndian.PutUint32(b[8:], 11)
	binary.NativeEndian.PutUint32(b[12:], 0xffffffff)
	binary.NativeEndian.PutUint32(b[16:], 0xffffffff)
	b[20] = 0x80
	binary.NativeEndian.PutUint32(b[24:], 0x80000000)

	var got wideningCmd
	require.NoError(t, DeserializeCommand(&got, NewDeserializeBuffer(b), &HeapAllocator{}))
	assert.Equal(t, int64(-1), got.Signed)
	assert.Equal(t, uint64(math.MaxUint32), got.Unsigned)
	assert.Equal(t, int32(-128), got.Small)
	assert.Equal(t, testEnum(0x80000000), got.Enum)

	_, err = Encode(&wideningCmd{Signed: 1 << 40}, ErrorObjectIdProvider)
	assert.True(t, common.IsFatal(err))
	_, err = Encode(&wideningCmd{Small: 200}, ErrorObjectIdProvider)
	assert.True(t, common.IsFatal(err))
	_, err = Encode(&wideningCmd{Unsigned: 1 << 32}, ErrorObjectIdProvider)
	assert.True(t, common.IsFatal(err))
}

func TestStringEdgeCases(t *testing.T) {
	x := &testObject{name: "X"}
	objs := newTestObjects(map[types.ObjectID]Object{7: x})

	enc, err := Encode(&scenarioCmd{Target: x}, objs)
	require.NoError(t, err)
	alloc := &recordingAllocator{}
	var got scenarioCmd
	require.NoError(t, DeserializeCommandWithResolver(&got, NewDeserializeBuffer(enc), alloc, objs))
	assert.Equal(t, "", got.Label)
	assert.Equal(t, []byte{0}, alloc.last)

	for _, n := range []uint64{math.MaxUint64, math.MaxInt64, 1 << 40} {
		b := scenarioBytes()
		binary.NativeEndian.PutUint64(b[24:], n)
		alloc := &recordingAllocator{}
		err := DeserializeCommandWithResolver(&got, NewDeserializeBuffer(b), alloc, objs)
		assert.True(t, common.IsFatal(err), "strlen %d", n)
		assert.Zero(t, alloc.calls, "strlen %d", n)
	}
}

func TestAllocatorExhaustion(t *testing.T) {
	x := &testObject{name: "X"}
	objs := newTestObjects(map[types.ObjectID]Object{7: x})
	var got scenarioCmd
	err := DeserializeCommandWithResolver(&got, NewDeserializeBuffer(scenarioBytes()), &HeapAllocator{Limit: 2}, objs)
	assert.True(t, common.IsFatal(err))
}

func TestObjectIdFailures(t *testing.T) {
	x := &testObject{name: "X"}

	_, err := Encode(&scenarioCmd{Target: x, Label: "hi"}, ErrorObjectIdProvider)
	assert.True(t, common.IsFatal(err))

	_, err = Encode(&scenarioCmd{Label: "hi"}, newTestObjects(map[types.ObjectID]Object{7: x}))
	assert.True(t, common.IsFatal(err), "required object is null")

	var got scenarioCmd
	err = DeserializeCommandWithResolver(&got, NewDeserializeBuffer(scenarioBytes()), &HeapAllocator{},
		newTestObjects(map[types.ObjectID]Object{8: x}))
	assert.True(t, common.IsFatal(err), "unknown id")

	b := scenarioBytes()
	binary.NativeEndian.PutUint32(b[12:], 0)
	err = DeserializeCommandWithResolver(&got, NewDeserializeBuffer(b), &HeapAllocator{},
		newTestObjects(map[types.ObjectID]Object{7: x}))
	assert.True(t, common.IsFatal(err), "null id for a required object")

	err = DeserializeCommand(&got, NewDeserializeBuffer(scenarioBytes()), &HeapAllocator{})
	assert.True(t, common.IsFatal(err))
}

func TestCommandIdMismatch(t *testing.T) {
	var got countCmd
	err := DeserializeCommand(&got, NewDeserializeBuffer(scenarioBytes()), &HeapAllocator{})
	assert.True(t, common.IsFatal(err))

	err = DeserializeCommand(countCmd{}, NewDeserializeBuffer(scenarioBytes()), &HeapAllocator{})
	assert.True(t, common.IsFatal(err))
}

type multiRoleCmd struct {
	Chain []ChainedStruct `wire:"chain"`
}

func (multiRoleCmd) CommandID() types.CommandID { return 30 }

type pointerValue struct {
	Name string `wire:"strlen"`
}

type badValueCmd struct {
	Inner pointerValue
}

func (badValueCmd) CommandID() types.CommandID { return 31 }

type badObjectCmd struct {
	Target Object `wire:"object,type=Nope"`
}

func (badObjectCmd) CommandID() types.CommandID { return 32 }

type badLengthCmd struct {
	Values []uint32 `wire:"array,len=Missing"`
}

func (badLengthCmd) CommandID() types.CommandID { return 33 }

type badDataOnlyCmd struct {
	Count  uint32
	Values []uint32 `wire:"array,len=Count,dataonly"`
}

func (badDataOnlyCmd) CommandID() types.CommandID { return 34 }

type badStringCmd struct {
	Name string `wire:"strlen,optional"`
}

func (badStringCmd) CommandID() types.CommandID { return 35 }

type untaggedSliceCmd struct {
	Values []uint32
}

func (untaggedSliceCmd) CommandID() types.CommandID { return 36 }

func TestInvalidRecordsAreRejected(t *testing.T) {
	for _, cmd := range []Command{
		multiRoleCmd{}, badValueCmd{}, badObjectCmd{}, badLengthCmd{},
		badDataOnlyCmd{}, badStringCmd{}, untaggedSliceCmd{},
	} {
		_, err := GetRequiredSize(cmd)
		assert.True(t, common.IsFatal(err), "%T", cmd)
		_, err = GetRequiredSize(cmd)
		assert.True(t, common.IsFatal(err), "%T cached", cmd)
	}
}
