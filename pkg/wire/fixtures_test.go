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
	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
)

const (
	testObjectDevice types.ObjectType = 1000 + iota
	testObjectBuffer
)

func init() {
	RegisterObjectType(testObjectDevice, "TestDevice")
	RegisterObjectType(testObjectBuffer, "TestBuffer")
	RegisterChainedStruct(testChainA{})
	RegisterChainedStruct(testChainB{})
}

type testObject struct {
	name string
}

// testObjects is a minimal two-way id table.
type testObjects struct {
	byID map[types.ObjectID]Object
	ids  map[Object]types.ObjectID
}

func newTestObjects(objs map[types.ObjectID]Object) *testObjects {
	t := &testObjects{byID: objs, ids: map[Object]types.ObjectID{}}
	for id, obj := range objs {
		t.ids[obj] = id
	}
	return t
}

func (t *testObjects) GetId(_ types.ObjectType, obj Object) (types.ObjectID, error) {
	if id, ok := t.ids[obj]; ok && obj != nil {
		return id, nil
	}
	return 0, common.FatalError("unknown object %v", obj)
}

func (t *testObjects) GetOptionalId(ot types.ObjectType, obj Object) (types.ObjectID, error) {
	if obj == nil {
		return types.NullObjectID, nil
	}
	return t.GetId(ot, obj)
}

func (t *testObjects) GetFromId(_ types.ObjectType, id types.ObjectID) (Object, error) {
	if obj, ok := t.byID[id]; ok && id != types.NullObjectID {
		return obj, nil
	}
	return nil, common.FatalError("unknown id %d", id)
}

func (t *testObjects) GetOptionalFromId(ot types.ObjectType, id types.ObjectID) (Object, error) {
	if id == types.NullObjectID {
		return nil, nil
	}
	return t.GetFromId(ot, id)
}

// recordingAllocator counts requests and remembers the last space handed out.
type recordingAllocator struct {
	HeapAllocator
	calls int
	last  []byte
}

func (a *recordingAllocator) GetSpace(size int) []byte {
	a.calls++
	a.last = a.HeapAllocator.GetSpace(size)
	return a.last
}

type scenarioCmd struct {
	Target   Object   `wire:"object,type=TestBuffer"`
	Optional []uint32 `wire:"array,len=4,optional"`
	Label    string   `wire:"strlen"`
}

func (scenarioCmd) CommandID() types.CommandID { return 7 }

type testValue struct {
	X     int16
	Y     uint32 `wire:"value,as=uint16"`
	Owner Object `wire:"object,type=TestDevice,optional"`
}

type testEntry struct {
	Binding     uint32
	Name        string    `wire:"strlen"`
	Buffer      Object    `wire:"object,type=TestBuffer"`
	WeightCount uint32
	Weights     []float32 `wire:"array,len=WeightCount"`
}

type testChainA struct {
	Flags uint32
	Code  string `wire:"strlen"`
}

func (testChainA) SType() types.SType { return 1 }

type testChainB struct {
	Count  uint64
	Values []int32 `wire:"array,len=Count"`
}

func (testChainB) SType() types.SType { return 2 }

// testChainUnregistered is a valid chained struct nobody registered.
type testChainUnregistered struct {
	Payload uint64
}

func (testChainUnregistered) SType() types.SType { return 77 }

type testDescriptor struct {
	Chain []ChainedStruct `wire:"chain"`
	Size  uint64
	Label *string `wire:"strlen,optional"`
}

type fullCmd struct {
	Enabled bool
	Level   int8
	Kind    uint64 `wire:"value,as=uint32"`
	Scale   float64
	Device  Object `wire:"object,type=TestDevice"`
	Parent  Object `wire:"object,type=TestBuffer,optional"`
	Value   testValue
	Handle  types.ObjectHandle

	Name  string  `wire:"strlen"`
	Label *string `wire:"strlen,optional"`

	Fixed        []uint16 `wire:"array,len=3"`
	DataSize     uint32
	Data         []byte `wire:"array,len=DataSize"`
	OptionalSize uint16
	OptionalData []int64 `wire:"array,len=OptionalSize,optional"`
	EntryCount   uint64
	Entries      []testEntry `wire:"array,len=EntryCount"`
	BufferCount  uint32
	Buffers      []Object        `wire:"array,len=BufferCount,type=TestBuffer,optional"`
	Flags        []bool          `wire:"array,len=2"`
	Descriptor   *testDescriptor `wire:"array,optional"`
	PayloadSize  uint32
	Payload      []byte `wire:"array,len=PayloadSize,dataonly"`
}

func (fullCmd) CommandID() types.CommandID { return 8 }

func strPtr(s string) *string {
	return &s
}
