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

package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

type proxy struct {
	name string
}

func TestReserveReusesWithNewGeneration(t *testing.T) {
	table := NewTable[*proxy]()
	a, b := &proxy{"a"}, &proxy{"b"}

	ha := table.Reserve(a)
	hb := table.Reserve(b)
	assert.Equal(t, types.ObjectHandle{ID: 1}, ha)
	assert.Equal(t, types.ObjectHandle{ID: 2}, hb)

	require.NoError(t, table.Free(ha.ID))
	c := &proxy{"c"}
	hc := table.Reserve(c)
	assert.Equal(t, types.ObjectHandle{ID: 1, Generation: 1}, hc)

	_, err := table.GetHandle(ha)
	assert.Equal(t, common.KObjectStale, common.StatusCode(err))
	got, err := table.GetHandle(hc)
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, ok := table.IdOf(a)
	assert.False(t, ok)
	id, ok := table.IdOf(c)
	assert.True(t, ok)
	assert.Equal(t, types.ObjectID(1), id)
	assert.Equal(t, 2, table.Len())
}

func TestFreeErrors(t *testing.T) {
	table := NewTable[*proxy]()
	assert.Error(t, table.Free(0))
	assert.Error(t, table.Free(3))
	h := table.Reserve(&proxy{})
	require.NoError(t, table.Free(h.ID))
	assert.Equal(t, common.KObjectNotExists, common.StatusCode(table.Free(h.ID)))
}

func TestExhaustedGenerationRetiresTheId(t *testing.T) {
	table := NewTable[*proxy]()
	h := table.Reserve(&proxy{})
	table.slots[h.ID].generation = ^types.ObjectGeneration(0)
	require.NoError(t, table.Free(h.ID))
	assert.Equal(t, types.ObjectID(2), table.Reserve(&proxy{}).ID)
}

func TestInsert(t *testing.T) {
	table := NewTable[wire.Object]()
	x := &proxy{"x"}

	require.NoError(t, table.Insert(types.ObjectHandle{ID: 1}, x))
	assert.Error(t, table.Insert(types.ObjectHandle{}, x), "null id")
	assert.Error(t, table.Insert(types.ObjectHandle{ID: 3}, x), "too far ahead")
	assert.Equal(t, common.KObjectExists, common.StatusCode(table.Insert(types.ObjectHandle{ID: 1, Generation: 1}, x)))
	assert.Error(t, table.Insert(types.ObjectHandle{ID: 2}, []int{1}), "not hashable")

	require.NoError(t, table.Free(1))
	assert.Error(t, table.Insert(types.ObjectHandle{ID: 1}, x), "stale generation")
	require.NoError(t, table.Insert(types.ObjectHandle{ID: 1, Generation: 1}, x))

	require.NoError(t, table.Insert(types.ObjectHandle{ID: 2, Generation: 7}, nil))
	obj, ok := table.Get(2)
	assert.True(t, ok)
	assert.Nil(t, obj)

	var seen []types.ObjectHandle
	table.Range(func(h types.ObjectHandle, _ wire.Object) bool {
		seen = append(seen, h)
		return true
	})
	assert.Equal(t, []types.ObjectHandle{{ID: 1, Generation: 1}, {ID: 2, Generation: 7}}, seen)

	h, ok := table.Handle(2)
	assert.True(t, ok)
	assert.Equal(t, types.ObjectGeneration(7), h.Generation)
	_, ok = table.Handle(9)
	assert.False(t, ok)
}

const (
	typeDevice types.ObjectType = 2000 + iota
	typeBuffer
	typeUntracked
)

func init() {
	wire.RegisterObjectType(typeDevice, "ObjectsTestDevice")
	wire.RegisterObjectType(typeBuffer, "ObjectsTestBuffer")
}

func TestTableSetRoundTrip(t *testing.T) {
	set := NewTableSet(typeDevice, typeBuffer)
	dev, buf := &proxy{"dev"}, &proxy{"buf"}
	set.Table(typeDevice).Reserve(dev)
	set.Table(typeBuffer).Reserve(buf)

	for _, c := range []struct {
		t   types.ObjectType
		obj wire.Object
	}{{typeDevice, dev}, {typeBuffer, buf}} {
		id, err := set.GetId(c.t, c.obj)
		require.NoError(t, err)
		got, err := set.GetFromId(c.t, id)
		require.NoError(t, err)
		assert.Same(t, c.obj, got)
	}

	id, err := set.GetOptionalId(typeBuffer, (*proxy)(nil))
	require.NoError(t, err)
	assert.Equal(t, types.NullObjectID, id)
	obj, err := set.GetOptionalFromId(typeBuffer, types.NullObjectID)
	require.NoError(t, err)
	assert.Nil(t, obj)

	for _, err := range []error{
		func() error { _, err := set.GetId(typeBuffer, nil); return err }(),
		func() error { _, err := set.GetId(typeBuffer, &proxy{"stranger"}); return err }(),
		func() error { _, err := set.GetId(typeUntracked, dev); return err }(),
		func() error { _, err := set.GetFromId(typeBuffer, 0); return err }(),
		func() error { _, err := set.GetFromId(typeBuffer, 42); return err }(),
		func() error { _, err := set.GetOptionalFromId(typeBuffer, 42); return err }(),
	} {
		assert.True(t, common.IsFatal(err))
	}
}

func TestTableSetGenerationMismatch(t *testing.T) {
	set := NewTableSet(typeBuffer)
	table := set.Table(typeBuffer)
	old := &proxy{"old"}
	oldHandle := table.Reserve(old)

	got, err := set.ResolveHandle(typeBuffer, oldHandle)
	require.NoError(t, err)
	assert.Same(t, old, got)

	require.NoError(t, table.Free(oldHandle.ID))
	fresh := &proxy{"new"}
	newHandle := table.Reserve(fresh)
	require.Equal(t, oldHandle.ID, newHandle.ID)

	_, err = set.ResolveHandle(typeBuffer, oldHandle)
	assert.True(t, common.IsFatal(err))
	got, err = set.ResolveHandle(typeBuffer, newHandle)
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

func TestErrorObjectsDoNotResolve(t *testing.T) {
	set := NewTableSet(typeBuffer)
	require.NoError(t, set.Table(typeBuffer).Insert(types.ObjectHandle{ID: 1}, nil))
	_, err := set.GetFromId(typeBuffer, 1)
	assert.True(t, common.IsFatal(err))
}
