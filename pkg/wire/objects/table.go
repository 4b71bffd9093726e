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

// Package objects keeps the per-side tables that map wire object ids to
// local objects.
package objects

import (
	"reflect"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
)

type slot[T comparable] struct {
	obj        T
	generation types.ObjectGeneration
	allocated  bool
}

// Table maps ids of one object type to objects. Id 0 is reserved for null.
// Tables are not safe for concurrent use.
type Table[T comparable] struct {
	slots []slot[T]
	free  []types.ObjectHandle
	ids   map[T]types.ObjectID
}

func NewTable[T comparable]() *Table[T] {
	return &Table[T]{
		slots: make([]slot[T], 1),
		ids:   map[T]types.ObjectID{},
	}
}

// Reserve assigns a handle to obj, reusing freed ids with their generation
// bumped. This is how the creating side names new objects.
func (t *Table[T]) Reserve(obj T) types.ObjectHandle {
	var h types.ObjectHandle
	if n := len(t.free); n > 0 {
		h = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		h = types.ObjectHandle{ID: types.ObjectID(len(t.slots))}
		t.slots = append(t.slots, slot[T]{})
	}
	t.slots[h.ID] = slot[T]{obj: obj, generation: h.Generation, allocated: true}
	t.index(obj, h.ID)
	return h
}

// Insert stores obj under a handle chosen by the peer. The id may be at most
// one past the end of the table, the slot must be free, and a reused slot
// must come with a newer generation.
func (t *Table[T]) Insert(h types.ObjectHandle, obj T) error {
	if h.IsNull() {
		return common.Errorf(common.KInvalid, "cannot insert at the null id")
	}
	if uint64(h.ID) > uint64(len(t.slots)) {
		return common.Errorf(common.KInvalid, "object %s is too far past the end of the table", h)
	}
	if !hashable(obj) {
		return common.Errorf(common.KInvalid, "object of type %T cannot be indexed", obj)
	}
	if int(h.ID) == len(t.slots) {
		t.slots = append(t.slots, slot[T]{})
	} else {
		s := &t.slots[h.ID]
		if s.allocated {
			return common.Errorf(common.KObjectExists, "object %s is already allocated", h)
		}
		if h.Generation <= s.generation {
			return common.Errorf(common.KInvalid, "object %s reuses a stale generation %d", h, s.generation)
		}
	}
	t.slots[h.ID] = slot[T]{obj: obj, generation: h.Generation, allocated: true}
	t.index(obj, h.ID)
	return nil
}

// Free releases id. The next Reserve hands it out again with the next
// generation, unless the generation counter is exhausted.
func (t *Table[T]) Free(id types.ObjectID) error {
	if id == types.NullObjectID || int(id) >= len(t.slots) || !t.slots[id].allocated {
		return common.Errorf(common.KObjectNotExists, "object %s is not allocated", types.ObjectIDToString(id))
	}
	s := &t.slots[id]
	if hashable(s.obj) {
		if owner, ok := t.ids[s.obj]; ok && owner == id {
			delete(t.ids, s.obj)
		}
	}
	var zero T
	s.obj, s.allocated = zero, false
	if next := s.generation + 1; next != 0 {
		t.free = append(t.free, types.ObjectHandle{ID: id, Generation: next})
	}
	return nil
}

// Get returns the object stored at id.
func (t *Table[T]) Get(id types.ObjectID) (T, bool) {
	if int(id) >= len(t.slots) || !t.slots[id].allocated {
		var zero T
		return zero, false
	}
	return t.slots[id].obj, true
}

// GetHandle returns the object named by h, failing on stale generations.
func (t *Table[T]) GetHandle(h types.ObjectHandle) (T, error) {
	var zero T
	if int(h.ID) >= len(t.slots) || !t.slots[h.ID].allocated {
		return zero, common.Errorf(common.KObjectNotExists, "object %s does not exist", h)
	}
	if s := t.slots[h.ID]; s.generation != h.Generation {
		return zero, common.Errorf(common.KObjectStale, "object %s is stale, the slot holds generation %d", h, s.generation)
	}
	return t.slots[h.ID].obj, nil
}

// Handle returns the current handle of id.
func (t *Table[T]) Handle(id types.ObjectID) (types.ObjectHandle, bool) {
	if int(id) >= len(t.slots) || !t.slots[id].allocated {
		return types.ObjectHandle{}, false
	}
	return types.ObjectHandle{ID: id, Generation: t.slots[id].generation}, true
}

// IdOf returns the id obj was last stored under.
func (t *Table[T]) IdOf(obj T) (types.ObjectID, bool) {
	id, ok := t.ids[obj]
	return id, ok
}

// Len returns the number of allocated objects.
func (t *Table[T]) Len() int {
	n := 0
	for _, s := range t.slots {
		if s.allocated {
			n++
		}
	}
	return n
}

// Range calls fn for every allocated object in id order until fn returns
// false.
func (t *Table[T]) Range(fn func(h types.ObjectHandle, obj T) bool) {
	for id, s := range t.slots {
		if s.allocated && !fn(types.ObjectHandle{ID: types.ObjectID(id), Generation: s.generation}, s.obj) {
			return
		}
	}
}

func (t *Table[T]) index(obj T, id types.ObjectID) {
	var zero T
	if hashable(obj) && obj != zero {
		t.ids[obj] = id
	}
}

// hashable reports whether obj can be a map key at run time. Interface
// typed tables may hold dynamic types that cannot.
func hashable(obj any) bool {
	if obj == nil {
		return true
	}
	return reflect.TypeOf(obj).Comparable()
}
