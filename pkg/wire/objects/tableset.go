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
	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

// TableSet holds one table per object type and serves as both the
// ObjectIdProvider and the ObjectIdResolver of its side.
type TableSet struct {
	tables map[types.ObjectType]*Table[wire.Object]
}

var (
	_ wire.ObjectIdProvider = &TableSet{}
	_ wire.ObjectIdResolver = &TableSet{}
)

func NewTableSet(objectTypes ...types.ObjectType) *TableSet {
	s := &TableSet{tables: map[types.ObjectType]*Table[wire.Object]{}}
	for _, t := range objectTypes {
		s.tables[t] = NewTable[wire.Object]()
	}
	return s
}

// Table returns the table of t, or nil if the set does not track t.
func (s *TableSet) Table(t types.ObjectType) *Table[wire.Object] {
	return s.tables[t]
}

func (s *TableSet) table(t types.ObjectType) (*Table[wire.Object], error) {
	table, ok := s.tables[t]
	if !ok {
		return nil, common.FatalError("object type %s is not tracked", wire.ObjectTypeName(t))
	}
	return table, nil
}

func (s *TableSet) GetId(t types.ObjectType, obj wire.Object) (types.ObjectID, error) {
	if wire.IsNullObject(obj) {
		return types.NullObjectID, common.FatalError("required %s is null", wire.ObjectTypeName(t))
	}
	table, err := s.table(t)
	if err != nil {
		return types.NullObjectID, err
	}
	id, ok := table.IdOf(obj)
	if !ok {
		return types.NullObjectID, common.FatalError("%s %v has no id", wire.ObjectTypeName(t), obj)
	}
	return id, nil
}

func (s *TableSet) GetOptionalId(t types.ObjectType, obj wire.Object) (types.ObjectID, error) {
	if wire.IsNullObject(obj) {
		return types.NullObjectID, nil
	}
	return s.GetId(t, obj)
}

// GetFromId resolves id. Slots holding a nil object, such as objects whose
// creation failed, do not resolve.
func (s *TableSet) GetFromId(t types.ObjectType, id types.ObjectID) (wire.Object, error) {
	if id == types.NullObjectID {
		return nil, common.FatalError("required %s has the null id", wire.ObjectTypeName(t))
	}
	table, err := s.table(t)
	if err != nil {
		return nil, err
	}
	obj, ok := table.Get(id)
	if !ok {
		return nil, common.FatalError("unknown %s %s", wire.ObjectTypeName(t), types.ObjectIDToString(id))
	}
	if wire.IsNullObject(obj) {
		return nil, common.FatalError("%s %s is an error object", wire.ObjectTypeName(t), types.ObjectIDToString(id))
	}
	return obj, nil
}

func (s *TableSet) GetOptionalFromId(t types.ObjectType, id types.ObjectID) (wire.Object, error) {
	if id == types.NullObjectID {
		return nil, nil
	}
	return s.GetFromId(t, id)
}

// ResolveHandle resolves an (id, generation) pair, failing on stale
// generations as well as on unknown ids.
func (s *TableSet) ResolveHandle(t types.ObjectType, h types.ObjectHandle) (wire.Object, error) {
	table, err := s.table(t)
	if err != nil {
		return nil, err
	}
	obj, err := table.GetHandle(h)
	if err != nil {
		return nil, common.FatalError("resolving %s %s: %v", wire.ObjectTypeName(t), h, err)
	}
	return obj, nil
}
