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
	"fmt"
	"reflect"
	"sync"

	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
)

// ChainedStruct is an extension record that can be linked into the chain of
// an extensible record. Implementations are value types registered with
// RegisterChainedStruct.
type ChainedStruct interface {
	SType() types.SType
}

// STypeInvalid is written in place of chained structs the encoder does not
// know.
const STypeInvalid types.SType = 0

// UnknownChainedStruct stands in for a chain node whose tag is not
// registered. It keeps the received tag for inspection; re-encoding it emits
// an STypeInvalid header.
type UnknownChainedStruct struct {
	Tag types.SType
}

func (UnknownChainedStruct) SType() types.SType {
	return STypeInvalid
}

var registry = struct {
	sync.RWMutex
	objectTypes     map[types.ObjectType]string
	objectTypeNames map[string]types.ObjectType
	chained         map[types.SType]reflect.Type
}{
	objectTypes:     map[types.ObjectType]string{},
	objectTypeNames: map[string]types.ObjectType{},
	chained:         map[types.SType]reflect.Type{},
}

// RegisterObjectType names an object type so that `type=<name>` options can
// refer to it. It panics on conflicting registrations.
func RegisterObjectType(t types.ObjectType, name string) {
	registry.Lock()
	defer registry.Unlock()
	if n, ok := registry.objectTypes[t]; ok && n != name {
		panic(fmt.Sprintf("wire: object type %d registered as both %s and %s", t, n, name))
	}
	if id, ok := registry.objectTypeNames[name]; ok && id != t {
		panic(fmt.Sprintf("wire: object type name %s registered for both %d and %d", name, id, t))
	}
	registry.objectTypes[t] = name
	registry.objectTypeNames[name] = t
}

func lookupObjectType(name string) (types.ObjectType, bool) {
	registry.RLock()
	defer registry.RUnlock()
	t, ok := registry.objectTypeNames[name]
	return t, ok
}

// ObjectTypeName returns the registered name of t.
func ObjectTypeName(t types.ObjectType) string {
	registry.RLock()
	defer registry.RUnlock()
	if name, ok := registry.objectTypes[t]; ok {
		return name
	}
	return fmt.Sprintf("ObjectType(%d)", t)
}

// RegisterChainedStruct makes the concrete type of proto decodable as a chain
// node tagged proto.SType(). It panics on a non-struct type, the invalid tag or
// a tag already taken by another type.
func RegisterChainedStruct(proto ChainedStruct) {
	t := reflect.TypeOf(proto)
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("wire: chained struct %v must be a struct value", t))
	}
	tag := proto.SType()
	if tag == STypeInvalid {
		panic(fmt.Sprintf("wire: chained struct %v uses the invalid sType", t))
	}
	registry.Lock()
	defer registry.Unlock()
	if prev, ok := registry.chained[tag]; ok && prev != t {
		panic(fmt.Sprintf("wire: sType %d registered for both %v and %v", tag, prev, t))
	}
	registry.chained[tag] = t
}

func lookupChainedStruct(tag types.SType) (reflect.Type, bool) {
	registry.RLock()
	defer registry.RUnlock()
	t, ok := registry.chained[tag]
	return t, ok
}
