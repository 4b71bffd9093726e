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
	"reflect"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
)

// Object is whatever a side uses locally to stand for a remote object: a
// client-side proxy or a server-side backend handle.
type Object = any

// ObjectIdProvider translates local objects into wire ids while encoding.
type ObjectIdProvider interface {
	GetId(t types.ObjectType, obj Object) (types.ObjectID, error)
	// GetOptionalId maps a null object to the null id.
	GetOptionalId(t types.ObjectType, obj Object) (types.ObjectID, error)
}

// ObjectIdResolver translates wire ids back into local objects while
// decoding. Unknown ids are expected input, not programming errors.
type ObjectIdResolver interface {
	GetFromId(t types.ObjectType, id types.ObjectID) (Object, error)
	// GetOptionalFromId maps the null id to a nil object.
	GetOptionalFromId(t types.ObjectType, id types.ObjectID) (Object, error)
}

// IsNullObject reports whether obj is nil, including typed nil pointers held
// in an interface.
func IsNullObject(obj Object) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

type errorObjectIdProvider struct{}

func (errorObjectIdProvider) GetId(t types.ObjectType, _ Object) (types.ObjectID, error) {
	return types.NullObjectID, common.FatalError("no object id provider for %s", ObjectTypeName(t))
}

func (errorObjectIdProvider) GetOptionalId(t types.ObjectType, _ Object) (types.ObjectID, error) {
	return types.NullObjectID, common.FatalError("no object id provider for %s", ObjectTypeName(t))
}

type errorObjectIdResolver struct{}

func (errorObjectIdResolver) GetFromId(t types.ObjectType, id types.ObjectID) (Object, error) {
	return nil, common.FatalError("no object id resolver for %s %s", ObjectTypeName(t), types.ObjectIDToString(id))
}

func (errorObjectIdResolver) GetOptionalFromId(t types.ObjectType, id types.ObjectID) (Object, error) {
	return nil, common.FatalError("no object id resolver for %s %s", ObjectTypeName(t), types.ObjectIDToString(id))
}

// ErrorObjectIdProvider and ErrorObjectIdResolver fail every lookup. The
// codec uses them for records that are not expected to reference objects.
var (
	ErrorObjectIdProvider ObjectIdProvider = errorObjectIdProvider{}
	ErrorObjectIdResolver ObjectIdResolver = errorObjectIdResolver{}
)
