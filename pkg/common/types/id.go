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

package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ObjectID names a live object on the remote side. Zero is reserved for null.
type ObjectID = uint32

// ObjectGeneration distinguishes successive occupants of a reused id.
type ObjectGeneration = uint32

// CommandID selects the handler of a serialized command.
type CommandID = uint32

// SType tags an extension record in a chain.
type SType = uint32

// ObjectType enumerates the object kinds an id table is kept for.
type ObjectType = uint32

const NullObjectID ObjectID = 0

// ObjectHandle is the (id, generation) pair that names an object on creation.
type ObjectHandle struct {
	ID         ObjectID         `wire:"value"`
	Generation ObjectGeneration `wire:"value"`
}

func (h ObjectHandle) IsNull() bool {
	return h.ID == NullObjectID
}

func (h ObjectHandle) String() string {
	return fmt.Sprintf("%s@%d", ObjectIDToString(h.ID), h.Generation)
}

func ObjectIDToString(id ObjectID) string {
	return fmt.Sprintf("o%08x", id)
}

func ObjectIDFromString(id string) (ObjectID, error) {
	if !strings.HasPrefix(id, "o") {
		return NullObjectID, errors.Errorf("malformed object id %q", id)
	}
	v, err := strconv.ParseUint(id[1:], 16, 32)
	if err != nil {
		return NullObjectID, errors.Wrapf(err, "malformed object id %q", id)
	}
	return ObjectID(v), nil
}

func ObjectHandleFromString(handle string) (ObjectHandle, error) {
	id, gen, ok := strings.Cut(handle, "@")
	if !ok {
		return ObjectHandle{}, errors.Errorf("malformed object handle %q", handle)
	}
	oid, err := ObjectIDFromString(id)
	if err != nil {
		return ObjectHandle{}, err
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil {
		return ObjectHandle{}, errors.Wrapf(err, "malformed object handle %q", handle)
	}
	return ObjectHandle{ID: oid, Generation: ObjectGeneration(g)}, nil
}
