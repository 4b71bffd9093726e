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

package common

import "fmt"

const (
	WIRE_VERSION_MAJOR = 0
	WIRE_VERSION_MINOR = 3
	WIRE_VERSION_PATCH = 0

	WIRE_VERSION = ((WIRE_VERSION_MAJOR*1000)+WIRE_VERSION_MINOR)*1000 +
		WIRE_VERSION_PATCH
)

var WIRE_VERSION_STRING = fmt.Sprintf(
	"%d.%d.%d",
	WIRE_VERSION_MAJOR,
	WIRE_VERSION_MINOR,
	WIRE_VERSION_PATCH,
)

// Both peers must agree on these out of band; they are part of the wire format.
const (
	// WireAlignment is the unit every reserved slot is padded to.
	WireAlignment = 8

	// CommandSizeBytes is the width of the size field at offset 0 of every command.
	CommandSizeBytes = 8

	// CommandIDBytes is the width of the command id following the size field.
	CommandIDBytes = 4

	// ObjectIDBytes is the width of an object id on the wire.
	ObjectIDBytes = 4

	// DefaultMaxAllocationSize bounds the memory a single decode may allocate.
	DefaultMaxAllocationSize = 1 << 30
)
