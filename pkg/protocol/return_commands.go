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
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
)

const (
	BufferMapAsyncCallback types.CommandID = iota + 1
	DeviceUncapturedErrorCallback
	DeviceLoggingCallback
)

// Return commands name objects by handle: the object may be gone on the
// client by the time the command arrives.

// BufferMapAsyncCallbackCmd completes the map request RequestSerial. For a
// successful read mapping it carries the read handle's data update.
type BufferMapAsyncCallbackCmd struct {
	Buffer                   types.ObjectHandle
	RequestSerial            uint64
	Status                   MapAsyncStatus
	ReadDataUpdateInfoLength uint64
	Message                  string `wire:"strlen"`
	ReadDataUpdateInfo       []byte `wire:"array,len=ReadDataUpdateInfoLength,dataonly"`
}

func (BufferMapAsyncCallbackCmd) CommandID() types.CommandID { return BufferMapAsyncCallback }

type DeviceUncapturedErrorCallbackCmd struct {
	Device  types.ObjectHandle
	Type    ErrorType
	Message string `wire:"strlen"`
}

func (DeviceUncapturedErrorCallbackCmd) CommandID() types.CommandID {
	return DeviceUncapturedErrorCallback
}

type DeviceLoggingCallbackCmd struct {
	Device  types.ObjectHandle
	Type    LoggingType
	Message string `wire:"strlen"`
}

func (DeviceLoggingCallbackCmd) CommandID() types.CommandID { return DeviceLoggingCallback }
