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

// Package transfer moves the contents of mapped buffers between client and
// server without exposing pointers on the wire.
//
// Every mappable buffer pairs a client handle with a server handle. The
// client handle serializes creation metadata, from which the server service
// builds its companion. Data then flows as data updates: read handles carry
// server memory to the client after a map for reading completes, and write
// handles carry client memory to the server when the buffer is unmapped.
package transfer

// ReadHandle is the client end of a buffer mapped for reading.
type ReadHandle interface {
	SerializeCreateSize() uint64
	SerializeCreate(dst []byte)
	// DeserializeDataUpdate copies size bytes of src, produced by the server
	// handle, into the shadow memory at offset.
	DeserializeDataUpdate(src []byte, offset, size uint64) error
	// Data returns the shadow memory the client reads from.
	Data() []byte
	Close() error
}

// WriteHandle is the client end of a buffer mapped for writing.
type WriteHandle interface {
	SerializeCreateSize() uint64
	SerializeCreate(dst []byte)
	// SetTarget names the memory the client writes into. Handles that own
	// their memory ignore it.
	SetTarget(data []byte)
	SizeOfSerializeDataUpdate(offset, size uint64) uint64
	SerializeDataUpdate(dst []byte, offset, size uint64)
	// Data returns the memory the client writes into.
	Data() []byte
	Close() error
}

// ClientService creates the client end of handle pairs.
type ClientService interface {
	CreateReadHandle(size uint64) (ReadHandle, error)
	CreateWriteHandle(size uint64) (WriteHandle, error)
}

// ServerReadHandle is the server end of a read handle.
type ServerReadHandle interface {
	SizeOfSerializeDataUpdate(offset, size uint64) uint64
	// SerializeDataUpdate publishes size bytes of data, the mapped backend
	// range starting at offset, into dst.
	SerializeDataUpdate(data []byte, offset, size uint64, dst []byte) error
	Close() error
}

// ServerWriteHandle is the server end of a write handle.
type ServerWriteHandle interface {
	// SetTarget names the mapped backend memory updates are written to.
	SetTarget(data []byte)
	DeserializeDataUpdate(src []byte, offset, size uint64) error
	Close() error
}

// ServerService rebuilds server handles from client creation metadata.
type ServerService interface {
	DeserializeReadHandle(info []byte) (ServerReadHandle, error)
	DeserializeWriteHandle(info []byte) (ServerWriteHandle, error)
}
