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

//go:build linux

package transfer

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/log"
	"github.com/v6d-io/v6d/go/wire/pkg/common/memory"
)

// shmCreateInfoSize covers the segment id and its size.
const shmCreateInfoSize = 16 + 8

// ShmClientService backs every handle with a memfd segment shared with the
// server. Segment fds travel over the unix socket conn, ahead of the command
// that creates the buffer.
type ShmClientService struct {
	conn int
}

func NewShmClientService(conn int) *ShmClientService {
	return &ShmClientService{conn: conn}
}

func (s *ShmClientService) create(size uint64) (*shmClientHandle, error) {
	if size > common.DefaultMaxAllocationSize {
		return nil, common.Errorf(common.KNotEnoughMemory, "cannot share a buffer of %d bytes", size)
	}
	id := uuid.New()
	seg, err := memory.CreateSegment("wire-"+id.String(), size)
	if err != nil {
		return nil, common.Errorf(common.KIOError, "%v", err)
	}
	if err := memory.SendFileDescriptor(s.conn, seg.Fd, id[:]); err != nil {
		return nil, multierr.Append(common.Errorf(common.KConnectionError, "%v", err), seg.Close())
	}
	return &shmClientHandle{id: id, size: size, seg: seg}, nil
}

func (s *ShmClientService) CreateReadHandle(size uint64) (ReadHandle, error) {
	h, err := s.create(size)
	if err != nil {
		return nil, err
	}
	return &shmReadHandle{h}, nil
}

func (s *ShmClientService) CreateWriteHandle(size uint64) (WriteHandle, error) {
	h, err := s.create(size)
	if err != nil {
		return nil, err
	}
	return &shmWriteHandle{h}, nil
}

type shmClientHandle struct {
	id   uuid.UUID
	size uint64
	seg  *memory.Segment
}

func (h *shmClientHandle) SerializeCreateSize() uint64 {
	return shmCreateInfoSize
}

func (h *shmClientHandle) SerializeCreate(dst []byte) {
	copy(dst, h.id[:])
	binary.NativeEndian.PutUint64(dst[16:], h.size)
}

func (h *shmClientHandle) Data() []byte {
	return h.seg.Data
}

func (h *shmClientHandle) Close() error {
	return h.seg.Close()
}

type shmReadHandle struct {
	*shmClientHandle
}

// DeserializeDataUpdate only validates the range; the server already wrote
// the data into the shared segment.
func (h *shmReadHandle) DeserializeDataUpdate(src []byte, offset, size uint64) error {
	if len(src) != 0 {
		return common.FatalError("shared read update carries %d inline bytes", len(src))
	}
	return checkRange("read update", offset, size, h.size)
}

type shmWriteHandle struct {
	*shmClientHandle
}

func (h *shmWriteHandle) SetTarget([]byte) {}

func (h *shmWriteHandle) SizeOfSerializeDataUpdate(_, _ uint64) uint64 {
	return 0
}

func (h *shmWriteHandle) SerializeDataUpdate([]byte, uint64, uint64) {}

// ShmServerService maps the segments a ShmClientService shares over conn.
type ShmServerService struct {
	conn int

	mu      sync.Mutex
	pending map[uuid.UUID]int
}

func NewShmServerService(conn int) *ShmServerService {
	return &ShmServerService{conn: conn, pending: map[uuid.UUID]int{}}
}

// segment maps the segment named by info, receiving fds from the client until
// the one it names arrives.
func (s *ShmServerService) segment(info []byte) (*memory.Segment, error) {
	if len(info) != shmCreateInfoSize {
		return nil, common.FatalError("shared handle metadata has %d bytes, %d expected", len(info), shmCreateInfoSize)
	}
	id, err := uuid.FromBytes(info[:16])
	if err != nil {
		return nil, common.FatalError("malformed segment id: %v", err)
	}
	size := binary.NativeEndian.Uint64(info[16:])
	if size > common.DefaultMaxAllocationSize {
		return nil, common.FatalError("shared segment of %d bytes is too large", size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if fd, ok := s.pending[id]; ok {
			delete(s.pending, id)
			seg, err := memory.MapSegment(fd, size)
			if err != nil {
				_ = unix.Close(fd)
				return nil, common.FatalError("mapping segment %s: %v", id, err)
			}
			return seg, nil
		}
		fd, payload, err := memory.RecvFileDescriptor(s.conn, 16)
		if err != nil {
			return nil, common.Errorf(common.KConnectionError, "receiving segment %s: %v", id, err)
		}
		got, err := uuid.FromBytes(payload)
		if err != nil {
			_ = unix.Close(fd)
			return nil, common.FatalError("malformed segment id: %v", err)
		}
		log.V(1).Info("received shared segment", "segment", got.String())
		s.pending[got] = fd
	}
}

func (s *ShmServerService) DeserializeReadHandle(info []byte) (ServerReadHandle, error) {
	seg, err := s.segment(info)
	if err != nil {
		return nil, err
	}
	return &shmServerReadHandle{seg: seg}, nil
}

func (s *ShmServerService) DeserializeWriteHandle(info []byte) (ServerWriteHandle, error) {
	seg, err := s.segment(info)
	if err != nil {
		return nil, err
	}
	return &shmServerWriteHandle{seg: seg}, nil
}

// Close releases fds that were received but never claimed.
func (s *ShmServerService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	for id, fd := range s.pending {
		err = multierr.Append(err, unix.Close(fd))
		delete(s.pending, id)
	}
	return err
}

type shmServerReadHandle struct {
	seg *memory.Segment
}

func (h *shmServerReadHandle) SizeOfSerializeDataUpdate(_, _ uint64) uint64 {
	return 0
}

func (h *shmServerReadHandle) SerializeDataUpdate(data []byte, offset, size uint64, _ []byte) error {
	if uint64(len(data)) < size {
		return common.Errorf(common.KInvalid, "read update of %d bytes from a %d byte range", size, len(data))
	}
	if err := checkRange("read update", offset, size, uint64(len(h.seg.Data))); err != nil {
		return err
	}
	copy(h.seg.Data[offset:], data[:size])
	return nil
}

func (h *shmServerReadHandle) Close() error {
	return h.seg.Close()
}

type shmServerWriteHandle struct {
	seg    *memory.Segment
	target []byte
}

func (h *shmServerWriteHandle) SetTarget(data []byte) {
	h.target = data
}

// DeserializeDataUpdate copies the range out of the shared segment once.
func (h *shmServerWriteHandle) DeserializeDataUpdate(src []byte, offset, size uint64) error {
	if len(src) != 0 {
		return common.FatalError("shared write update carries %d inline bytes", len(src))
	}
	if h.target == nil {
		return common.FatalError("write update with no mapped target")
	}
	if err := checkRange("write update", offset, size, uint64(len(h.seg.Data))); err != nil {
		return err
	}
	if err := checkRange("write update", offset, size, uint64(len(h.target))); err != nil {
		return err
	}
	copy(h.target[offset:offset+size], memory.Slice(h.seg.Data, offset, size))
	return nil
}

func (h *shmServerWriteHandle) Close() error {
	h.target = nil
	return h.seg.Close()
}
