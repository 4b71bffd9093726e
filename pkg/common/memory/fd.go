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

package memory

import (
	"context"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/v6d-io/v6d/go/wire/pkg/common/log"
)

// SendFileDescriptor passes fd over the unix socket conn, together with a
// small payload the peer uses to identify it.
func SendFileDescriptor(conn int, fd int, payload []byte) error {
	rights := syscall.UnixRights(fd)
	for {
		err := syscall.Sendmsg(conn, payload, rights, nil, 0)
		if err == syscall.EAGAIN || err == syscall.EINTR {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "Error in send_fd")
		}
		return nil
	}
}

// RecvFileDescriptor receives one fd sent by SendFileDescriptor and the
// payload accompanying it. payloadSize bounds the payload length.
func RecvFileDescriptor(conn int, payloadSize int) (int, []byte, error) {
	logger := log.FromContext(context.TODO())
	var n, oobn int
	var err error
	payload := make([]byte, payloadSize)
	oob := make([]byte, syscall.CmsgSpace(int(unsafe.Sizeof(int32(0)))))
	for {
		n, oobn, _, _, err = syscall.Recvmsg(conn, payload, oob, 0)
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || err == syscall.EINTR {
				continue
			} else {
				logger.Error(err, "Error in recv_fd")
				return -1, nil, errors.Wrapf(err, "Error in recv_fd")
			}
		} else {
			break
		}
	}
	messages, err := syscall.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return -1, nil, err
	}
	for _, scm := range messages {
		fds, err := syscall.ParseUnixRights(&scm)
		if err != nil {
			continue
		}
		if len(fds) > 0 {
			return fds[0], payload[:n], nil
		}
	}
	return -1, nil, errors.Errorf("Failed to recv fd from remote peer")
}

// Segment is a shared memory region backed by an anonymous memfd.
type Segment struct {
	Fd   int
	Data []byte
}

// CreateSegment allocates a memfd of the given size and maps it read-write.
func CreateSegment(name string, size uint64) (*Segment, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create memfd %s", name)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrapf(err, "failed to resize memfd %s to %d", name, size)
	}
	return MapSegment(fd, size)
}

// MapSegment maps an existing shared memory fd. On success the segment owns fd.
func MapSegment(fd int, size uint64) (*Segment, error) {
	if size == 0 {
		return &Segment{Fd: fd}, nil
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, errors.Wrapf(err, "failed to stat fd %d", fd)
	}
	if st.Size < 0 || uint64(st.Size) < size {
		return nil, errors.Errorf("segment of fd %d holds %d bytes, %d required", fd, st.Size, size)
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap fd %d", fd)
	}
	return &Segment{Fd: fd, Data: data}, nil
}

func (s *Segment) Close() error {
	var err error
	if s.Data != nil {
		err = unix.Munmap(s.Data)
		s.Data = nil
	}
	if s.Fd >= 0 {
		if cerr := unix.Close(s.Fd); err == nil {
			err = cerr
		}
		s.Fd = -1
	}
	return err
}
