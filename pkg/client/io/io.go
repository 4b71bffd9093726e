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


package io

import (
	"context"
	"encoding/binary"
	goio "io"
	"net"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/log"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

const (
	kNumConnectAttempts = 10
	kConnectTimeoutMs   = 1000
	kFrameHeaderSize    = 8
)

func connectOptions(endpoint string, opts []retry.Option) []retry.Option {
	defaults := []retry.Option{
		retry.Attempts(kNumConnectAttempts),
		retry.Delay(kConnectTimeoutMs * time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Infof("Connecting to %s failed with error %s, retry %d", endpoint, err, n+1)
		}),
	}
	return append(defaults, opts...)
}

// ConnectIPCSocketRetry dials the unix socket at pathname, retrying while the
// server is not up yet. opts override the default retry policy.
func ConnectIPCSocketRetry(pathname string, opts ...retry.Option) (*net.UnixConn, error) {
	var conn *net.UnixConn
	err := retry.Do(func() error {
		var err error
		conn, err = ConnectIPCSocket(pathname)
		return err
	}, connectOptions(pathname, opts)...)
	if err != nil {
		return nil, common.Errorf(common.KConnectionFailed, "connecting to %s: %v", pathname, err)
	}
	return conn, nil
}

func ConnectIPCSocket(pathname string) (*net.UnixConn, error) {
	addr, err := net.ResolveUnixAddr("unix", pathname)
	if err != nil {
		return nil, err
	}
	return net.DialUnix("unix", nil, addr)
}

func ConnectRPCSocket(host string, port uint16) (net.Conn, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", host+":"+strconv.Itoa(int(port)))
	if err != nil {
		return nil, err
	}
	return net.DialTCP("tcp", nil, tcpAddr)
}

func ConnectRPCSocketRetry(host string, port uint16, opts ...retry.Option) (net.Conn, error) {
	var conn net.Conn
	endpoint := host + ":" + strconv.Itoa(int(port))
	err := retry.Do(func() error {
		var err error
		conn, err = ConnectRPCSocket(host, port)
		return err
	}, connectOptions(endpoint, opts)...)
	if err != nil {
		return nil, common.Errorf(common.KConnectionFailed, "connecting to %s: %v", endpoint, err)
	}
	return conn, nil
}

// SendFrame writes data prefixed with its length.
func SendFrame(w goio.Writer, data []byte) error {
	var header [kFrameHeaderSize]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrapf(err, "send frame header failed")
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, "send frame failed")
	}
	return nil
}

// RecvFrame reads one frame, rejecting frames longer than maxSize before
// allocating for them. It returns io.EOF if the stream ended cleanly between
// frames.
func RecvFrame(r goio.Reader, maxSize uint64) ([]byte, error) {
	var header [kFrameHeaderSize]byte
	if _, err := goio.ReadFull(r, header[:]); err != nil {
		if err == goio.EOF {
			return nil, err
		}
		return nil, errors.Wrapf(err, "receive frame header failed")
	}
	length := binary.LittleEndian.Uint64(header[:])
	if length > maxSize {
		return nil, common.FatalError("frame of %d bytes exceeds the limit of %d", length, maxSize)
	}
	data := make([]byte, length)
	if _, err := goio.ReadFull(r, data); err != nil {
		return nil, errors.Wrapf(err, "receive frame failed")
	}
	return data, nil
}

// frameWriter ships every flushed batch of commands as one frame.
type frameWriter struct {
	conn net.Conn
}

func (w frameWriter) HandleCommands(data []byte) error {
	return SendFrame(w.conn, data)
}

// NewStreamSerializer returns a command serializer whose Flush sends the
// buffered commands over conn as one frame. maxSize bounds a frame, 0 selects
// wire.DefaultMaxCommandBufferSize.
func NewStreamSerializer(conn net.Conn, maxSize uint64) *wire.CommandBuffer {
	return wire.NewCommandBuffer(frameWriter{conn: conn}, maxSize)
}

// Serve feeds the frames arriving on conn to handler until the peer hangs up,
// handler fails or ctx is cancelled. A clean hang-up returns nil.
func Serve(ctx context.Context, conn net.Conn, handler wire.CommandHandler, maxSize uint64) error {
	if maxSize == 0 {
		maxSize = wire.DefaultMaxCommandBufferSize
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	for {
		frame, err := RecvFrame(conn, maxSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == goio.EOF {
				return nil
			}
			return err
		}
		if err := handler.HandleCommands(frame); err != nil {
			log.FromContext(ctx).Error(err, "handling commands failed", "frame", len(frame))
			return err
		}
	}
}
