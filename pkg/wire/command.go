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
	"encoding/binary"
	"fmt"
	"reflect"
	"sort"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
)

// Command is a record that travels on its own, prefixed by the envelope
// {commandSize uint64, commandId uint32}.
type Command interface {
	CommandID() types.CommandID
}

// CommandHeaderSize is the size of the envelope prefix every command starts
// with.
const CommandHeaderSize = common.CommandSizeBytes + common.CommandIDBytes

func commandInfo(cmd Command) (*recordInfo, reflect.Value, error) {
	if cmd == nil {
		return nil, reflect.Value{}, common.FatalError("null command")
	}
	v := reflect.ValueOf(cmd)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, reflect.Value{}, common.FatalError("null command %T", cmd)
		}
		v = v.Elem()
	}
	ri, err := describe(v.Type())
	if err != nil {
		return nil, reflect.Value{}, err
	}
	if !ri.isCommand {
		return nil, reflect.Value{}, common.FatalError("%v is not a command", v.Type())
	}
	return ri, v, nil
}

// GetRequiredSize returns the number of bytes cmd occupies on the wire.
func GetRequiredSize(cmd Command) (uint64, error) {
	ri, v, err := commandInfo(cmd)
	if err != nil {
		return 0, err
	}
	extra, err := ri.extraSize(v)
	if err != nil {
		return 0, err
	}
	return addSize(uint64(WireAlignSizeof(ri.size)), extra)
}

// SerializeCommand encodes a command that references no objects.
func SerializeCommand(cmd Command, commandSize uint64, buf *SerializeBuffer) error {
	return SerializeCommandWithProvider(cmd, commandSize, buf, ErrorObjectIdProvider)
}

// SerializeCommandWithProvider encodes cmd into buf, stamping commandSize,
// normally the result of GetRequiredSize, at offset 0.
func SerializeCommandWithProvider(cmd Command, commandSize uint64, buf *SerializeBuffer, provider ObjectIdProvider) error {
	ri, v, err := commandInfo(cmd)
	if err != nil {
		return err
	}
	tr, err := buf.Next(ri.size)
	if err != nil {
		return err
	}
	binary.NativeEndian.PutUint64(tr, commandSize)
	binary.NativeEndian.PutUint32(tr[common.CommandSizeBytes:], cmd.CommandID())
	return ri.serialize(tr, v, buf, provider)
}

// DeserializeCommand decodes a command that references no objects.
func DeserializeCommand(cmd Command, dbuf *DeserializeBuffer, alloc DeserializeAllocator) error {
	return DeserializeCommandWithResolver(cmd, dbuf, alloc, ErrorObjectIdResolver)
}

// DeserializeCommandWithResolver decodes into cmd, which must be a pointer to
// the command struct. On failure the contents of cmd are unspecified.
func DeserializeCommandWithResolver(cmd Command, dbuf *DeserializeBuffer, alloc DeserializeAllocator, resolver ObjectIdResolver) error {
	if v := reflect.ValueOf(cmd); v.Kind() != reflect.Pointer {
		return common.FatalError("decoding into non-pointer %T", cmd)
	}
	ri, v, err := commandInfo(cmd)
	if err != nil {
		return err
	}
	tr, err := dbuf.Read(ri.size)
	if err != nil {
		return err
	}
	if id := binary.NativeEndian.Uint32(tr[common.CommandSizeBytes:]); id != cmd.CommandID() {
		return common.FatalError("expected command %d, got %d", cmd.CommandID(), id)
	}
	return ri.deserialize(tr, v, dbuf, alloc, resolver)
}

// Encode serializes cmd into a freshly allocated buffer.
func Encode(cmd Command, provider ObjectIdProvider) ([]byte, error) {
	size, err := GetRequiredSize(cmd)
	if err != nil {
		return nil, err
	}
	buf := NewSerializeBuffer(make([]byte, size))
	if err := SerializeCommandWithProvider(cmd, size, buf, provider); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func recordValue(record any) (*recordInfo, reflect.Value, error) {
	v := reflect.ValueOf(record)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, reflect.Value{}, common.FatalError("%T is not a record", record)
	}
	ri, err := describe(v.Type())
	if err != nil {
		return nil, reflect.Value{}, err
	}
	if ri.isCommand || ri.isChained {
		return nil, reflect.Value{}, common.FatalError("%v must be encoded through its envelope", v.Type())
	}
	return ri, v, nil
}

// GetExtraRequiredSize returns the trailing bytes record needs beyond its
// transfer block.
func GetExtraRequiredSize(record any) (uint64, error) {
	ri, v, err := recordValue(record)
	if err != nil {
		return 0, err
	}
	return ri.extraSize(v)
}

// TransferSize returns the size of the transfer block of a record or command.
func TransferSize(record any) (int, error) {
	v := reflect.ValueOf(record)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	ri, err := describe(v.Type())
	if err != nil {
		return 0, err
	}
	return ri.size, nil
}

// SerializeRecord reserves the transfer block of a standalone structure and
// encodes it with its trailing data.
func SerializeRecord(record any, buf *SerializeBuffer, provider ObjectIdProvider) error {
	ri, v, err := recordValue(record)
	if err != nil {
		return err
	}
	tr, err := buf.Next(ri.size)
	if err != nil {
		return err
	}
	return ri.serialize(tr, v, buf, provider)
}

// DeserializeRecord decodes a standalone structure into the struct record
// points to.
func DeserializeRecord(record any, dbuf *DeserializeBuffer, alloc DeserializeAllocator, resolver ObjectIdResolver) error {
	if v := reflect.ValueOf(record); v.Kind() != reflect.Pointer || v.IsNil() {
		return common.FatalError("decoding into non-pointer %T", record)
	}
	ri, v, err := recordValue(record)
	if err != nil {
		return err
	}
	tr, err := dbuf.Read(ri.size)
	if err != nil {
		return err
	}
	return ri.deserialize(tr, v, dbuf, alloc, resolver)
}

// CommandSet maps command ids to constructors for one direction of the
// protocol.
type CommandSet struct {
	name  string
	ctors map[types.CommandID]func() Command
	names map[types.CommandID]string
}

func NewCommandSet(name string) *CommandSet {
	return &CommandSet{
		name:  name,
		ctors: map[types.CommandID]func() Command{},
		names: map[types.CommandID]string{},
	}
}

// Register adds the command produced by ctor, which must return a pointer to
// a fresh command struct. It panics on duplicate ids or invalid records.
func (s *CommandSet) Register(ctor func() Command) {
	cmd := ctor()
	if _, _, err := commandInfo(cmd); err != nil {
		panic(err)
	}
	id := cmd.CommandID()
	if _, ok := s.ctors[id]; ok {
		panic(fmt.Sprintf("wire: command %d registered twice in %s", id, s.name))
	}
	s.ctors[id] = ctor
	s.names[id] = reflect.TypeOf(cmd).Elem().Name()
}

// New returns a fresh command for id, or nil if id is unknown.
func (s *CommandSet) New(id types.CommandID) Command {
	if ctor, ok := s.ctors[id]; ok {
		return ctor()
	}
	return nil
}

func (s *CommandSet) Name(id types.CommandID) string {
	if name, ok := s.names[id]; ok {
		return name
	}
	return fmt.Sprintf("%s(%d)", s.name, id)
}

// IDs lists the registered ids in increasing order.
func (s *CommandSet) IDs() []types.CommandID {
	ids := make([]types.CommandID, 0, len(s.ctors))
	for id := range s.ctors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HandleCommands splits data into commands using only their envelope, decodes
// each one and passes it to fn, stopping at the first error.
func HandleCommands(set *CommandSet, data []byte, alloc DeserializeAllocator, resolver ObjectIdResolver, fn func(Command) error) error {
	for len(data) > 0 {
		if len(data) < CommandHeaderSize {
			return common.FatalError("%d trailing bytes are shorter than a command header", len(data))
		}
		size := binary.NativeEndian.Uint64(data)
		if size < CommandHeaderSize || size > uint64(len(data)) {
			return common.FatalError("command size %d out of range, %d bytes left", size, len(data))
		}
		id := binary.NativeEndian.Uint32(data[common.CommandSizeBytes:])
		cmd := set.New(id)
		if cmd == nil {
			return common.FatalError("unknown command %d in %s", id, set.name)
		}
		if err := DeserializeCommandWithResolver(cmd, NewDeserializeBuffer(data[:size]), alloc, resolver); err != nil {
			return err
		}
		if err := fn(cmd); err != nil {
			return err
		}
		data = data[size:]
	}
	return nil
}
