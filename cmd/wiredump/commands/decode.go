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

package commands

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/v6d-io/v6d/go/wire/cmd/wiredump/commands/flags"
	"github.com/v6d-io/v6d/go/wire/cmd/wiredump/commands/util"
	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/protocol"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"

	wireio "github.com/v6d-io/v6d/go/wire/pkg/client/io"
)

var decodeExample = util.Examples(`
	# Decode a capture of the frames a client sent, as json lines
	wiredump decode --framed client.bin

	# Decode bare return commands from stdin as a table
	cat returns.bin | wiredump decode -d server -o table -`)

// NewDecodeCmd decodes a file, or stdin when the argument is "-" or missing.
func NewDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decode [file]",
		Short:   "Decode a captured command stream",
		Example: decodeExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.ValidateDecodeFlags(); err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "failed to open the capture")
				}
				defer f.Close()
				in = f
			}
			return decode(in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().AddFlagSet(flags.DecodeFlags())
	return cmd
}

func commandSet(direction string) *wire.CommandSet {
	if direction == "server" {
		return protocol.ReturnCommands
	}
	return protocol.Commands
}

func decode(in io.Reader, out io.Writer) error {
	p := newPrinter(flags.Output, out)
	d := NewDecoder(commandSet(flags.Direction), flags.Framed, flags.MaxFrameSize)
	if err := d.Decode(in, p.Add); err != nil {
		return err
	}
	return p.Flush()
}

// ObjectRef stands in for an object referenced by a decoded command.
type ObjectRef struct {
	Type string         `json:"type"`
	ID   types.ObjectID `json:"id"`
}

func (r ObjectRef) String() string {
	return r.Type + types.ObjectIDToString(r.ID)
}

// refResolver resolves every id to an ObjectRef, there being no live objects
// behind a capture.
type refResolver struct{}

func (refResolver) GetFromId(t types.ObjectType, id types.ObjectID) (wire.Object, error) {
	if id == types.NullObjectID {
		return nil, common.FatalError("required %s is null", wire.ObjectTypeName(t))
	}
	return ObjectRef{Type: wire.ObjectTypeName(t), ID: id}, nil
}

func (r refResolver) GetOptionalFromId(t types.ObjectType, id types.ObjectID) (wire.Object, error) {
	if id == types.NullObjectID {
		return nil, nil
	}
	return r.GetFromId(t, id)
}

// Record is one decoded command. Frame is 0 for unframed input.
type Record struct {
	Frame   int             `json:"frame"`
	Index   int             `json:"index"`
	ID      types.CommandID `json:"id"`
	Name    string          `json:"name"`
	Command wire.Command    `json:"command"`
}

// Decoder splits a capture into commands.
type Decoder struct {
	set          *wire.CommandSet
	framed       bool
	maxFrameSize uint64
	alloc        *wire.ArenaAllocator
}

func NewDecoder(set *wire.CommandSet, framed bool, maxFrameSize uint64) *Decoder {
	return &Decoder{
		set:          set,
		framed:       framed,
		maxFrameSize: maxFrameSize,
		alloc:        wire.NewArenaAllocator(nil, 0),
	}
}

// Decode passes every command of r to fn. A Record is only valid during the
// call to fn: its command may point into memory reused by the next frame.
func (d *Decoder) Decode(r io.Reader, fn func(Record) error) error {
	if !d.framed {
		data, err := io.ReadAll(r)
		if err != nil {
			return errors.Wrap(err, "failed to read the capture")
		}
		return d.decodeFrame(0, data, fn)
	}
	for frame := 0; ; frame++ {
		data, err := wireio.RecvFrame(r, d.maxFrameSize)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "frame %d", frame)
		}
		if err := d.decodeFrame(frame, data, fn); err != nil {
			return errors.Wrapf(err, "frame %d", frame)
		}
	}
}

func (d *Decoder) decodeFrame(frame int, data []byte, fn func(Record) error) error {
	defer d.alloc.Reset()
	index := 0
	return wire.HandleCommands(d.set, data, d.alloc, refResolver{}, func(cmd wire.Command) error {
		id := cmd.CommandID()
		rec := Record{Frame: frame, Index: index, ID: id, Name: d.set.Name(id), Command: cmd}
		index++
		return fn(rec)
	})
}
