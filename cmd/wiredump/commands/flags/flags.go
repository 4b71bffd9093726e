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

// Package flags holds the command line flags of wiredump.
package flags

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

// Verbose is the log verbosity of every command
var Verbose int

// Direction selects the command set: "client" for commands sent to the
// server, "server" for return commands.
var Direction string

// Framed means the input is a sequence of length-prefixed frames as written
// by a stream serializer, rather than bare commands.
var Framed bool

// Output is the output format, json or table
var Output string

// MaxFrameSize bounds a single frame of framed input
var MaxFrameSize uint64

var (
	ValidDirections    = []string{"client", "server"}
	ValidOutputFormats = []string{"json", "table"}
)

func ApplyGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		IntVarP(&Verbose, "verbose", "v", 0, "log verbosity, higher values print more")
}

// DecodeFlags returns the flags of the decode command.
func DecodeFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	fs.StringVarP(&Direction, "direction", "d", "client",
		"which side produced the stream: client or server")
	fs.BoolVar(&Framed, "framed", false,
		"the input is a sequence of length-prefixed frames")
	fs.StringVarP(&Output, "output", "o", "json", "the output format: json or table")
	fs.Uint64Var(&MaxFrameSize, "max-frame-size", wire.DefaultMaxCommandBufferSize,
		"the largest frame accepted from framed input")
	return fs
}

func oneOf(name, value string, valid []string) error {
	for _, v := range valid {
		if v == value {
			return nil
		}
	}
	return errors.Errorf("invalid %s %q, expected one of %v", name, value, valid)
}

// ValidateDecodeFlags checks the values given to the decode command.
func ValidateDecodeFlags() error {
	if err := oneOf("direction", Direction, ValidDirections); err != nil {
		return err
	}
	if err := oneOf("output format", Output, ValidOutputFormats); err != nil {
		return err
	}
	if MaxFrameSize == 0 {
		return errors.New("max-frame-size must be positive")
	}
	return nil
}
