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

// Package commands implements the wiredump command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/v6d-io/v6d/go/wire/cmd/wiredump/commands/flags"
	"github.com/v6d-io/v6d/go/wire/cmd/wiredump/commands/util"
	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/log"
)

var rootLong = util.LongDesc(`
	wiredump inspects captured GPU wire protocol traffic. It decodes
	the commands a client sent, or the return commands a server sent
	back, and prints them one per record.`)

// NewRootCmd builds the wiredump command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "wiredump [command]",
		Version:      common.WIRE_VERSION_STRING,
		Short:        "wiredump decodes captured GPU wire protocol streams",
		Long:         rootLong,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetLogLevel(flags.Verbose)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	flags.ApplyGlobalFlags(cmd)

	cmd.AddCommand(NewDecodeCmd())
	cmd.AddCommand(NewListCmd())
	return cmd
}
