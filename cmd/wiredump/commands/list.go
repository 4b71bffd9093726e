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
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/v6d-io/v6d/go/wire/pkg/protocol"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

// NewListCmd prints the registered command ids of both directions.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the known commands and their ids",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"DIRECTION", "ID", "COMMAND"})
			for _, s := range []struct {
				direction string
				set       *wire.CommandSet
			}{
				{"client", protocol.Commands},
				{"server", protocol.ReturnCommands},
			} {
				for _, id := range s.set.IDs() {
					table.Append([]string{s.direction, strconv.FormatUint(uint64(id), 10), s.set.Name(id)})
				}
			}
			table.Render()
		},
	}
}
