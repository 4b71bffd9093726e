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
	"strconv"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
)

var RecordHeaders = []string{"FRAME", "INDEX", "ID", "COMMAND", "FIELDS"}

type printer interface {
	Add(rec Record) error
	Flush() error
}

func newPrinter(format string, out io.Writer) printer {
	if format == "table" {
		table := tablewriter.NewWriter(out)
		table.SetHeader(RecordHeaders)
		table.SetAutoWrapText(false)
		return &tablePrinter{table: table}
	}
	return &jsonPrinter{enc: json.NewEncoder(out)}
}

// jsonPrinter writes one json document per line.
type jsonPrinter struct {
	enc *json.Encoder
}

func (p *jsonPrinter) Add(rec Record) error {
	return errors.Wrap(p.enc.Encode(rec), "failed to marshal the record")
}

func (p *jsonPrinter) Flush() error {
	return nil
}

// tablePrinter renders the fields eagerly and the table on Flush.
type tablePrinter struct {
	table *tablewriter.Table
}

func (p *tablePrinter) Add(rec Record) error {
	fields, err := json.Marshal(rec.Command)
	if err != nil {
		return errors.Wrap(err, "failed to marshal the command")
	}
	p.table.Append([]string{
		strconv.Itoa(rec.Frame),
		strconv.Itoa(rec.Index),
		strconv.FormatUint(uint64(rec.ID), 10),
		rec.Name,
		string(fields),
	})
	return nil
}

func (p *tablePrinter) Flush() error {
	p.table.Render()
	return nil
}
