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

package util

import (
	"strings"
)

var Indentation = "  "

// LongDesc trims the surrounding blank lines of a long description.
func LongDesc(long string) string {
	return strings.TrimSpace(long)
}

// Examples re-indents an example block written with leading tabs, one level
// of Indentation per tab.
func Examples(examples string) string {
	lines := strings.Split(strings.TrimSpace(examples), "\n")
	for i, line := range lines {
		depth := len(line) - len(strings.TrimLeft(line, "\t"))
		if i == 0 {
			depth++
		}
		lines[i] = strings.Repeat(Indentation, depth) + strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}
