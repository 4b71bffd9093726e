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

// Package wire implements the command codec shared by both ends of the GPU
// wire protocol.
//
// Records are plain Go structs annotated with `wire` struct tags. The first
// time a record type is used its field descriptor is derived by reflection and
// cached; every later encode and decode walks that descriptor. A record is
// laid out as a fixed-size transfer block holding its value members, presence
// flags and string lengths, followed by trailing data for its chain, strings
// and arrays in that order.
//
// Decoding treats the source bytes as untrusted and possibly concurrently
// mutated: every transfer block is snapshotted into private memory before any
// field is extracted, and every trailing payload except data-only byte arrays
// is copied into memory handed out by a DeserializeAllocator.
//
// Any framing violation is reported as a common.KWireFatalError status. The
// only tolerated irregularity is an unknown chained struct tag, which decodes
// as an UnknownChainedStruct placeholder.
package wire
