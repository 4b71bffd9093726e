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

package protocol

import (
	"github.com/gogpu/gputypes"

	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
	"github.com/v6d-io/v6d/go/wire/pkg/wire"
)

// Label returns a label for an optional descriptor label.
func Label(s string) *string {
	return &s
}

type BufferDescriptor struct {
	Label            *string `wire:"strlen,optional"`
	Usage            gputypes.BufferUsage
	Size             uint64
	MappedAtCreation bool
}

type TextureDescriptor struct {
	Label           *string `wire:"strlen,optional"`
	Usage           gputypes.TextureUsage
	Dimension       gputypes.TextureDimension
	Size            Extent3D
	Format          gputypes.TextureFormat
	MipLevelCount   uint32
	SampleCount     uint32
	ViewFormatCount uint64
	ViewFormats     []gputypes.TextureFormat `wire:"array,len=ViewFormatCount"`
}

type Extent3D struct {
	Width              uint32
	Height             uint32
	DepthOrArrayLayers uint32
}

func ExtentFrom(e gputypes.Extent3D) Extent3D {
	return Extent3D{Width: e.Width, Height: e.Height, DepthOrArrayLayers: e.DepthOrArrayLayers}
}

func (e Extent3D) GPU() gputypes.Extent3D {
	return gputypes.Extent3D{Width: e.Width, Height: e.Height, DepthOrArrayLayers: e.DepthOrArrayLayers}
}

// ShaderModuleDescriptor carries its source as a chained struct.
type ShaderModuleDescriptor struct {
	NextInChain []wire.ChainedStruct `wire:"chain"`
	Label       *string              `wire:"strlen,optional"`
}

type ShaderSourceWGSL struct {
	Code string `wire:"strlen"`
}

func (ShaderSourceWGSL) SType() types.SType { return STypeShaderSourceWGSL }

type ShaderSourceSPIRV struct {
	CodeSize uint32
	Code     []uint32 `wire:"array,len=CodeSize"`
}

func (ShaderSourceSPIRV) SType() types.SType { return STypeShaderSourceSPIRV }

// Shader stages a binding is visible to.
const (
	ShaderStageVertex uint32 = 1 << iota
	ShaderStageFragment
	ShaderStageCompute
)

// Buffer binding types.
const (
	BufferBindingTypeUndefined uint32 = iota
	BufferBindingTypeUniform
	BufferBindingTypeStorage
	BufferBindingTypeReadOnlyStorage
)

type BindGroupLayoutEntry struct {
	Binding          uint32
	Visibility       uint32
	BufferType       uint32
	HasDynamicOffset bool
	MinBindingSize   uint64
}

type BindGroupLayoutDescriptor struct {
	Label      *string `wire:"strlen,optional"`
	EntryCount uint64
	Entries    []BindGroupLayoutEntry `wire:"array,len=EntryCount"`
}

type BindGroupEntry struct {
	Binding uint32
	Buffer  wire.Object `wire:"object,type=Buffer,optional"`
	Offset  uint64
	Size    uint64
}

type BindGroupDescriptor struct {
	Label      *string     `wire:"strlen,optional"`
	Layout     wire.Object `wire:"object,type=BindGroupLayout"`
	EntryCount uint64
	Entries    []BindGroupEntry `wire:"array,len=EntryCount"`
}

// MapAsyncStatus reports how a map request completed.
type MapAsyncStatus uint32

const (
	MapAsyncStatusSuccess MapAsyncStatus = iota + 1
	MapAsyncStatusError
	MapAsyncStatusAborted
	MapAsyncStatusDestroyedBeforeCallback
	MapAsyncStatusUnmappedBeforeCallback
)

func (s MapAsyncStatus) String() string {
	switch s {
	case MapAsyncStatusSuccess:
		return "Success"
	case MapAsyncStatusError:
		return "Error"
	case MapAsyncStatusAborted:
		return "Aborted"
	case MapAsyncStatusDestroyedBeforeCallback:
		return "DestroyedBeforeCallback"
	case MapAsyncStatusUnmappedBeforeCallback:
		return "UnmappedBeforeCallback"
	}
	return "Unknown"
}

type ErrorType uint32

const (
	ErrorTypeNoError ErrorType = iota
	ErrorTypeValidation
	ErrorTypeOutOfMemory
	ErrorTypeInternal
	ErrorTypeUnknown
	ErrorTypeDeviceLost
)

type LoggingType uint32

const (
	LoggingTypeVerbose LoggingType = iota
	LoggingTypeInfo
	LoggingTypeWarning
	LoggingTypeError
)
