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
	"math"
	"reflect"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
)

type scalarClass uint8

const (
	classBool scalarClass = iota
	classInt
	classUint
	classFloat
)

// scalar maps a native Go scalar onto its wire representation, which may be
// narrower than the native type but never wider.
type scalar struct {
	class      scalarClass
	size       int
	nativeSize int
}

var wireScalars = map[string]scalar{
	"bool":    {classBool, 1, 1},
	"int8":    {classInt, 1, 1},
	"int16":   {classInt, 2, 2},
	"int32":   {classInt, 4, 4},
	"int64":   {classInt, 8, 8},
	"uint8":   {classUint, 1, 1},
	"uint16":  {classUint, 2, 2},
	"uint32":  {classUint, 4, 4},
	"uint64":  {classUint, 8, 8},
	"float32": {classFloat, 4, 4},
	"float64": {classFloat, 8, 8},
}

func nativeScalar(t reflect.Type) (scalar, bool) {
	size := int(t.Size())
	switch t.Kind() {
	case reflect.Bool:
		return scalar{classBool, 1, 1}, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return scalar{classInt, size, size}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return scalar{classUint, size, size}, true
	case reflect.Float32, reflect.Float64:
		return scalar{classFloat, size, size}, true
	}
	return scalar{}, false
}

func (b *builder) scalar(t reflect.Type, name string, ft reflect.Type, as string) (scalar, error) {
	s, ok := nativeScalar(ft)
	if !ok {
		return scalar{}, b.fail(t, "%s of type %v is not a value", name, ft)
	}
	if as == "" {
		return s, nil
	}
	w, ok := wireScalars[as]
	if !ok {
		return scalar{}, b.fail(t, "%s uses unknown wire type %q", name, as)
	}
	if w.class != s.class {
		return scalar{}, b.fail(t, "%s of type %v cannot travel as %s", name, ft, as)
	}
	if w.size > s.nativeSize {
		return scalar{}, b.fail(t, "%s: wire type %s is wider than native %v", name, as, ft)
	}
	if w.class == classFloat && w.size != s.nativeSize {
		return scalar{}, b.fail(t, "%s: floats travel at native width", name)
	}
	w.nativeSize = s.nativeSize
	return w, nil
}

func putUint(dst []byte, x uint64, size int) {
	switch size {
	case 1:
		dst[0] = byte(x)
	case 2:
		binary.NativeEndian.PutUint16(dst, uint16(x))
	case 4:
		binary.NativeEndian.PutUint32(dst, uint32(x))
	default:
		binary.NativeEndian.PutUint64(dst, x)
	}
}

func getUint(src []byte, size int) uint64 {
	switch size {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(binary.NativeEndian.Uint16(src))
	case 4:
		return uint64(binary.NativeEndian.Uint32(src))
	default:
		return binary.NativeEndian.Uint64(src)
	}
}

// put encodes v, failing if the value does not fit a narrower wire type.
func (s scalar) put(dst []byte, v reflect.Value) error {
	switch s.class {
	case classBool:
		dst[0] = 0
		if v.Bool() {
			dst[0] = 1
		}
	case classInt:
		x := v.Int()
		if s.size < 8 {
			bits := uint(8 * s.size)
			if lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1; x < lo || x > hi {
				return common.FatalError("value %d of %v does not fit in %d wire bytes", x, v.Type(), s.size)
			}
		}
		putUint(dst, uint64(x), s.size)
	case classUint:
		x := v.Uint()
		if s.size < 8 && x>>(8*uint(s.size)) != 0 {
			return common.FatalError("value %d of %v does not fit in %d wire bytes", x, v.Type(), s.size)
		}
		putUint(dst, x, s.size)
	case classFloat:
		if s.size == 4 {
			putUint(dst, uint64(math.Float32bits(float32(v.Float()))), 4)
		} else {
			putUint(dst, math.Float64bits(v.Float()), 8)
		}
	}
	return nil
}

// get decodes src into v, widening with sign or zero extension.
func (s scalar) get(src []byte, v reflect.Value) {
	x := getUint(src, s.size)
	switch s.class {
	case classBool:
		v.SetBool(x != 0)
	case classInt:
		shift := 64 - 8*uint(s.size)
		v.SetInt(int64(x<<shift) >> shift)
	case classUint:
		v.SetUint(x)
	case classFloat:
		if s.size == 4 {
			v.SetFloat(float64(math.Float32frombits(uint32(x))))
		} else {
			v.SetFloat(math.Float64frombits(x))
		}
	}
}
