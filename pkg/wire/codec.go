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
	"math/bits"
	"reflect"
	"unsafe"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/memory"
)

func addSize(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 || sum > math.MaxInt {
		return 0, common.FatalError("required size overflows")
	}
	return sum, nil
}

// count returns the number of elements of an array member and whether the
// member is present.
func (m *member) count(v reflect.Value) (uint64, bool, error) {
	f := v.Field(m.index)
	if m.pointer {
		if f.IsNil() {
			if !m.optional {
				return 0, false, common.FatalError("required member %s is null", m.name)
			}
			return 0, false, nil
		}
		return 1, true, nil
	}
	if m.optional && f.IsNil() {
		return 0, false, nil
	}
	n := m.lenConst
	if m.length != nil {
		lf := v.Field(m.length.index)
		if m.length.elem.scalar.class == classInt {
			if lf.Int() < 0 {
				return 0, false, common.FatalError("negative length %d for %s", lf.Int(), m.name)
			}
			n = uint64(lf.Int())
		} else {
			n = lf.Uint()
		}
	}
	if uint64(f.Len()) != n {
		return 0, false, common.FatalError("%s holds %d elements but its length says %d", m.name, f.Len(), n)
	}
	return n, true, nil
}

func elemAt(m *member, f reflect.Value, i int) reflect.Value {
	if m.pointer {
		return f.Elem()
	}
	return f.Index(i)
}

// extraSize is the number of trailing bytes v needs beyond its transfer block.
func (ri *recordInfo) extraSize(v reflect.Value) (uint64, error) {
	var total uint64
	var err error
	if ri.chain != nil {
		nodes := v.Field(ri.chain.index).Interface().([]ChainedStruct)
		size, err := chainExtraSize(nodes)
		if err != nil {
			return 0, err
		}
		if total, err = addSize(total, size); err != nil {
			return 0, err
		}
	}
	for _, m := range ri.strings {
		s, present := stringOf(m, v)
		if !present {
			continue
		}
		if total, err = addSize(total, uint64(WireAlignSizeof(len(s)))); err != nil {
			return 0, err
		}
	}
	for _, m := range ri.arrays {
		n, present, err := m.count(v)
		if err != nil {
			return 0, err
		}
		if !present {
			continue
		}
		size, ok := WireAlignSizeofN(n, uint64(m.elem.size()))
		if !ok {
			return 0, common.FatalError("array %s of %d elements overflows", m.name, n)
		}
		if total, err = addSize(total, size); err != nil {
			return 0, err
		}
		if m.elem.kind != memberStruct || m.elem.record.valueOnly() {
			continue
		}
		f := v.Field(m.index)
		for i := 0; i < int(n); i++ {
			size, err := m.elem.record.extraSize(elemAt(m, f, i))
			if err != nil {
				return 0, err
			}
			if total, err = addSize(total, size); err != nil {
				return 0, err
			}
		}
	}
	return total, nil
}

func stringOf(m *member, v reflect.Value) (string, bool) {
	f := v.Field(m.index)
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return "", false
		}
		return f.Elem().String(), true
	}
	return f.String(), true
}

// writeValue encodes one inline element at the start of dst.
func (e *element) writeValue(dst []byte, v reflect.Value, p ObjectIdProvider) error {
	switch e.kind {
	case memberScalar:
		return e.scalar.put(dst, v)
	case memberObject:
		var obj Object
		if !v.IsNil() {
			obj = v.Interface()
		}
		if IsNullObject(obj) {
			obj = nil
		}
		var id uint32
		var err error
		if e.optional {
			id, err = p.GetOptionalId(e.objType, obj)
		} else {
			id, err = p.GetId(e.objType, obj)
		}
		if err != nil {
			return err
		}
		binary.NativeEndian.PutUint32(dst, id)
		return nil
	default:
		return e.record.writeValues(dst, v, p)
	}
}

func (e *element) readValue(src []byte, v reflect.Value, r ObjectIdResolver) error {
	switch e.kind {
	case memberScalar:
		e.scalar.get(src, v)
		return nil
	case memberObject:
		id := binary.NativeEndian.Uint32(src)
		var obj Object
		var err error
		if e.optional {
			obj, err = r.GetOptionalFromId(e.objType, id)
		} else {
			obj, err = r.GetFromId(e.objType, id)
		}
		if err != nil {
			return err
		}
		if obj == nil {
			v.SetZero()
			return nil
		}
		ov := reflect.ValueOf(obj)
		if !ov.Type().AssignableTo(v.Type()) {
			return common.FatalError("object %d resolved to %v, not assignable to %v", id, ov.Type(), v.Type())
		}
		v.Set(ov)
		return nil
	default:
		return e.record.readValues(src, v, r)
	}
}

func (ri *recordInfo) writeValues(tr []byte, v reflect.Value, p ObjectIdProvider) error {
	for _, m := range ri.values {
		if err := m.elem.writeValue(tr[m.offset:], v.Field(m.index), p); err != nil {
			return err
		}
	}
	return nil
}

func (ri *recordInfo) readValues(tr []byte, v reflect.Value, r ObjectIdResolver) error {
	for _, m := range ri.values {
		if err := m.elem.readValue(tr[m.offset:], v.Field(m.index), r); err != nil {
			return err
		}
	}
	return nil
}

func putBool(dst []byte, b bool) {
	dst[0] = 0
	if b {
		dst[0] = 1
	}
}

// serialize fills the transfer block tr of v, after any header the caller
// owns, and appends v's trailing data to buf.
func (ri *recordInfo) serialize(tr []byte, v reflect.Value, buf *SerializeBuffer, p ObjectIdProvider) error {
	if err := ri.writeValues(tr, v, p); err != nil {
		return err
	}

	if ri.chain != nil {
		nodes := v.Field(ri.chain.index).Interface().([]ChainedStruct)
		putBool(tr[ri.chainOffset:], len(nodes) > 0)
		if len(nodes) > 0 {
			if err := serializeChain(nodes, buf, p); err != nil {
				return err
			}
		}
	}

	for _, m := range ri.strings {
		s, present := stringOf(m, v)
		if m.hasOffset >= 0 {
			putBool(tr[m.hasOffset:], present)
		}
		binary.NativeEndian.PutUint64(tr[m.offset:], uint64(len(s)))
		if !present {
			continue
		}
		dst, err := buf.Next(len(s))
		if err != nil {
			return err
		}
		copy(dst, s)
	}

	for _, m := range ri.arrays {
		n, present, err := m.count(v)
		if err != nil {
			return err
		}
		f := v.Field(m.index)
		if m.hasOffset >= 0 {
			putBool(tr[m.hasOffset:], present)
		}
		if !present {
			continue
		}
		size := m.elem.size()
		if size == 0 && n > 0 {
			return common.FatalError("array %s has zero-sized elements", m.name)
		}
		dst, err := buf.NextN(n, size)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if m.elem.transparent() {
			copy(dst, memory.CastFrom[byte](f.UnsafePointer(), n*uint64(size)))
			continue
		}
		for i := 0; i < int(n); i++ {
			ev := elemAt(m, f, i)
			slot := dst[i*size : (i+1)*size]
			if m.elem.kind == memberStruct {
				err = m.elem.record.serialize(slot, ev, buf, p)
			} else {
				err = m.elem.writeValue(slot, ev, p)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// deserialize rebuilds v from its transfer block tr, which must already be a
// private copy, and from the trailing data in dbuf.
func (ri *recordInfo) deserialize(tr []byte, v reflect.Value, dbuf *DeserializeBuffer, alloc DeserializeAllocator, r ObjectIdResolver) error {
	if err := ri.readValues(tr, v, r); err != nil {
		return err
	}

	if ri.chain != nil {
		var nodes []ChainedStruct
		if tr[ri.chainOffset] != 0 {
			var err error
			if nodes, err = deserializeChain(dbuf, alloc, r); err != nil {
				return err
			}
		}
		v.Field(ri.chain.index).Set(reflect.ValueOf(nodes))
	}

	for _, m := range ri.strings {
		f := v.Field(m.index)
		if m.hasOffset >= 0 && tr[m.hasOffset] == 0 {
			f.SetZero()
			continue
		}
		s, err := readString(binary.NativeEndian.Uint64(tr[m.offset:]), dbuf, alloc)
		if err != nil {
			return err
		}
		if f.Kind() == reflect.Pointer {
			f.Set(reflect.ValueOf(&s))
		} else {
			f.SetString(s)
		}
	}

	for _, m := range ri.arrays {
		f := v.Field(m.index)
		n := m.lenConst
		if m.length != nil {
			lf := v.Field(m.length.index)
			if m.length.elem.scalar.class == classInt {
				if lf.Int() < 0 {
					return common.FatalError("negative length %d for %s", lf.Int(), m.name)
				}
				n = uint64(lf.Int())
			} else {
				n = lf.Uint()
			}
		}
		present := true
		if m.hasOffset >= 0 {
			if m.length != nil {
				present = n != 0
			} else {
				present = tr[m.hasOffset] != 0
			}
		}
		if !present || n == 0 {
			f.SetZero()
			continue
		}
		if err := m.readArray(f, n, dbuf, alloc, r); err != nil {
			return err
		}
	}
	return nil
}

func readString(n uint64, dbuf *DeserializeBuffer, alloc DeserializeAllocator) (string, error) {
	if n >= math.MaxInt {
		return "", common.FatalError("string length %d is not addressable", n)
	}
	src, err := dbuf.ReadN(n, 1)
	if err != nil {
		return "", err
	}
	space := alloc.GetSpace(int(n) + 1)
	if space == nil {
		return "", common.FatalError("cannot allocate %d bytes for a string", n+1)
	}
	copy(space, src)
	space[n] = 0
	return unsafe.String(&space[0], int(n)), nil
}

func (m *member) readArray(f reflect.Value, n uint64, dbuf *DeserializeBuffer, alloc DeserializeAllocator, r ObjectIdResolver) error {
	size := m.elem.size()
	if size == 0 {
		return common.FatalError("array %s has zero-sized elements", m.name)
	}
	src, err := dbuf.ReadN(n, size)
	if err != nil {
		return err
	}

	if m.dataOnly {
		f.Set(reflect.ValueOf(src).Convert(f.Type()))
		return nil
	}

	var out reflect.Value
	if m.elem.transparent() {
		space := alloc.GetSpace(len(src))
		if space == nil {
			return common.FatalError("cannot allocate %d bytes for %s", len(src), m.name)
		}
		copy(space, src)
		out = reflect.SliceAt(m.elem.typ, unsafe.Pointer(&space[0]), int(n))
	} else {
		block := make([]byte, len(src))
		copy(block, src)
		out = reflect.MakeSlice(reflect.SliceOf(m.elem.typ), int(n), int(n))
		for i := 0; i < int(n); i++ {
			slot := block[i*size : (i+1)*size]
			if m.elem.kind == memberStruct {
				err = m.elem.record.deserialize(slot, out.Index(i), dbuf, alloc, r)
			} else {
				err = m.elem.readValue(slot, out.Index(i), r)
			}
			if err != nil {
				return err
			}
		}
	}

	if m.pointer {
		f.Set(out.Index(0).Addr())
	} else {
		f.Set(out.Convert(f.Type()))
	}
	return nil
}
