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
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
)

type memberKind uint8

const (
	memberScalar memberKind = iota
	memberObject
	memberStruct
	memberString
	memberArray
	memberChain
)

// element describes a value stored inline: either a value member of a
// record or one element of an array.
type element struct {
	kind    memberKind
	typ     reflect.Type
	scalar  scalar
	objType types.ObjectType
	record  *recordInfo
	// optional objects accept the null id.
	optional bool
}

// size is the transfer size of the element, read lazily since array element
// records may still be under construction while their parent is described.
func (e *element) size() int {
	switch e.kind {
	case memberScalar:
		return e.scalar.size
	case memberObject:
		return common.ObjectIDBytes
	default:
		return e.record.size
	}
}

func (e *element) align() int {
	switch e.kind {
	case memberScalar:
		return e.scalar.size
	case memberObject:
		return common.ObjectIDBytes
	default:
		return e.record.align
	}
}

// transparent elements share their byte representation with the native type
// and can be copied in bulk.
func (e *element) transparent() bool {
	return e.kind == memberScalar && e.scalar.class != classBool && e.scalar.size == e.scalar.nativeSize
}

type member struct {
	name     string
	index    int
	kind     memberKind
	optional bool

	// offset of the inline value, or of the strlen for strings.
	offset int
	// offset of the presence flag, -1 if the member has none.
	hasOffset int

	elem element

	// arrays
	pointer  bool
	dataOnly bool
	lenConst uint64
	lenName  string
	length   *member
}

type recordInfo struct {
	typ   reflect.Type
	size  int
	align int

	isCommand    bool
	isChained    bool
	isExtensible bool

	// offset of hasNextInChain for extensible records.
	chainOffset int
	chain       *member

	values  []*member
	strings []*member
	arrays  []*member

	err error
}

func (ri *recordInfo) valueOnly() bool {
	return ri.chain == nil && len(ri.strings) == 0 && len(ri.arrays) == 0
}

var (
	commandType       = reflect.TypeOf((*Command)(nil)).Elem()
	chainedStructType = reflect.TypeOf((*ChainedStruct)(nil)).Elem()
	chainType         = reflect.TypeOf([]ChainedStruct(nil))

	descriptors sync.Map
	buildMu     sync.Mutex
)

// describe returns the cached descriptor of the struct type t, building it on
// first use.
func describe(t reflect.Type) (*recordInfo, error) {
	if d, ok := descriptors.Load(t); ok {
		ri := d.(*recordInfo)
		return ri, ri.err
	}
	buildMu.Lock()
	defer buildMu.Unlock()
	b := &builder{building: map[reflect.Type]*recordInfo{}}
	ri := b.record(t)
	return ri, ri.err
}

type builder struct {
	building map[reflect.Type]*recordInfo
}

func (b *builder) record(t reflect.Type) *recordInfo {
	if d, ok := descriptors.Load(t); ok {
		return d.(*recordInfo)
	}
	if ri, ok := b.building[t]; ok {
		return ri
	}
	ri := &recordInfo{typ: t, align: 1}
	b.building[t] = ri
	ri.err = b.build(ri)
	delete(b.building, t)
	descriptors.Store(t, ri)
	return ri
}

func (b *builder) fail(t reflect.Type, format string, args ...any) error {
	return common.FatalError("invalid wire record %v: %s", t, fmt.Sprintf(format, args...))
}

func (b *builder) build(ri *recordInfo) error {
	t := ri.typ
	if t.Kind() != reflect.Struct {
		return b.fail(t, "not a struct")
	}
	ri.isCommand = t.Implements(commandType)
	ri.isChained = t.Implements(chainedStructType)

	byName := map[string]*member{}
	var optionals []*member
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("wire")
		if !f.IsExported() || tag == "-" {
			continue
		}
		m, err := b.member(t, f, i, tag)
		if err != nil {
			return err
		}
		byName[m.name] = m
		switch m.kind {
		case memberScalar, memberObject, memberStruct:
			ri.values = append(ri.values, m)
		case memberString:
			ri.strings = append(ri.strings, m)
		case memberArray:
			ri.arrays = append(ri.arrays, m)
		case memberChain:
			if ri.chain != nil {
				return b.fail(t, "more than one chain member")
			}
			ri.chain = m
			ri.isExtensible = true
		}
		if m.optional && (m.kind == memberString || m.kind == memberArray) {
			optionals = append(optionals, m)
		}
	}

	roles := 0
	for _, r := range []bool{ri.isCommand, ri.isChained, ri.isExtensible} {
		if r {
			roles++
		}
	}
	if roles > 1 {
		return b.fail(t, "a record can only be one of command, chained struct or extensible")
	}

	for _, m := range ri.arrays {
		if m.lenName == "" {
			continue
		}
		l, ok := byName[m.lenName]
		if !ok || l.kind != memberScalar || (l.elem.scalar.class != classInt && l.elem.scalar.class != classUint) {
			return b.fail(t, "length of %s must name an integer value member, got %q", m.name, m.lenName)
		}
		m.length = l
	}

	// Layout: header, values, presence flags, string lengths.
	offset := 0
	place := func(size, align int) int {
		offset = alignInt(offset, align)
		if align > ri.align {
			ri.align = align
		}
		at := offset
		offset += size
		return at
	}
	switch {
	case ri.isCommand:
		place(common.CommandSizeBytes, 8)
		place(common.CommandIDBytes, 4)
	case ri.isChained:
		place(chainHeaderSize, 4)
	case ri.isExtensible:
		ri.chainOffset = place(1, 1)
	}
	for _, m := range ri.values {
		m.offset = place(m.elem.size(), m.elem.align())
	}
	for _, m := range optionals {
		m.hasOffset = place(1, 1)
	}
	for _, m := range ri.strings {
		m.offset = place(8, 8)
	}
	ri.size = alignInt(offset, ri.align)
	return nil
}

func parseTag(tag string) (string, map[string]string) {
	parts := strings.Split(tag, ",")
	opts := map[string]string{}
	for _, p := range parts[1:] {
		k, v, _ := strings.Cut(strings.TrimSpace(p), "=")
		opts[k] = v
	}
	return strings.TrimSpace(parts[0]), opts
}

func (b *builder) member(t reflect.Type, f reflect.StructField, index int, tag string) (*member, error) {
	annotation, opts := parseTag(tag)
	m := &member{name: f.Name, index: index, hasOffset: -1}
	_, m.optional = opts["optional"]
	_, m.dataOnly = opts["dataonly"]
	for k := range opts {
		switch k {
		case "optional", "dataonly", "len", "type", "as":
		default:
			return nil, b.fail(t, "unknown option %q on %s", k, f.Name)
		}
	}
	if m.dataOnly && annotation != "array" {
		return nil, b.fail(t, "only arrays can be data-only, %s is not", f.Name)
	}

	switch annotation {
	case "", "value":
		if f.Type == chainType {
			return nil, b.fail(t, "chain member %s needs the chain annotation", f.Name)
		}
		if m.optional {
			return nil, b.fail(t, "value member %s cannot be optional", f.Name)
		}
		if f.Type.Kind() == reflect.Struct {
			sub := b.record(f.Type)
			if sub.err != nil {
				return nil, sub.err
			}
			if _, recursive := b.building[f.Type]; recursive {
				return nil, b.fail(t, "%s embeds %v recursively", f.Name, f.Type)
			}
			if !sub.valueOnly() || sub.isCommand || sub.isChained {
				return nil, b.fail(t, "%s embeds %v by value but it holds non-value members", f.Name, f.Type)
			}
			m.kind = memberStruct
			m.elem = element{kind: memberStruct, typ: f.Type, record: sub}
			return m, nil
		}
		s, err := b.scalar(t, f.Name, f.Type, opts["as"])
		if err != nil {
			return nil, err
		}
		m.kind = memberScalar
		m.elem = element{kind: memberScalar, typ: f.Type, scalar: s}

	case "object":
		e, err := b.object(t, f.Name, f.Type, opts)
		if err != nil {
			return nil, err
		}
		m.kind = memberObject
		m.elem = e

	case "strlen":
		m.kind = memberString
		switch {
		case f.Type.Kind() == reflect.String:
			if m.optional {
				return nil, b.fail(t, "optional string %s must be a *string", f.Name)
			}
		case f.Type.Kind() == reflect.Pointer && f.Type.Elem().Kind() == reflect.String:
			if !m.optional {
				return nil, b.fail(t, "string pointer %s must be optional", f.Name)
			}
		default:
			return nil, b.fail(t, "strlen member %s must be a string", f.Name)
		}

	case "array":
		m.kind = memberArray
		var et reflect.Type
		switch f.Type.Kind() {
		case reflect.Slice:
			et = f.Type.Elem()
			l, ok := opts["len"]
			if !ok || l == "" {
				return nil, b.fail(t, "array %s needs a length", f.Name)
			}
			if n, err := strconv.ParseUint(l, 10, 64); err == nil {
				m.lenConst = n
			} else {
				m.lenName = l
			}
		case reflect.Pointer:
			et = f.Type.Elem()
			if _, ok := opts["len"]; ok {
				return nil, b.fail(t, "pointer %s has an implicit length of one", f.Name)
			}
			m.pointer, m.lenConst = true, 1
		default:
			return nil, b.fail(t, "array member %s must be a slice or pointer", f.Name)
		}
		if name, ok := opts["type"]; ok {
			e, err := b.object(t, f.Name, et, map[string]string{"type": name})
			if err != nil {
				return nil, err
			}
			// optional on object arrays applies to the elements
			e.optional = m.optional
			m.optional = false
			m.elem = e
		} else if et.Kind() == reflect.Struct {
			sub := b.record(et)
			if sub.err != nil {
				return nil, sub.err
			}
			if sub.isCommand || sub.isChained {
				return nil, b.fail(t, "array %s of %v cannot hold commands or chained structs", f.Name, et)
			}
			m.elem = element{kind: memberStruct, typ: et, record: sub}
		} else {
			s, err := b.scalar(t, f.Name, et, opts["as"])
			if err != nil {
				return nil, err
			}
			m.elem = element{kind: memberScalar, typ: et, scalar: s}
		}
		if m.dataOnly && (m.pointer || m.elem.kind != memberScalar || et.Kind() != reflect.Uint8 || !m.elem.transparent()) {
			return nil, b.fail(t, "data-only member %s must be a byte slice", f.Name)
		}

	case "chain":
		if f.Type != chainType {
			return nil, b.fail(t, "chain member %s must be a []wire.ChainedStruct", f.Name)
		}
		m.kind = memberChain

	default:
		return nil, b.fail(t, "unknown annotation %q on %s", annotation, f.Name)
	}
	return m, nil
}

func (b *builder) object(t reflect.Type, name string, ft reflect.Type, opts map[string]string) (element, error) {
	if ft.Kind() != reflect.Interface {
		return element{}, b.fail(t, "object member %s must be an interface", name)
	}
	typeName, ok := opts["type"]
	if !ok {
		return element{}, b.fail(t, "object member %s needs a type", name)
	}
	ot, ok := lookupObjectType(typeName)
	if !ok {
		return element{}, b.fail(t, "object member %s refers to unknown object type %q", name, typeName)
	}
	_, optional := opts["optional"]
	return element{kind: memberObject, typ: ft, objType: ot, optional: optional}, nil
}
