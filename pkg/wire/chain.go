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
	"reflect"

	"github.com/v6d-io/v6d/go/wire/pkg/common"
	"github.com/v6d-io/v6d/go/wire/pkg/common/log"
	"github.com/v6d-io/v6d/go/wire/pkg/common/types"
)

// chainHeaderSize covers {sType uint32, hasNext bool} padded to the
// alignment of sType.
const chainHeaderSize = 8

// knownChainedStruct returns the descriptor of node if its type is the one
// registered for its sType.
func knownChainedStruct(node ChainedStruct) (*recordInfo, bool, error) {
	t := reflect.TypeOf(node)
	if registered, ok := lookupChainedStruct(node.SType()); !ok || registered != t {
		return nil, false, nil
	}
	ri, err := describe(t)
	if err != nil {
		return nil, false, err
	}
	return ri, true, nil
}

func chainExtraSize(nodes []ChainedStruct) (uint64, error) {
	var total uint64
	for i, node := range nodes {
		if node == nil {
			return 0, common.FatalError("chain node %d is null", i)
		}
		ri, known, err := knownChainedStruct(node)
		if err != nil {
			return 0, err
		}
		if !known {
			if total, err = addSize(total, chainHeaderSize); err != nil {
				return 0, err
			}
			continue
		}
		extra, err := ri.extraSize(reflect.ValueOf(node))
		if err != nil {
			return 0, err
		}
		if total, err = addSize(total, uint64(WireAlignSizeof(ri.size))); err != nil {
			return 0, err
		}
		if total, err = addSize(total, extra); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func serializeChain(nodes []ChainedStruct, buf *SerializeBuffer, p ObjectIdProvider) error {
	for i, node := range nodes {
		if node == nil {
			return common.FatalError("chain node %d is null", i)
		}
		hasNext := i < len(nodes)-1
		ri, known, err := knownChainedStruct(node)
		if err != nil {
			return err
		}
		if !known {
			if _, placeholder := node.(UnknownChainedStruct); !placeholder {
				log.Warnf("Unsupported sType %d (%T) dropped from chain", node.SType(), node)
			}
			header, err := buf.Next(chainHeaderSize)
			if err != nil {
				return err
			}
			binary.NativeEndian.PutUint32(header, STypeInvalid)
			putBool(header[4:], hasNext)
			continue
		}
		tr, err := buf.Next(ri.size)
		if err != nil {
			return err
		}
		binary.NativeEndian.PutUint32(tr, node.SType())
		putBool(tr[4:], hasNext)
		if err := ri.serialize(tr, reflect.ValueOf(node), buf, p); err != nil {
			return err
		}
	}
	return nil
}

func deserializeChain(dbuf *DeserializeBuffer, alloc DeserializeAllocator, r ObjectIdResolver) ([]ChainedStruct, error) {
	var nodes []ChainedStruct
	for {
		peeked, err := dbuf.Peek(chainHeaderSize)
		if err != nil {
			return nil, err
		}
		tag := binary.NativeEndian.Uint32(peeked)

		var node ChainedStruct
		var hasNext bool
		t, known := lookupChainedStruct(tag)
		if !known {
			if tag != STypeInvalid {
				log.Warnf("Unknown sType %d kept as a placeholder", tag)
			}
			header, err := dbuf.Read(chainHeaderSize)
			if err != nil {
				return nil, err
			}
			node, hasNext = UnknownChainedStruct{Tag: tag}, header[4] != 0
		} else {
			ri, err := describe(t)
			if err != nil {
				return nil, err
			}
			tr, err := dbuf.Read(ri.size)
			if err != nil {
				return nil, err
			}
			if got := binary.NativeEndian.Uint32(tr); got != tag {
				return nil, common.FatalError("sType changed from %d to %d while decoding", tag, got)
			}
			hasNext = tr[4] != 0
			v := reflect.New(t).Elem()
			if err := ri.deserialize(tr, v, dbuf, alloc, r); err != nil {
				return nil, err
			}
			node = v.Interface().(ChainedStruct)
		}
		nodes = append(nodes, node)
		if !hasNext {
			return nodes, nil
		}
	}
}

// GetChainedStruct returns the first node of chain with the concrete type T.
func GetChainedStruct[T ChainedStruct](chain []ChainedStruct) (T, bool) {
	for _, node := range chain {
		if n, ok := node.(T); ok {
			return n, true
		}
	}
	var zero T
	return zero, false
}

// ValidateSTypes fails if two nodes of chain share an sType, or if any
// node is a placeholder and allowUnknown is false.
func ValidateSTypes(chain []ChainedStruct, allowUnknown bool) error {
	seen := map[types.SType]bool{}
	for _, node := range chain {
		if u, ok := node.(UnknownChainedStruct); ok {
			if !allowUnknown {
				return common.Errorf(common.KInvalid, "unsupported sType %d in chain", u.Tag)
			}
			continue
		}
		if seen[node.SType()] {
			return common.Errorf(common.KInvalid, "duplicate sType %d in chain", node.SType())
		}
		seen[node.SType()] = true
	}
	return nil
}
