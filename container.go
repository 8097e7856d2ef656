package dbus

import (
	"fmt"
	"log"
	"reflect"

	"github.com/darlinghq/libs-dbuskit/wire"
)

// debugCore gates diagnostic tracing of node construction and
// marshal/unmarshal dispatch. Flip it on locally when chasing a
// signature or codec bug; it's never meant to be on in committed code,
// mirroring the teacher's own debugDecoders/debugDecoder gate.
const debugCore = false

func debugTrace(msg string, args ...any) {
	if !debugCore {
		return
	}
	log.Printf(msg, args...)
}

// Marshal writes host onto it according to n's type. For a scalar
// node it unboxes host and appends it directly; for a container node
// it recurses per §4.4.
func (n *ArgumentNode) Marshal(host any, it wire.Iterator) error {
	debugTrace("Marshal(%s, %#v)", n.Signature(), host)
	if !n.IsContainer() {
		v, err := n.Unbox(host)
		if err != nil {
			return err
		}
		if err := it.AppendBasic(v); err != nil {
			return &OutOfWireSpaceError{Reason: err}
		}
		return nil
	}

	switch n.kind {
	case nodeArray:
		if n.isDictionary {
			return n.marshalDictionary(host, it)
		}
		return n.marshalArray(host, it)
	case nodeStruct:
		return n.marshalStruct(host, it)
	case nodeVariant:
		return n.marshalVariant(host, it)
	case nodeDictEntry:
		return fmt.Errorf("dbus: dict-entry %q cannot be marshalled standalone", n.Signature())
	default:
		panic(fmt.Sprintf("ArgumentNode: unknown kind %d", n.kind))
	}
}

// Unmarshal reads one value of n's type from it.
func (n *ArgumentNode) Unmarshal(it wire.Iterator) (any, error) {
	debugTrace("Unmarshal(%s)", n.Signature())
	if !n.IsContainer() {
		if got := it.ArgType(); got != n.dbusType {
			return nil, &WireTypeMismatchError{Node: n.name, Want: n.dbusType, Got: got}
		}
		raw, err := it.GetBasic()
		if err != nil {
			return nil, err
		}
		return n.Box(raw)
	}

	switch n.kind {
	case nodeArray:
		if n.isDictionary {
			return n.unmarshalDictionary(it)
		}
		return n.unmarshalArray(it)
	case nodeStruct:
		return n.unmarshalStruct(it)
	case nodeVariant:
		return n.unmarshalVariant(it)
	case nodeDictEntry:
		return nil, fmt.Errorf("dbus: dict-entry %q cannot be unmarshalled standalone", n.Signature())
	default:
		panic(fmt.Sprintf("ArgumentNode: unknown kind %d", n.kind))
	}
}

func (n *ArgumentNode) marshalArray(host any, it wire.Iterator) error {
	rv := reflect.ValueOf(host)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return unrepresentablef(n.name, n.dbusType, "host value %#v does not expose a linear enumerator", host)
	}
	elem := n.children[0]
	sub, err := it.OpenContainer('a', elem.Signature())
	if err != nil {
		return &OutOfWireSpaceError{Reason: err}
	}
	for i := 0; i < rv.Len(); i++ {
		if err := elem.Marshal(rv.Index(i).Interface(), sub); err != nil {
			it.CloseContainer(sub)
			return err
		}
	}
	return closeOrWrap(it, sub)
}

func (n *ArgumentNode) unmarshalArray(it wire.Iterator) (any, error) {
	if got := it.ArgType(); got != 'a' {
		return nil, &WireTypeMismatchError{Node: n.name, Want: 'a', Got: got}
	}
	elem := n.children[0]
	sub, err := it.Recurse()
	if err != nil {
		return nil, err
	}
	out := []any{}
	for {
		more, err := sub.Next()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		if got := sub.ArgType(); got != elem.dbusType {
			return nil, &WireTypeMismatchError{Node: elem.name, Want: elem.dbusType, Got: got}
		}
		v, err := elem.Unmarshal(sub)
		if err != nil {
			return nil, err
		}
		if isNilHost(v) {
			v = Null
		}
		out = append(out, v)
	}
	return out, nil
}

func (n *ArgumentNode) marshalDictionary(host any, it wire.Iterator) error {
	rv := reflect.ValueOf(host)
	if !rv.IsValid() || rv.Kind() != reflect.Map {
		return unrepresentablef(n.name, n.dbusType, "host value %#v does not expose a key/value mapping", host)
	}
	entry := n.children[0]
	sub, err := it.OpenContainer('a', entry.Signature())
	if err != nil {
		return &OutOfWireSpaceError{Reason: err}
	}
	for _, k := range rv.MapKeys() {
		v := rv.MapIndex(k)
		deSub, err := sub.OpenContainer('{', "")
		if err != nil {
			it.CloseContainer(sub)
			return &OutOfWireSpaceError{Reason: err}
		}
		if err := entry.children[0].Marshal(k.Interface(), deSub); err != nil {
			sub.CloseContainer(deSub)
			it.CloseContainer(sub)
			return err
		}
		if err := entry.children[1].Marshal(v.Interface(), deSub); err != nil {
			sub.CloseContainer(deSub)
			it.CloseContainer(sub)
			return err
		}
		if err := closeOrWrap(sub, deSub); err != nil {
			it.CloseContainer(sub)
			return err
		}
	}
	return closeOrWrap(it, sub)
}

func (n *ArgumentNode) unmarshalDictionary(it wire.Iterator) (any, error) {
	if got := it.ArgType(); got != 'a' {
		return nil, &WireTypeMismatchError{Node: n.name, Want: 'a', Got: got}
	}
	entry := n.children[0]
	sub, err := it.Recurse()
	if err != nil {
		return nil, err
	}
	out := map[any]any{}
	for {
		more, err := sub.Next()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		if got := sub.ArgType(); got != '{' {
			return nil, &WireTypeMismatchError{Node: entry.name, Want: '{', Got: got}
		}
		deSub, err := sub.Recurse()
		if err != nil {
			return nil, err
		}
		key, val, err := entry.unmarshalDictEntryPair(deSub)
		if err != nil {
			return nil, err
		}
		if isNilHost(key) {
			key = Null
		}
		if isNilHost(val) {
			val = Null
		}
		if _, exists := out[key]; exists {
			log.Printf("dbus: dictionary %q: duplicate key %v, keeping first value", n.Signature(), key)
			continue
		}
		out[key] = val
	}
	return out, nil
}

func (n *ArgumentNode) marshalStruct(host any, it wire.Iterator) error {
	rv := reflect.ValueOf(host)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() != len(n.children) {
		return unrepresentablef(n.name, n.dbusType, "host value %#v does not supply %d positional fields", host, len(n.children))
	}
	sub, err := it.OpenContainer('(', "")
	if err != nil {
		return &OutOfWireSpaceError{Reason: err}
	}
	for i, c := range n.children {
		if err := c.Marshal(rv.Index(i).Interface(), sub); err != nil {
			it.CloseContainer(sub)
			return err
		}
	}
	return closeOrWrap(it, sub)
}

func (n *ArgumentNode) unmarshalStruct(it wire.Iterator) (any, error) {
	if got := it.ArgType(); got != '(' {
		return nil, &WireTypeMismatchError{Node: n.name, Want: '(', Got: got}
	}
	sub, err := it.Recurse()
	if err != nil {
		return nil, err
	}
	out := make([]any, len(n.children))
	for i, c := range n.children {
		if got := sub.ArgType(); got != c.dbusType {
			return nil, &WireTypeMismatchError{Node: c.name, Want: c.dbusType, Got: got}
		}
		v, err := c.Unmarshal(sub)
		if err != nil {
			return nil, err
		}
		out[i] = v
		if i < len(n.children)-1 {
			if _, err := sub.Next(); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// unmarshalDictEntryPair reads n's two children (key, then value)
// positionally off it, which must already be recursed into a
// dict-entry. n must be a dict-entry node.
func (n *ArgumentNode) unmarshalDictEntryPair(it wire.Iterator) (key, val any, err error) {
	kChild, vChild := n.children[0], n.children[1]
	if got := it.ArgType(); got != kChild.dbusType {
		return nil, nil, &WireTypeMismatchError{Node: kChild.name, Want: kChild.dbusType, Got: got}
	}
	key, err = kChild.Unmarshal(it)
	if err != nil {
		return nil, nil, err
	}
	if _, err = it.Next(); err != nil {
		return nil, nil, err
	}
	if got := it.ArgType(); got != vChild.dbusType {
		return nil, nil, &WireTypeMismatchError{Node: vChild.name, Want: vChild.dbusType, Got: got}
	}
	val, err = vChild.Unmarshal(it)
	if err != nil {
		return nil, nil, err
	}
	return key, val, nil
}

func (n *ArgumentNode) marshalVariant(host any, it wire.Iterator) error {
	child, err := nodeForHostValue(host, n)
	if err != nil {
		return err
	}
	sub, err := it.OpenContainer('v', child.Signature())
	if err != nil {
		return &OutOfWireSpaceError{Reason: err}
	}
	if err := child.Marshal(host, sub); err != nil {
		it.CloseContainer(sub)
		return err
	}
	return closeOrWrap(it, sub)
}

func (n *ArgumentNode) unmarshalVariant(it wire.Iterator) (any, error) {
	if got := it.ArgType(); got != 'v' {
		return nil, &WireTypeMismatchError{Node: n.name, Want: 'v', Got: got}
	}
	sub, err := it.Recurse()
	if err != nil {
		return nil, err
	}
	ss, ok := sub.(interface{ ContainedSignature() string })
	if !ok {
		return nil, fmt.Errorf("dbus: iterator does not expose the contained signature needed for variant dispatch")
	}
	transient, err := FromSignature(ss.ContainedSignature(), "", n)
	if err != nil {
		return nil, err
	}
	return transient.Unmarshal(sub)
}

// closeOrWrap closes sub on parent and, if that fails, wraps the
// failure as an [OutOfWireSpaceError], whatever its cause.
func closeOrWrap(parent, sub wire.Iterator) error {
	if err := parent.CloseContainer(sub); err != nil {
		return &OutOfWireSpaceError{Reason: err}
	}
	return nil
}

// nodeForHostValue derives a transient scalar or container
// ArgumentNode, whose parent chain leads back to parent (the variant
// node), from host's runtime type, for variant
// marshalling where no static child type exists (§4.4.5). It is the
// inverse of the §3.1 scalar table, extended structurally to slices
// and maps so a variant can also carry an array or a dictionary.
func nodeForHostValue(host any, parent *ArgumentNode) (*ArgumentNode, error) {
	if host == nil {
		return nil, unrepresentablef(parent.name, 'v', "nil has no representable D-Bus type")
	}
	if _, ok := host.(Proxy); ok {
		return scalarNode('o', parent), nil
	}
	if _, ok := host.(*ArgumentNode); ok {
		return scalarNode('g', parent), nil
	}

	rv := reflect.ValueOf(host)
	switch rv.Kind() {
	case reflect.Bool:
		return scalarNode('b', parent), nil
	case reflect.Uint8:
		return scalarNode('y', parent), nil
	case reflect.Int16:
		return scalarNode('n', parent), nil
	case reflect.Uint16:
		return scalarNode('q', parent), nil
	case reflect.Int, reflect.Int32:
		return scalarNode('i', parent), nil
	case reflect.Uint, reflect.Uint32:
		return scalarNode('u', parent), nil
	case reflect.Int64:
		return scalarNode('x', parent), nil
	case reflect.Uint64:
		return scalarNode('t', parent), nil
	case reflect.Float32, reflect.Float64:
		return scalarNode('d', parent), nil
	case reflect.String:
		return scalarNode('s', parent), nil
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return nil, unrepresentablef(parent.name, 'v', "empty slice has no inferable element type")
		}
		elem, err := nodeForHostValue(rv.Index(0).Interface(), parent)
		if err != nil {
			return nil, err
		}
		arr := &ArgumentNode{kind: nodeArray, dbusType: 'a', hostClass: HostClassSequence, parent: parent, children: []*ArgumentNode{elem}}
		elem.parent = arr
		return arr, nil
	case reflect.Map:
		keys := rv.MapKeys()
		if len(keys) == 0 {
			return nil, unrepresentablef(parent.name, 'v', "empty map has no inferable key/value type")
		}
		keyNode, err := nodeForHostValue(keys[0].Interface(), parent)
		if err != nil {
			return nil, err
		}
		valNode, err := nodeForHostValue(rv.MapIndex(keys[0]).Interface(), parent)
		if err != nil {
			return nil, err
		}
		entry := &ArgumentNode{kind: nodeDictEntry, dbusType: '{', hostClass: HostClassNone, parent: parent, children: []*ArgumentNode{keyNode, valNode}}
		keyNode.parent, valNode.parent = entry, entry
		arr := &ArgumentNode{kind: nodeArray, dbusType: 'a', hostClass: HostClassMapping, isDictionary: true, parent: parent, children: []*ArgumentNode{entry}}
		entry.parent = arr
		return arr, nil
	default:
		return nil, unrepresentablef(parent.name, 'v', "host value %#v (%T) has no representable D-Bus type", host, host)
	}
}

func scalarNode(code byte, parent *ArgumentNode) *ArgumentNode {
	return &ArgumentNode{kind: nodeScalar, dbusType: code, hostClass: scalarHostClass(code), parent: parent}
}
