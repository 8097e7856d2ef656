package dbus

import (
	"fmt"
	"strings"
)

// HostClass names which host-level Go type a scalar or container
// ArgumentNode boxes to. It replaces the class-pointer metadata the
// teacher's source threads around with an enumerated tag.
type HostClass uint8

const (
	// HostClassNone is used by nodes with no host value of their own:
	// variants (the host class is learned per-value, at unmarshal
	// time) and standalone dict-entries (never boxed directly).
	HostClassNone HostClass = iota
	// HostClassNumber covers every integer and floating-point scalar
	// (y, b, n, q, i, u, x, t, d).
	HostClassNumber
	// HostClassString covers plain strings (s).
	HostClassString
	// HostClassSequence covers arrays-of-non-dict-entry and structs.
	HostClassSequence
	// HostClassMapping covers arrays whose element is a dict-entry.
	HostClassMapping
	// HostClassProxy covers object paths (o).
	HostClassProxy
	// HostClassSignature covers signature-objects (g).
	HostClassSignature
	// HostClassBoxedObject is not a type of any ArgumentNode; it's the
	// generic sentinel a CallFrame slot declares when it carries a
	// boxed value rather than an unboxed native one (§4.6).
	HostClassBoxedObject
)

func (h HostClass) String() string {
	switch h {
	case HostClassNone:
		return "none"
	case HostClassNumber:
		return "number"
	case HostClassString:
		return "string"
	case HostClassSequence:
		return "sequence"
	case HostClassMapping:
		return "mapping"
	case HostClassProxy:
		return "proxy"
	case HostClassSignature:
		return "signature-object"
	case HostClassBoxedObject:
		return "boxed-object"
	default:
		return fmt.Sprintf("HostClass(%d)", uint8(h))
	}
}

func scalarHostClass(code byte) HostClass {
	switch code {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd':
		return HostClassNumber
	case 's':
		return HostClassString
	case 'o':
		return HostClassProxy
	case 'g':
		return HostClassSignature
	default:
		panic(fmt.Sprintf("scalarHostClass: %q is not a scalar type code", string(code)))
	}
}

// nodeKind tags the shape of an ArgumentNode: the Go rendition of the
// source's construct-time class upgrade.
type nodeKind uint8

const (
	nodeScalar nodeKind = iota
	nodeArray
	nodeStruct
	nodeDictEntry
	nodeVariant
)

// ArgumentNode describes exactly one complete D-Bus type at some
// position in a method or signal signature.
//
// A node is immutable once [FromSignature] or [FromIterator] returns,
// with one exception: while an array node is being constructed, it
// inspects its own freshly built child to decide isDictionary and
// hostClass. That inspection never writes into the child, and never
// happens again afterward.
type ArgumentNode struct {
	kind     nodeKind
	dbusType byte
	name     string
	// parent is a non-owning upward reference: another *ArgumentNode,
	// a [Proxy], or some other external collaborator such as a method
	// descriptor. It is never used for anything but upward traversal
	// (see proxyParent), so there's no risk of a retain cycle even
	// though Go's garbage collector would tolerate one.
	parent any

	children     []*ArgumentNode
	hostClass    HostClass
	isDictionary bool
}

// FromSignature validates sig as exactly one complete D-Bus type (I4)
// and builds the ArgumentNode tree it describes.
func FromSignature(sig, name string, parent any) (*ArgumentNode, error) {
	if err := validateSingle(sig); err != nil {
		return nil, err
	}
	return nodeFromToken(sig, name, parent)
}

// FromIterator builds exactly one ArgumentNode from the next complete
// type in it, advancing it past the consumed text.
func FromIterator(it *sigIterator, name string, parent any) (*ArgumentNode, error) {
	tok, err := it.next()
	if err != nil {
		return nil, err
	}
	return nodeFromToken(tok, name, parent)
}

// nodeFromToken builds a node from tok, which must be exactly one
// complete, already-validated D-Bus type.
func nodeFromToken(tok string, name string, parent any) (*ArgumentNode, error) {
	debugTrace("nodeFromToken(%q, %q)", tok, name)
	n := &ArgumentNode{dbusType: tok[0], name: name, parent: parent}

	switch tok[0] {
	case 'a':
		n.kind = nodeArray
		child, err := nodeFromToken(tok[1:], "", n)
		if err != nil {
			return nil, err
		}
		n.children = []*ArgumentNode{child}
		if child.kind == nodeDictEntry {
			n.isDictionary = true
			n.hostClass = HostClassMapping
		} else {
			n.hostClass = HostClassSequence
		}
		return n, nil

	case '(':
		n.kind = nodeStruct
		n.hostClass = HostClassSequence
		fields, err := splitTypes(tok[1 : len(tok)-1])
		if err != nil {
			return nil, err
		}
		n.children = make([]*ArgumentNode, len(fields))
		for i, f := range fields {
			c, err := nodeFromToken(f, fmt.Sprintf("field%d", i), n)
			if err != nil {
				return nil, err
			}
			n.children[i] = c
		}
		return n, nil

	case '{':
		n.kind = nodeDictEntry
		n.hostClass = HostClassNone
		fields, err := splitTypes(tok[1 : len(tok)-1])
		if err != nil {
			return nil, err
		}
		if len(fields) != 2 {
			return nil, malformedf(tok, "dict entry must have exactly 2 children, got %d", len(fields))
		}
		key, err := nodeFromToken(fields[0], "key", n)
		if err != nil {
			return nil, err
		}
		if key.kind != nodeScalar {
			return nil, malformedf(tok, "dict entry key %q is a complex type, must be basic", fields[0])
		}
		val, err := nodeFromToken(fields[1], "value", n)
		if err != nil {
			return nil, err
		}
		n.children = []*ArgumentNode{key, val}
		return n, nil

	case 'v':
		n.kind = nodeVariant
		n.hostClass = HostClassNone
		return n, nil

	default:
		n.kind = nodeScalar
		n.hostClass = scalarHostClass(tok[0])
		return n, nil
	}
}

// DBusType returns the node's top-level D-Bus type code.
func (n *ArgumentNode) DBusType() byte { return n.dbusType }

// Name returns the diagnostic name given to the node at construction.
func (n *ArgumentNode) Name() string { return n.name }

// HostClass returns the host type a value of this node's type boxes
// to. It is [HostClassNone] for variants and standalone dict-entries.
func (n *ArgumentNode) HostClass() HostClass { return n.hostClass }

// IsContainer reports whether n is an array, struct, dict-entry, or
// variant, as opposed to a scalar.
func (n *ArgumentNode) IsContainer() bool { return n.kind != nodeScalar }

// IsDictionary reports whether n is an array whose element is a
// dict-entry (I5). False for every other node.
func (n *ArgumentNode) IsDictionary() bool { return n.isDictionary }

// Children returns n's child nodes in order. Scalars and variants
// always return an empty slice.
func (n *ArgumentNode) Children() []*ArgumentNode { return n.children }

// Signature reconstructs the D-Bus signature text for n. For any
// valid signature S, FromSignature(S, ...).Signature() == S (P3).
func (n *ArgumentNode) Signature() string {
	switch n.kind {
	case nodeScalar, nodeVariant:
		return string(n.dbusType)
	case nodeArray:
		return "a" + n.children[0].Signature()
	case nodeStruct:
		var b strings.Builder
		b.WriteByte('(')
		for _, c := range n.children {
			b.WriteString(c.Signature())
		}
		b.WriteByte(')')
		return b.String()
	case nodeDictEntry:
		return "{" + n.children[0].Signature() + n.children[1].Signature() + "}"
	default:
		panic(fmt.Sprintf("ArgumentNode: unknown kind %d", n.kind))
	}
}

func (n *ArgumentNode) String() string {
	if n.name != "" {
		return fmt.Sprintf("%s(%s)", n.name, n.Signature())
	}
	return n.Signature()
}
