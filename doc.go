// Package dbus implements the D-Bus argument model and marshalling
// engine: parsing a type signature into a tree of typed argument
// nodes, and marshalling host values to and from the D-Bus wire
// format through the [wire.Iterator] abstraction.
//
// An [ArgumentNode] describes exactly one complete D-Bus type,
// constructed from a signature with [FromSignature]. Scalar nodes box
// and unbox through [ArgumentNode.Box] and [ArgumentNode.Unbox];
// container nodes (arrays, structs, dict entries, dictionaries and
// variants) marshal and unmarshal through [ArgumentNode.Marshal] and
// [ArgumentNode.Unmarshal], recursing into their children.
//
// This package does not open a bus connection, dispatch RPCs, or
// parse introspection XML: those are the responsibility of the
// enclosing binding, which hands this package a [wire.Iterator] and,
// for object paths, something implementing [Proxy].
package dbus
