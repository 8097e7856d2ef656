package dbus

import "fmt"

// coreError is implemented by all five error kinds this package
// returns, so callers can distinguish "one of ours" from an error
// surfaced by a collaborator (a [Proxy] or [CallFrame] implementation).
type coreError interface {
	error
	corePackageError()
}

// MalformedSignatureError is returned when a signature string is
// invalid, describes more than one complete type where exactly one is
// required, has a container with the wrong number of children, or
// uses a non-basic type as a dict-entry key.
type MalformedSignatureError struct {
	// Signature is the offending signature text, or the sub-signature
	// at the point of failure.
	Signature string
	// Reason is a short, human-readable explanation.
	Reason string
}

func (e *MalformedSignatureError) Error() string {
	return fmt.Sprintf("dbus: malformed signature %q: %s", e.Signature, e.Reason)
}

func (*MalformedSignatureError) corePackageError() {}

func malformedf(sig string, reason string, args ...any) *MalformedSignatureError {
	return &MalformedSignatureError{Signature: sig, Reason: fmt.Sprintf(reason, args...)}
}

// WireTypeMismatchError is returned when, on unmarshal, the type code
// or element type found on the wire doesn't match the static type the
// ArgumentNode tree expects at that position.
type WireTypeMismatchError struct {
	// Node names the argument node that performed the check, for
	// diagnostics only.
	Node string
	// Want is the D-Bus type code the tree expects.
	Want byte
	// Got is the D-Bus type code found on the wire.
	Got byte
}

func (e *WireTypeMismatchError) Error() string {
	return fmt.Sprintf("dbus: wire type mismatch at %q: want %q, got %q", e.Node, string(e.Want), string(e.Got))
}

func (*WireTypeMismatchError) corePackageError() {}

// HostTypeMismatchError is returned by the call-frame bridge when a
// slot's declared host type doesn't match the type an ArgumentNode
// expects to read or write there.
type HostTypeMismatchError struct {
	// Index is the call-frame slot index; -1 denotes the return slot.
	Index int
	// Want is the host type the node expected.
	Want HostClass
	// Got is the host type the frame declared for the slot.
	Got HostClass
}

func (e *HostTypeMismatchError) Error() string {
	return fmt.Sprintf("dbus: call frame slot %d: want host type %v, got %v", e.Index, e.Want, e.Got)
}

func (*HostTypeMismatchError) corePackageError() {}

// UnrepresentableValueError is returned when a host value cannot be
// unboxed to the wire scalar its ArgumentNode requires: a failed
// capability check (wrong kind of value), or an object path whose
// proxy scope doesn't match the enclosing proxy.
type UnrepresentableValueError struct {
	// Node names the argument node that performed the check, for
	// diagnostics only.
	Node string
	// DBusType is the D-Bus type the value was being unboxed for.
	DBusType byte
	// Reason is a short, human-readable explanation.
	Reason string
}

func (e *UnrepresentableValueError) Error() string {
	return fmt.Sprintf("dbus: value not representable as %q at %q: %s", string(e.DBusType), e.Node, e.Reason)
}

func (*UnrepresentableValueError) corePackageError() {}

func unrepresentablef(node string, dbusType byte, reason string, args ...any) *UnrepresentableValueError {
	return &UnrepresentableValueError{Node: node, DBusType: dbusType, Reason: fmt.Sprintf(reason, args...)}
}

// OutOfWireSpaceError is returned when the underlying [wire.Iterator]
// refuses to append further data. It is fatal to the current marshal
// operation only.
type OutOfWireSpaceError struct {
	// Reason wraps the underlying iterator error, if any.
	Reason error
}

func (e *OutOfWireSpaceError) Error() string {
	if e.Reason == nil {
		return "dbus: out of wire space"
	}
	return fmt.Sprintf("dbus: out of wire space: %s", e.Reason)
}

func (e *OutOfWireSpaceError) Unwrap() error { return e.Reason }

func (*OutOfWireSpaceError) corePackageError() {}
