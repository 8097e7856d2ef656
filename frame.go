package dbus

import "github.com/darlinghq/libs-dbuskit/wire"

// CallFrame is an abstract call record with read/write access to
// arguments by index and to a return slot, each slot declaring the
// host type it expects values to arrive or leave in. It is supplied
// by the enclosing binding's invocation machinery; this core only
// consumes it, through [ArgumentNode.UnmarshalInto] and
// [ArgumentNode.MarshalFrom].
type CallFrame interface {
	// SlotHostType returns the host type the frame declares for the
	// argument at index, or for the return slot when index == -1.
	SlotHostType(index int) HostClass
	// Arg returns the current value of the argument at index, or of
	// the return slot when index == -1.
	Arg(index int) any
	// SetArg stores v as the value of the argument at index, or of
	// the return slot when index == -1.
	SetArg(index int, v any)
}

// expectedFrameType is the host type n requires a CallFrame slot to
// declare: the generic boxed-object sentinel when boxed is true, or
// n's own hostClass when boxing is disabled.
func (n *ArgumentNode) expectedFrameType(boxed bool) HostClass {
	if boxed {
		return HostClassBoxedObject
	}
	return n.hostClass
}

// UnmarshalInto reads one value of n's type from it and stores it
// into frame's slot at index (-1 for the return slot), after
// asserting that the slot's declared host type matches n's (P12).
func (n *ArgumentNode) UnmarshalInto(it wire.Iterator, frame CallFrame, index int, boxed bool) error {
	want := n.expectedFrameType(boxed)
	if got := frame.SlotHostType(index); got != want {
		return &HostTypeMismatchError{Index: index, Want: want, Got: got}
	}
	v, err := n.Unmarshal(it)
	if err != nil {
		return err
	}
	frame.SetArg(index, v)
	return nil
}

// MarshalFrom reads frame's slot at index (-1 for the return slot)
// and marshals it onto it, after the same strict type assertion as
// [ArgumentNode.UnmarshalInto].
func (n *ArgumentNode) MarshalFrom(frame CallFrame, index int, it wire.Iterator, boxed bool) error {
	want := n.expectedFrameType(boxed)
	if got := frame.SlotHostType(index); got != want {
		return &HostTypeMismatchError{Index: index, Want: want, Got: got}
	}
	return n.Marshal(frame.Arg(index), it)
}
