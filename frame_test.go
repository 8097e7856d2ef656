package dbus

import (
	"testing"

	"github.com/darlinghq/libs-dbuskit/fragments"
	"github.com/darlinghq/libs-dbuskit/wire"
)

// fakeFrame is a minimal CallFrame for exercising UnmarshalInto/
// MarshalFrom: slots is keyed by index, -1 denoting the return slot.
type fakeFrame struct {
	slotTypes map[int]HostClass
	slotVals  map[int]any
}

func (f *fakeFrame) SlotHostType(index int) HostClass { return f.slotTypes[index] }
func (f *fakeFrame) Arg(index int) any                { return f.slotVals[index] }
func (f *fakeFrame) SetArg(index int, v any)           { f.slotVals[index] = v }

func TestMarshalFromStrictTypeAssertion(t *testing.T) {
	// P12: MarshalFrom rejects a slot whose declared host type doesn't
	// match the node's expected type.
	n := mustNode(t, "i", nil)
	frame := &fakeFrame{
		slotTypes: map[int]HostClass{0: HostClassString}, // wrong: node wants HostClassNumber
		slotVals:  map[int]any{0: int32(5)},
	}
	w := wire.NewWriter(fragments.BigEndian)
	err := n.MarshalFrom(frame, 0, w, false)
	if err == nil {
		t.Fatalf("MarshalFrom got no error, want HostTypeMismatchError")
	}
	if _, ok := err.(*HostTypeMismatchError); !ok {
		t.Errorf("MarshalFrom got %T, want *HostTypeMismatchError", err)
	}
}

func TestMarshalFromAcceptsMatchingType(t *testing.T) {
	n := mustNode(t, "i", nil)
	frame := &fakeFrame{
		slotTypes: map[int]HostClass{0: HostClassNumber},
		slotVals:  map[int]any{0: int32(5)},
	}
	w := wire.NewWriter(fragments.BigEndian)
	if err := n.MarshalFrom(frame, 0, w, false); err != nil {
		t.Fatalf("MarshalFrom got err %v", err)
	}
}

func TestUnmarshalIntoStrictTypeAssertion(t *testing.T) {
	n := mustNode(t, "i", nil)
	frame := &fakeFrame{
		slotTypes: map[int]HostClass{-1: HostClassSequence}, // wrong: node wants HostClassNumber
		slotVals:  map[int]any{},
	}
	w := wire.NewWriter(fragments.BigEndian)
	if err := n.Marshal(int32(5), w); err != nil {
		t.Fatalf("Marshal setup got err %v", err)
	}
	r := wire.NewReader(fragments.BigEndian, "i", w.Bytes())

	err := n.UnmarshalInto(r, frame, -1, false)
	if err == nil {
		t.Fatalf("UnmarshalInto got no error, want HostTypeMismatchError")
	}
	if _, ok := err.(*HostTypeMismatchError); !ok {
		t.Errorf("UnmarshalInto got %T, want *HostTypeMismatchError", err)
	}
}

func TestUnmarshalIntoAcceptsBoxedSentinel(t *testing.T) {
	// When boxed is true, the frame must declare HostClassBoxedObject
	// regardless of the node's own unboxed host class.
	n := mustNode(t, "o", NewSimpleProxy("s", "e", "/"))
	frame := &fakeFrame{
		slotTypes: map[int]HostClass{0: HostClassBoxedObject},
		slotVals:  map[int]any{},
	}
	w := wire.NewWriter(fragments.BigEndian)
	if err := w.AppendBasic(wire.ObjectPathValue("/x")); err != nil {
		t.Fatalf("setup got err %v", err)
	}
	r := wire.NewReader(fragments.BigEndian, "o", w.Bytes())
	if err := n.UnmarshalInto(r, frame, 0, true); err != nil {
		t.Fatalf("UnmarshalInto(boxed) got err %v", err)
	}
	if _, ok := frame.Arg(0).(Proxy); !ok {
		t.Errorf("UnmarshalInto(boxed) stored %T, want Proxy", frame.Arg(0))
	}
}
