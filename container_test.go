package dbus

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kr/pretty"

	"github.com/darlinghq/libs-dbuskit/fragments"
	"github.com/darlinghq/libs-dbuskit/wire"
)

func TestScalarRoundTrip(t *testing.T) {
	// Scenario 1: construct node from "i", marshal host int 42, unmarshal
	// the result, and get 42 back.
	n := mustNode(t, "i", nil)
	w := wire.NewWriter(fragments.BigEndian)
	if err := n.Marshal(int32(42), w); err != nil {
		t.Fatalf("Marshal got err %v", err)
	}

	r := wire.NewReader(fragments.BigEndian, "i", w.Bytes())
	got, err := n.Unmarshal(r)
	if err != nil {
		t.Fatalf("Unmarshal got err %v", err)
	}
	if got != int32(42) {
		t.Errorf("round trip got %v, want 42", got)
	}
}

func TestArrayRoundTrip(t *testing.T) {
	n := mustNode(t, "as", nil)
	want := []any{"foo", "bar", "baz"}

	w := wire.NewWriter(fragments.BigEndian)
	if err := n.Marshal(want, w); err != nil {
		t.Fatalf("Marshal got err %v", err)
	}

	r := wire.NewReader(fragments.BigEndian, "as", w.Bytes())
	got, err := n.Unmarshal(r)
	if err != nil {
		t.Fatalf("Unmarshal got err %v", err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("round trip diff (-got +want):\n%s", diff)
		t.Logf("got: %# v", pretty.Formatter(got))
	}
}

func TestStructRoundTrip(t *testing.T) {
	n := mustNode(t, "(ibs)", nil)
	want := []any{int32(5), true, "hi"}

	w := wire.NewWriter(fragments.BigEndian)
	if err := n.Marshal(want, w); err != nil {
		t.Fatalf("Marshal got err %v", err)
	}

	r := wire.NewReader(fragments.BigEndian, "(ibs)", w.Bytes())
	got, err := n.Unmarshal(r)
	if err != nil {
		t.Fatalf("Unmarshal got err %v", err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("round trip diff (-got +want):\n%s", diff)
	}
}

func TestDictionaryRoundTrip(t *testing.T) {
	// Scenario 3/4 covered structurally in node_test.go; this exercises
	// the actual wire round trip for a{su}.
	n := mustNode(t, "a{su}", nil)
	want := map[any]any{"a": uint32(1), "b": uint32(2)}

	w := wire.NewWriter(fragments.BigEndian)
	if err := n.Marshal(want, w); err != nil {
		t.Fatalf("Marshal got err %v", err)
	}

	r := wire.NewReader(fragments.BigEndian, "a{su}", w.Bytes())
	got, err := n.Unmarshal(r)
	if err != nil {
		t.Fatalf("Unmarshal got err %v", err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("round trip diff (-got +want):\n%s", diff)
	}
}

func TestVariantDispatch(t *testing.T) {
	// Scenario 5: a wire variant containing i:7 unmarshals to host int32
	// 7, with no static child having been created ahead of time.
	n := mustNode(t, "v", nil)

	w := wire.NewWriter(fragments.BigEndian)
	if err := n.Marshal(int(7), w); err != nil {
		t.Fatalf("Marshal got err %v", err)
	}

	r := wire.NewReader(fragments.BigEndian, "v", w.Bytes())
	got, err := n.Unmarshal(r)
	if err != nil {
		t.Fatalf("Unmarshal got err %v", err)
	}
	if got != int32(7) {
		t.Errorf("variant round trip got %v (%T), want int32(7)", got, got)
	}
}

func TestFullMessageRoundTrip(t *testing.T) {
	// Scenario 7: a struct of mixed scalars and a dict, marshalled
	// through the wire codec and unmarshalled back to an equal value.
	const sig = "(iba{su})"
	n := mustNode(t, sig, nil)
	want := []any{
		int32(5),
		true,
		map[any]any{"x": uint32(1), "y": uint32(2)},
	}

	opens, closes := 0, 0
	w := wrapCounting(wire.NewWriter(fragments.BigEndian), &opens, &closes)
	if err := n.Marshal(want, w); err != nil {
		t.Fatalf("Marshal got err %v", err)
	}
	if opens != closes {
		t.Errorf("P9: opens=%d closes=%d, want equal", opens, closes)
	}

	raw := w.Iterator.(*wire.Writer).Bytes()
	r := wire.NewReader(fragments.BigEndian, sig, raw)
	got, err := n.Unmarshal(r)
	if err != nil {
		t.Fatalf("Unmarshal got err %v", err)
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("round trip diff (-got +want):\n%s", diff)
	}
}

func TestDictionaryDuplicateKeyPolicy(t *testing.T) {
	// P7: a repeated key keeps the first-seen value.
	w := wire.NewWriter(fragments.BigEndian)
	aSub, err := w.OpenContainer('a', "{su}")
	if err != nil {
		t.Fatalf("OpenContainer(a) got err %v", err)
	}
	for _, v := range []uint32{1, 2} {
		eSub, err := aSub.OpenContainer('{', "")
		if err != nil {
			t.Fatalf("OpenContainer({) got err %v", err)
		}
		if err := eSub.AppendBasic("k"); err != nil {
			t.Fatalf("AppendBasic(key) got err %v", err)
		}
		if err := eSub.AppendBasic(v); err != nil {
			t.Fatalf("AppendBasic(value) got err %v", err)
		}
		if err := aSub.CloseContainer(eSub); err != nil {
			t.Fatalf("CloseContainer({) got err %v", err)
		}
	}
	if err := w.CloseContainer(aSub); err != nil {
		t.Fatalf("CloseContainer(a) got err %v", err)
	}

	n := mustNode(t, "a{su}", nil)
	r := wire.NewReader(fragments.BigEndian, "a{su}", w.Bytes())
	got, err := n.Unmarshal(r)
	if err != nil {
		t.Fatalf("Unmarshal got err %v", err)
	}
	m := got.(map[any]any)
	if m["k"] != uint32(1) {
		t.Errorf("duplicate key kept %v, want first-seen value 1", m["k"])
	}
}

func TestNullMarkerSubstitution(t *testing.T) {
	// P8: a nil element in array unmarshal is replaced by the
	// well-known null-marker, never silently dropped. There's no
	// scalar/container combination in this engine that naturally
	// yields a literal nil host value off a real wire message, so this
	// drives unmarshalArray directly with a fake iterator whose second
	// element reports GetBasic() = (nil, nil).
	n := mustNode(t, "ai", nil)
	got, err := n.Unmarshal(&fakeArrayTop{sub: &fakeArrayElems{idx: -1, count: 2}})
	if err != nil {
		t.Fatalf("Unmarshal got err %v", err)
	}
	want := []any{int32(0), Null}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("null substitution diff (-got +want):\n%s", diff)
	}
}

func TestOpenCloseBalanceOnError(t *testing.T) {
	// P9: even on a marshal failure partway through, every opened
	// container is closed.
	n := mustNode(t, "ai", nil)
	opens, closes := 0, 0
	w := wrapCounting(wire.NewWriter(fragments.BigEndian), &opens, &closes)
	err := n.Marshal([]any{1, "not a number", 3}, w)
	if err == nil {
		t.Fatalf("Marshal got no error, want one")
	}
	if opens != closes {
		t.Errorf("P9: opens=%d closes=%d, want equal", opens, closes)
	}
}

// wrapCounting wraps it so every OpenContainer/CloseContainer pair
// increments the shared counters, for verifying P9's balance
// invariant without instrumenting the wire package itself.
func wrapCounting(it wire.Iterator, opens, closes *int) *countingIterator {
	return &countingIterator{Iterator: it, opens: opens, closes: closes}
}

type countingIterator struct {
	wire.Iterator
	opens, closes *int
}

func (c *countingIterator) OpenContainer(kind byte, sig string) (wire.Iterator, error) {
	sub, err := c.Iterator.OpenContainer(kind, sig)
	if err != nil {
		return nil, err
	}
	*c.opens++
	return wrapCounting(sub, c.opens, c.closes), nil
}

func (c *countingIterator) CloseContainer(sub wire.Iterator) error {
	inner, ok := sub.(*countingIterator)
	if !ok {
		return fmt.Errorf("container_test: CloseContainer given a foreign iterator")
	}
	*c.closes++
	return c.Iterator.CloseContainer(inner.Iterator)
}

func (c *countingIterator) Recurse() (wire.Iterator, error) {
	sub, err := c.Iterator.Recurse()
	if err != nil {
		return nil, err
	}
	return wrapCounting(sub, c.opens, c.closes), nil
}

// fakeArrayTop and fakeArrayElems implement wire.Iterator for
// TestNullMarkerSubstitution, simulating an "ai" array whose second
// element decodes to a nil host value.
type fakeArrayTop struct {
	sub *fakeArrayElems
}

func (*fakeArrayTop) ArgType() byte                                    { return 'a' }
func (*fakeArrayTop) GetBasic() (any, error)                           { return nil, fmt.Errorf("not a scalar") }
func (f *fakeArrayTop) Recurse() (wire.Iterator, error)                { return f.sub, nil }
func (*fakeArrayTop) Next() (bool, error)                              { return false, nil }
func (*fakeArrayTop) OpenContainer(byte, string) (wire.Iterator, error) { return nil, fmt.Errorf("read-only") }
func (*fakeArrayTop) AppendBasic(any) error                            { return fmt.Errorf("read-only") }
func (*fakeArrayTop) CloseContainer(wire.Iterator) error               { return fmt.Errorf("read-only") }

type fakeArrayElems struct {
	idx, count int
}

func (f *fakeArrayElems) ArgType() byte {
	if f.idx >= f.count {
		return 0
	}
	return 'i'
}

func (f *fakeArrayElems) GetBasic() (any, error) {
	if f.idx == 1 {
		return nil, nil
	}
	return int32(f.idx), nil
}

func (*fakeArrayElems) Recurse() (wire.Iterator, error) { return nil, fmt.Errorf("not a container") }

func (f *fakeArrayElems) Next() (bool, error) {
	f.idx++
	return f.idx < f.count, nil
}

func (*fakeArrayElems) OpenContainer(byte, string) (wire.Iterator, error) {
	return nil, fmt.Errorf("read-only")
}
func (*fakeArrayElems) AppendBasic(any) error      { return fmt.Errorf("read-only") }
func (*fakeArrayElems) CloseContainer(wire.Iterator) error { return fmt.Errorf("read-only") }
