package dbus

import "reflect"

// nullMarker is the well-known singleton host value substituted for a
// nil array element or a nil dict key/value during unmarshal, so a
// missing element is visible on inspection rather than silently
// dropped (P8).
type nullMarker struct{}

func (nullMarker) String() string { return "<dbus.Null>" }

// Null is the host value [ArgumentNode.Unmarshal] substitutes for any
// nil element it would otherwise have produced.
var Null = nullMarker{}

// isNilHost reports whether v is either a literal nil or the typed
// nil of some pointer/interface-bearing host value, either of which
// the container codec must replace with [Null] rather than propagate.
// A plain v == nil check only catches the former: a [Proxy]
// implementation (other than the bundled [SimpleProxy]) that returns a
// nil *T through an interface is not == nil but still has nothing to
// report, so this goes through reflect to catch it too.
func isNilHost(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
