package dbus

import (
	"fmt"
	"reflect"

	"github.com/darlinghq/libs-dbuskit/wire"
)

// Unbox converts a host value to the wire scalar n requires, per the
// §4.3 table. n must be a scalar node (IsContainer() == false). The
// returned value has the Go type [wire.Writer.AppendBasic] expects
// for n's DBusType: uint8, bool, int16, uint16, int32, uint32, int64,
// uint64, float64, string, [wire.ObjectPathValue], or
// [wire.SignatureValue].
func (n *ArgumentNode) Unbox(host any) (any, error) {
	if n.kind != nodeScalar {
		return nil, fmt.Errorf("dbus: Unbox called on non-scalar node %q", n.Signature())
	}

	switch n.dbusType {
	case 'y':
		v, ok := asUint(host)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not integer-like", host)
		}
		return uint8(v), nil
	case 'b':
		v, ok := asBool(host)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not boolean-like", host)
		}
		return v, nil
	case 'n':
		v, ok := asInt(host)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not integer-like", host)
		}
		return int16(v), nil
	case 'q':
		v, ok := asUint(host)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not integer-like", host)
		}
		return uint16(v), nil
	case 'i':
		v, ok := asInt(host)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not integer-like", host)
		}
		return int32(v), nil
	case 'u':
		v, ok := asUint(host)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not integer-like", host)
		}
		return uint32(v), nil
	case 'x':
		v, ok := asInt(host)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not integer-like", host)
		}
		return v, nil
	case 't':
		v, ok := asUint(host)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not integer-like", host)
		}
		return v, nil
	case 'd':
		v, ok := asFloat(host)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not double-like", host)
		}
		return v, nil
	case 's':
		v, ok := asString(host)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not string-like", host)
		}
		return v, nil
	case 'o':
		p, ok := host.(Proxy)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not a proxy", host)
		}
		parent := proxyParent(n)
		if parent == nil || !p.HasSameScopeAs(parent) {
			return nil, unrepresentablef(n.name, n.dbusType, "proxy %v does not share scope with the enclosing proxy", p)
		}
		return wire.ObjectPathValue(p.Path()), nil
	case 'g':
		so, ok := host.(*ArgumentNode)
		if !ok {
			return nil, unrepresentablef(n.name, n.dbusType, "host value %#v is not a signature-object", host)
		}
		return wire.SignatureValue(so.Signature()), nil
	default:
		return nil, fmt.Errorf("dbus: %q is not a scalar type code", string(n.dbusType))
	}
}

// Box converts a wire scalar value, as returned by
// [wire.Iterator.GetBasic], to the host value n's DBusType boxes to.
func (n *ArgumentNode) Box(raw any) (any, error) {
	if n.kind != nodeScalar {
		return nil, fmt.Errorf("dbus: Box called on non-scalar node %q", n.Signature())
	}

	switch n.dbusType {
	case 'o':
		v, ok := raw.(wire.ObjectPathValue)
		if !ok {
			return nil, &WireTypeMismatchError{Node: n.name, Want: n.dbusType, Got: 0}
		}
		parent := proxyParent(n)
		if parent == nil {
			return nil, unrepresentablef(n.name, n.dbusType, "no enclosing proxy to resolve object path %q against", string(v))
		}
		return parent.SiblingAt(string(v)), nil
	case 'g':
		v, ok := raw.(wire.SignatureValue)
		if !ok {
			return nil, &WireTypeMismatchError{Node: n.name, Want: n.dbusType, Got: 0}
		}
		return FromSignature(string(v), "", nil)
	default:
		return raw, nil
	}
}

func asInt(v any) (int64, bool) {
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	case reflect.Bool:
		if rv.Bool() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func asUint(v any) (uint64, bool) {
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(rv.Int()), true
	case reflect.Bool:
		if rv.Bool() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func asBool(v any) (bool, bool) {
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, true
	default:
		return false, false
	}
}

func asFloat(v any) (float64, bool) {
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	if _, ok := v.(nullMarker); ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String(), true
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), true
	}
	return "", false
}
