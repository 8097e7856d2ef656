package dbus

import "fmt"

// Proxy identifies a remote object on the bus: a service name, an
// endpoint within that service, and an object path. The argument
// model only depends on this small interface; the enclosing binding's
// real, RPC-capable proxy type only needs to satisfy it.
type Proxy interface {
	// Service returns the bus name the proxy talks to.
	Service() string
	// Endpoint returns the interface or connection endpoint the proxy
	// is scoped to.
	Endpoint() string
	// Path returns the proxy's object path.
	Path() string
	// HasSameScopeAs reports whether other names the same service and
	// endpoint as the receiver. Object paths are only meaningful
	// within one scope.
	HasSameScopeAs(other Proxy) bool
	// SiblingAt returns a new Proxy with the same service and
	// endpoint as the receiver, but at a different path.
	SiblingAt(path string) Proxy
}

// proxyParent walks n's parent chain upward until it finds something
// implementing [Proxy], returning nil if the chain ends first (either
// at a nil parent, or at a collaborator that isn't a Proxy and
// doesn't expose a parent of its own).
func proxyParent(n *ArgumentNode) Proxy {
	var cur any = n.parent
	for {
		switch v := cur.(type) {
		case nil:
			return nil
		case Proxy:
			return v
		case *ArgumentNode:
			cur = v.parent
		default:
			return nil
		}
	}
}

// SimpleProxy is a minimal [Proxy] implementation: a bare
// service/endpoint/path triple with scope comparison and a sibling
// factory. It exists so ProxyBinding and the object-path scalar rules
// are testable without a real bus connection; the enclosing binding
// is expected to supply its own RPC-capable Proxy instead.
type SimpleProxy struct {
	service  string
	endpoint string
	path     string
}

// NewSimpleProxy returns a SimpleProxy identifying (service, endpoint,
// path).
func NewSimpleProxy(service, endpoint, path string) *SimpleProxy {
	return &SimpleProxy{service: service, endpoint: endpoint, path: path}
}

func (p *SimpleProxy) Service() string  { return p.service }
func (p *SimpleProxy) Endpoint() string { return p.endpoint }
func (p *SimpleProxy) Path() string     { return p.path }

func (p *SimpleProxy) HasSameScopeAs(other Proxy) bool {
	if other == nil {
		return false
	}
	return p.service == other.Service() && p.endpoint == other.Endpoint()
}

func (p *SimpleProxy) SiblingAt(path string) Proxy {
	return &SimpleProxy{service: p.service, endpoint: p.endpoint, path: path}
}

func (p *SimpleProxy) String() string {
	return fmt.Sprintf("%s:%s%s", p.service, p.endpoint, p.path)
}
