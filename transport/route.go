package transport

import (
	"net"

	"github.com/sipware/sipcore/sip"
)

// LocalHosts reports every address this stack can be addressed on, so that
// matching a Route/Request-URI host against "is this us" works for a
// wildcard-bound channel too. Per spec §9's flagged bug: the source narrows
// this check to a single bound host, which fails for 0.0.0.0/:: binds; the
// fix is to enumerate machine-local addresses for those channels instead.
func (l *Layer) LocalHosts() []string {
	hosts := make([]string, 0, 4)

	ifaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return hosts
	}
	for _, a := range ifaceAddrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			hosts = append(hosts, ipNet.IP.String())
		}
	}
	return hosts
}

func (l *Layer) isLocalRouteHost(host string, port int) bool {
	if host == "" {
		return false
	}
	for _, h := range l.LocalHosts() {
		if sip.ASCIIToLower(h) == sip.ASCIIToLower(host) {
			return true
		}
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return true
	}
	return false
}

// preprocessRoute applies RFC 3261 §12.2.1.1/§16.4 Route pre-processing on
// receive, per spec §4.4. It is a no-op (the idempotence property from
// spec §8) when the request carries no Route headers.
func (l *Layer) preprocessRoute(req *sip.Request) {
	route := req.Route()
	if route == nil {
		return
	}

	if req.Recipient.UriParams.Has("lr") {
		// Previous hop treated us as a strict router: our own URI is on
		// the Request-URI, and the real next hop was pushed to the
		// bottom of the Route set. Pop it back into the Request-URI.
		last, rest := popLastRoute(route)
		req.Recipient = last.Address
		req.RemoveHeader("route")
		if rest != nil {
			req.AppendHeader(rest)
		}
		route = rest
	}

	if route != nil && l.isLocalRouteHost(route.Address.Host, route.Address.Port) {
		// Top Route names us; consume it (spec calls this received_route,
		// exposed for callers that want it via req.GetHeader("route")
		// before this call).
		req.RemoveHeader("route")
		if route.Next != nil {
			req.AppendHeader(route.Next)
		}
		route = route.Next
	}

	if route != nil && !route.Address.UriParams.Has("lr") {
		// Next hop is a strict (pre-RFC-3261) router: swap it into the
		// Request-URI and push our current Request-URI to the bottom of
		// the remaining Route set.
		oldURI := req.Recipient
		req.Recipient = route.Address

		bottom := &sip.RouteHeader{Address: oldURI}
		rest := route.Next
		if rest == nil {
			req.ReplaceHeader(bottom)
		} else {
			tail := rest
			for tail.Next != nil {
				tail = tail.Next
			}
			tail.Next = bottom
			req.ReplaceHeader(rest)
		}
	}
}

// popLastRoute removes and returns the last Route hop, along with the
// remaining chain (nil if route was the only hop).
func popLastRoute(route *sip.RouteHeader) (last *sip.RouteHeader, rest *sip.RouteHeader) {
	if route.Next == nil {
		return route, nil
	}
	prev := route
	cur := route.Next
	for cur.Next != nil {
		prev = cur
		cur = cur.Next
	}
	prev.Next = nil
	return cur, route
}
