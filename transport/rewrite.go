package transport

import (
	"net"

	"github.com/sipware/sipcore/sip"
)

// RequestHeaderCustomizer and ResponseHeaderCustomizer are the two optional
// user hooks C6 runs before the default placeholder rewrite, per spec
// §4.6. Returning a non-nil header replaces the message's current one; the
// default rewrite still runs afterward so placeholders are always
// substituted.
type RequestHeaderCustomizer func(local, remote sip.Addr, req *sip.Request) sip.Header
type ResponseHeaderCustomizer func(local, remote sip.Addr, res *sip.Response) sip.Header

// isPlaceholderHost reports whether host is the wildcard placeholder that
// must be rewritten before a message hits the wire: IPv4 0.0.0.0 or IPv6 ::0
// (spec §3 invariants), or simply empty.
func isPlaceholderHost(host string) bool {
	if host == "" {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsUnspecified()
}

// rewriteVia substitutes the chosen local endpoint into the top Via header
// if it currently names a placeholder, and always sets the via transport
// param to match the protocol actually used to send, per spec §4.4.
func rewriteVia(local sip.Addr, network string, via *sip.ViaHeader) {
	if via == nil {
		return
	}
	if isPlaceholderHost(via.Host) {
		via.Host = hostOf(local)
		if via.Port <= 0 {
			via.Port = local.Port
		}
	}
	via.Transport = NetworkToUpperName(network)
}

// rewriteFrom substitutes the chosen local endpoint into the From URI host
// if it is a placeholder.
func rewriteFrom(local sip.Addr, from *sip.FromHeader) {
	if from == nil {
		return
	}
	if isPlaceholderHost(from.Address.Host) {
		from.Address.Host = hostOf(local)
	}
}

// rewriteContact substitutes the Contact URI host/port per spec §4.4: a
// configured contactHost takes precedence (port appended when the override
// parses as a bare IP); otherwise a placeholder host is replaced with the
// local endpoint; scheme/transport are coerced to the send protocol.
func rewriteContact(local sip.Addr, network string, contactHost string, contact *sip.ContactHeader) {
	if contact == nil {
		return
	}

	if contactHost != "" {
		if ip := net.ParseIP(contactHost); ip != nil {
			contact.Address.Host = contactHost
			contact.Address.Port = local.Port
		} else {
			contact.Address.Host = contactHost
		}
	} else if isPlaceholderHost(contact.Address.Host) {
		contact.Address.Host = hostOf(local)
		contact.Address.Port = local.Port
	}

	contact.Address.Encrypted = network == "tls" || network == "TLS" || network == "wss" || network == "WSS"
	if contact.Address.UriParams == nil {
		contact.Address.UriParams = sip.NewParams()
	}
	switch NetworkToLower(network) {
	case "udp":
		contact.Address.UriParams.Remove("transport")
	default:
		contact.Address.UriParams.Add("transport", NetworkToLower(network))
	}
}

func hostOf(a sip.Addr) string {
	if a.IP != nil {
		return a.IP.String()
	}
	return a.Hostname
}

// NetworkToUpperName renders a network string the way Via's transport token
// is written on the wire ("UDP", "TCP", "TLS", "WS", "WSS").
func NetworkToUpperName(network string) string {
	switch NetworkToLower(network) {
	case "udp":
		return "UDP"
	case "tcp":
		return "TCP"
	case "tls":
		return "TLS"
	case "ws":
		return "WS"
	case "wss":
		return "WSS"
	default:
		return sip.ASCIIToUpper(network)
	}
}

// rewriteOutboundRequest applies the C6 default rewrite to a request about
// to be sent over network from local, after any customizeRequest hook has
// already had a chance to replace headers wholesale.
func (l *Layer) rewriteOutboundRequest(local sip.Addr, network string, req *sip.Request) {
	if l.customizeRequest != nil {
		if h := l.customizeRequest(local, sip.Addr{}, req); h != nil {
			req.ReplaceHeader(h)
		}
	}
	rewriteVia(local, network, req.Via())
	rewriteFrom(local, req.From())
	rewriteContact(local, network, l.ContactHost, req.Contact())
}

func (l *Layer) rewriteOutboundResponse(local sip.Addr, network string, res *sip.Response) {
	if l.customizeResponse != nil {
		if h := l.customizeResponse(local, sip.Addr{}, res); h != nil {
			res.ReplaceHeader(h)
		}
	}
	rewriteContact(local, network, l.ContactHost, res.Contact())
}
