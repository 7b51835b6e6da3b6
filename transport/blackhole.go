package transport

import "net"

// blackholeV4 and blackholeV6 are the blackhole destination addresses, the
// unspecified address of each family. They are unexported, so code outside
// this package cannot override them. ClientRequestConnection refuses a
// request whose resolved destination is one of them: it opens no connection
// and writes nothing to the wire, and it returns an error rather than
// reporting the send as successful.
var (
	blackholeV4 = net.IPv4zero
	blackholeV6 = net.IPv6unspecified
)

// isBlackhole reports whether ip is the blackhole address for its family.
func isBlackhole(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip4 := ip.To4(); ip4 != nil {
		return ip4.Equal(blackholeV4)
	}
	return ip.Equal(blackholeV6)
}
