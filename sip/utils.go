package sip

import (
	"errors"
	"io"
	"math/rand"
	"net"
	"strings"
)

const (
	letterBytes   = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	letterIdxBits = 6                    // bits needed to index into letterBytes
	letterIdxMask = 1<<letterIdxBits - 1 // mask of letterIdxBits 1-bits
	letterIdxMax  = 63 / letterIdxBits   // letter indices that fit in 63 random bits
)

// abnf lists characters treated as whitespace/separators by the ABNF grammar
// (RFC 3261 §25.1 WSP, plus the separators that force a param value to be
// quoted when rendering it back to wire form).
const abnf = " \t\r\n,;"

// RandStringBytesMask fills n random letters/digits into sb, reusing sb's
// backing array across calls (branch/tag generation wants no per-call
// allocation). See https://stackoverflow.com/questions/22892120 for the
// bitmask technique: one rand.Int63() yields letterIdxMax usable indices.
func RandStringBytesMask(sb *strings.Builder, n int) string {
	sb.Grow(n)
	for i, cache, remain := n-1, rand.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = rand.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			sb.WriteByte(letterBytes[idx])
			i--
		}
		cache >>= letterIdxBits
		remain--
	}

	return sb.String()
}

// ASCIIToLower avoids the allocation-heavy path of strings.ToLower when s is
// already lowercase, which is the common case for header names on the wire.
func ASCIIToLower(s string) string {
	firstUpper := -1
	for i, c := range s {
		if 'a' <= c && c <= 'z' {
			continue
		}
		firstUpper = i
		break
	}
	if firstUpper < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:firstUpper])
	for i := firstUpper; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func ASCIIToUpper(s string) string {
	firstLower := -1
	for i, c := range s {
		if 'A' <= c && c <= 'Z' {
			continue
		}
		firstLower = i
		break
	}
	if firstLower < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:firstLower])
	for i := firstLower; i < len(s); i++ {
		c := s[i]
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// HeaderToLower lowercases a header name, short-circuiting the handful of
// names seen on every message so the common path allocates nothing.
func HeaderToLower(s string) string {
	switch s {
	case "Via", "via":
		return "via"
	case "From", "from":
		return "from"
	case "To", "to":
		return "to"
	case "Call-ID", "call-id":
		return "call-id"
	case "Contact", "contact":
		return "contact"
	case "CSeq", "CSEQ", "cseq":
		return "cseq"
	case "Content-Type", "content-type":
		return "content-type"
	case "Route", "route":
		return "route"
	case "Record-Route", "record-route":
		return "record-route"
	case "Max-Forwards":
		return "max-forwards"
	case "Timestamp", "timestamp":
		return "timestamp"
	}

	return ASCIIToLower(s)
}

// UriIsSIP reports whether s is the "sip" URI scheme, case-insensitively.
func UriIsSIP(s string) bool {
	switch s {
	case "sip", "SIP":
		return true
	}
	return ASCIIToLower(s) == "sip"
}

// ResolveInterfacesIP walks the host's network interfaces looking for an
// address on network ("ip4" or "ip6"); when targetIP is given, only an
// address inside targetIP's subnet is returned. Loopback interfaces are skipped unless
// targetIP itself is a loopback address.
func ResolveInterfacesIP(network string, targetIP *net.IPNet) (net.IP, net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, net.Interface{}, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 {
			if targetIP != nil && !targetIP.IP.IsLoopback() {
				continue
			}
		}

		ip, err := interfaceIPInSubnet(iface, network, targetIP)
		if errors.Is(err, io.EOF) {
			continue
		}
		return ip, iface, err
	}

	return nil, net.Interface{}, errors.New("no interface found on system")
}

// interfaceIPInSubnet returns io.EOF when iface has no address matching
// network/targetIP, so the caller can move on to the next interface.
func interfaceIPInSubnet(iface net.Interface, network string, targetIP *net.IPNet) (net.IP, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			// multicast addresses surface as *net.IPAddr, not *net.IPNet
			continue
		}
		ip := ipNet.IP
		if targetIP != nil {
			if !targetIP.Contains(ip) {
				continue
			}
		} else if ip.IsLoopback() {
			continue
		}

		if ip == nil {
			continue
		}

		switch network {
		case "ip4":
			if ip.To4() == nil {
				continue
			}
		case "ip6":
			if ip.To4() != nil {
				continue
			}
		}

		return ip, nil
	}
	return nil, io.EOF
}

// MessageShortString dumps a short version of msg, for logging.
func MessageShortString(msg Message) string {
	switch m := msg.(type) {
	case *Request:
		return m.Short()
	case *Response:
		return m.Short()
	}
	return "unknown message type"
}
