package parser

import (
	"errors"
	"strconv"
	"strings"

	"github.com/sipware/sipcore/sip"
)

// parseViaHeader parses one Via header value. A Via value may hold a
// comma-separated list of hops; RFC 3261 treats that as several logical
// Via entries stacked on one header line rather than separate headers. The
// first hop is returned, and each following hop is parsed into the Next
// field of the one before it.
func parseViaHeader(headerName string, headerText string) (header sip.Header, err error) {
	h := sip.ViaHeader{
		Params: sip.HeaderParams{},
	}
	hop := &h
	state := viaParseProtocolName
	offset := 0

	for state != nil {
		var advance int
		state, advance, err = state(hop, headerText[offset:])
		if err != nil {
			if _, ok := err.(errComaDetected); !ok {
				return &h, err
			}
			// Skip the comma and the whitespace after it, then parse the
			// next hop.
			offset += advance + 1
			for offset < len(headerText) && strings.IndexByte(abnfWs, headerText[offset]) >= 0 {
				offset++
			}
			hop.Next = &sip.ViaHeader{Params: sip.HeaderParams{}}
			hop = hop.Next
			err = nil
			continue
		}
		offset += advance
	}
	return &h, nil
}

// viaParseState is one step of the Via grammar:
// protocol-name "/" protocol-version "/" transport host[:port] *(";" param).
type viaParseState func(h *sip.ViaHeader, s string) (next viaParseState, advance int, err error)

func viaParseProtocolName(h *sip.ViaHeader, s string) (viaParseState, int, error) {
	slash := strings.IndexRune(s, '/')
	if slash < 0 {
		return nil, 0, errors.New("malformed protocol name in Via header")
	}
	h.ProtocolName = s[:slash]
	return viaParseProtocolVersion, slash + 1, nil
}

func viaParseProtocolVersion(h *sip.ViaHeader, s string) (viaParseState, int, error) {
	slash := strings.IndexRune(s, '/')
	if slash < 0 {
		return nil, 0, errors.New("malformed protocol version in Via header")
	}
	h.ProtocolVersion = s[:slash]
	return viaParseTransport, slash + 1, nil
}

func viaParseTransport(h *sip.ViaHeader, s string) (viaParseState, int, error) {
	sp := strings.IndexAny(s, " \t")
	if sp < 0 {
		return nil, 0, errors.New("malformed transport in Via header")
	}
	h.Transport = s[:sp]
	return viaParseHost, sp + 1, nil
}

func viaParseHost(h *sip.ViaHeader, s string) (viaParseState, int, error) {
	colonAt := 0
	hostEnd := len(s)

scan:
	for i, c := range s {
		switch c {
		case ';':
			hostEnd = i
			break scan
		case ':':
			colonAt = i
		}
	}

	if colonAt > 0 {
		port, err := strconv.Atoi(s[colonAt+1 : hostEnd])
		if err != nil {
			return nil, 0, nil
		}
		h.Port = port
		h.Host = s[:colonAt]
	} else {
		h.Host = s[:hostEnd]
	}

	if hostEnd == len(s) {
		return nil, 0, nil
	}
	return viaParseParams, hostEnd + 1, nil
}

func viaParseParams(h *sip.ViaHeader, s string) (viaParseState, int, error) {
	if coma := strings.IndexRune(s, ','); coma > 0 {
		if _, err := UnmarshalParams(s[:coma], ';', ',', &h.Params); err != nil {
			return nil, 0, err
		}
		return viaParseProtocolName, coma, errComaDetected(coma)
	}

	_, err := UnmarshalParams(s, ';', '\r', &h.Params)
	return nil, 0, err
}
