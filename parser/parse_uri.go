package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sipware/sipcore/sip"
)

// uriParseState is one step of the sip:/sips: URI grammar
// (RFC 3261 §19.1.1): sip:user:password@host:port;uri-parameters?headers.
// Each step consumes a prefix of s, records what it found onto uri, and
// returns the next step plus whatever of s remains. A nil next step means
// parsing is done.
type uriParseState func(uri *sip.Uri, s string) (next uriParseState, rest string, err error)

// ParseUri parses uriStr into uri in place.
func ParseUri(uriStr string, uri *sip.Uri) error {
	if len(uriStr) == 0 {
		return errors.New("empty URI")
	}

	state := parseURIScheme
	rest := uriStr
	for state != nil {
		var err error
		state, rest, err = state(uri, rest)
		if err != nil {
			return err
		}
	}
	return nil
}

func parseURIScheme(uri *sip.Uri, s string) (uriParseState, string, error) {
	switch {
	case len(s) >= 5 && strings.EqualFold(s[:5], "sips:"):
		uri.Encrypted = true
		return parseURIUserinfo, s[5:], nil
	case len(s) >= 4 && strings.EqualFold(s[:4], "sip:"):
		return parseURIUserinfo, s[4:], nil
	default:
		return parseURIHost, s, nil
	}
}

// parseURIUserinfo looks for "user[:password]@" anywhere in the rest of the
// URI; if no '@' appears at all, there's no userinfo and the whole string
// belongs to the host.
func parseURIUserinfo(uri *sip.Uri, s string) (uriParseState, string, error) {
	colonAt := -1
	for i, c := range s {
		if c == ':' {
			colonAt = i
		}
		if c == '@' {
			if colonAt >= 0 {
				uri.User = s[:colonAt]
				uri.Password = s[colonAt+1 : i]
			} else {
				uri.User = s[:i]
			}
			return parseURIHost, s[i+1:], nil
		}
	}
	return parseURIHost, s, nil
}

func parseURIHost(uri *sip.Uri, s string) (uriParseState, string, error) {
	for i, c := range s {
		switch c {
		case ':':
			uri.Host = s[:i]
			return parseURIPort, s[i+1:], nil
		case ';':
			uri.Host = s[:i]
			return parseURIParams, s[i+1:], nil
		case '?':
			uri.Host = s[:i]
			return parseURIHeaders, s[i+1:], nil
		}
	}
	uri.Host = s
	return parseURIParams, "", nil
}

func parseURIPort(uri *sip.Uri, s string) (uriParseState, string, error) {
	for i, c := range s {
		switch c {
		case ';':
			port, err := strconv.Atoi(s[:i])
			uri.Port = port
			return parseURIParams, s[i+1:], err
		case '?':
			port, err := strconv.Atoi(s[:i])
			uri.Port = port
			return parseURIHeaders, s[i+1:], err
		}
	}
	port, err := strconv.Atoi(s)
	uri.Port = port
	return nil, s, err
}

func parseURIParams(uri *sip.Uri, s string) (uriParseState, string, error) {
	if len(s) == 0 {
		uri.UriParams = sip.NewParams()
		uri.Headers = sip.NewParams()
		return nil, s, nil
	}

	uri.UriParams = sip.NewParams()
	consumed, err := UnmarshalParams(s, ';', '?', &uri.UriParams)
	if err != nil {
		return nil, s, err
	}

	if consumed == len(s) {
		consumed--
	}
	if s[consumed] != '?' {
		return nil, s, nil
	}

	return parseURIHeaders, s[consumed+1:], nil
}

func parseURIHeaders(uri *sip.Uri, s string) (uriParseState, string, error) {
	uri.Headers = sip.NewParams()
	if _, err := UnmarshalParams(s, '&', 0, &uri.Headers); err != nil {
		return nil, s, fmt.Errorf("parsing URI headers: %w", err)
	}
	return nil, s, nil
}
