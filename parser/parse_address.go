package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sipware/sipcore/sip"
)

// ParseAddressValue parses a single name-addr/addr-spec value, as found in
// a From, To, Contact, Route, or Record-Route header (RFC 3261 §20.10), and
// adds its header parameters to headerParams. It does not accept a
// comma-separated list of addresses; the Contact, Route and Record-Route
// parsers reject such a list before calling it.
func ParseAddressValue(addressText string, uri *sip.Uri, headerParams *sip.HeaderParams) (displayName string, err error) {
	var semicolon, equal, startQuote, endQuote int = -1, -1, -1, -1
	var paramName string
	var uriStart, uriEnd int = 0, -1
	var inBrackets bool
	for i, c := range addressText {
		switch c {
		case '"':
			if startQuote < 0 {
				startQuote = i
			} else {
				endQuote = i
			}
		case '<':
			if uriStart > 0 {
				// This must be additional options parsing
				continue
			}

			// display-name   =  *(token LWS)/ quoted-string
			if endQuote > 0 {
				displayName = addressText[startQuote+1 : endQuote]
				startQuote, endQuote = -1, -1
			} else {
				displayName = strings.TrimSpace(addressText[:i])
			}
			uriStart = i + 1
			inBrackets = true
		case '>':
			// uri can be without <> in that case there all after ; are header params
			uriEnd = i
			equal = -1
			inBrackets = false
		case ';':
			semicolon = i
			// uri can be without <> in that case there all after ; are header params
			if inBrackets {
				continue
			}

			if uriEnd < 0 {
				uriEnd = i
				continue
			}

			if equal > 0 {
				val := addressText[equal+1 : i]
				headerParams.Add(paramName, val)
				paramName, val = "", ""
				equal = 0
			}

		case '=':
			paramName = addressText[semicolon+1 : i]
			equal = i
		case '*':
			if startQuote > 0 || uriStart > 0 {
				continue
			}
			*uri = sip.Uri{
				Wildcard: true,
			}
			return
		}
	}

	if uriEnd < 0 {
		uriEnd = len(addressText)
	}

	if uriStart > uriEnd {
		return "", errors.New("malformed URI in address value")
	}

	err = ParseUri(addressText[uriStart:uriEnd], uri)
	if err != nil {
		return
	}

	if equal > 0 {
		val := addressText[equal+1:]
		headerParams.Add(paramName, val)
		paramName, val = "", ""
	}

	return
}

// parseToAddressHeader builds a To header; the wildcard "*" URI is rejected
// here since RFC 3261 only permits it in Contact.
func parseToAddressHeader(headerName string, headerText string) (header sip.Header, err error) {
	h := &sip.ToHeader{
		Address: sip.Uri{},
		Params:  sip.NewParams(),
	}
	h.DisplayName, err = ParseAddressValue(headerText, &h.Address, &h.Params)
	if err != nil {
		return
	}

	if h.Address.Wildcard {
		err = fmt.Errorf("wildcard uri not permitted in To: header: %s", headerText)
		return
	}
	return h, nil
}

// parseFromAddressHeader builds a From header; same wildcard restriction
// as To.
func parseFromAddressHeader(headerName string, headerText string) (header sip.Header, err error) {
	h := sip.FromHeader{
		Address: sip.Uri{},
		Params:  sip.NewParams(),
	}
	h.DisplayName, err = ParseAddressValue(headerText, &h.Address, &h.Params)
	if err != nil {
		return
	}

	if h.Address.Wildcard {
		err = fmt.Errorf("wildcard uri not permitted in From: header: %s", headerText)
		return
	}
	return &h, nil
}

// parseContactAddressHeader builds a Contact header. It scans for the comma
// that would start a second address in a list (rejected: this parser takes
// one address at a time) while tracking bracket/quote nesting so a comma
// inside a quoted display-name or inside <> doesn't get mistaken for one.
func parseContactAddressHeader(headerName string, headerText string) (header sip.Header, err error) {
	inBrackets := false
	inQuotes := false

	h := sip.ContactHeader{
		Params: sip.NewParams(),
	}

	valueEnd := len(headerText)
	last := valueEnd - 1

	for idx, char := range headerText {
		if char == '<' && !inQuotes {
			inBrackets = true
		} else if char == '>' && !inQuotes {
			inBrackets = false
		} else if char == '"' {
			inQuotes = !inQuotes
		} else if !inQuotes && !inBrackets {
			switch {
			case char == ',':
				return nil, errComaDetected(idx)
			case idx == last:
				valueEnd = idx + 1
			default:
				continue
			}
			break
		}
	}

	h.DisplayName, err = ParseAddressValue(headerText[:valueEnd], &h.Address, &h.Params)
	if err != nil {
		return nil, err
	}

	return &h, nil
}

// parseRouteHeader builds a Route header's single address. A Route header
// value holding a comma-separated list of addresses is rejected with
// errComaDetected (see parseRouteAddress).
func parseRouteHeader(headerName string, headerText string) (header sip.Header, err error) {
	h := sip.RouteHeader{}
	if err := parseRouteAddress(headerText, &h.Address); err != nil {
		return nil, err
	}
	return &h, nil
}

func parseRecordRouteHeader(headerName string, headerText string) (header sip.Header, err error) {
	h := sip.RecordRouteHeader{}
	if err := parseRouteAddress(headerText, &h.Address); err != nil {
		return nil, err
	}
	return &h, nil
}

// parseRouteAddress parses a single <...>-wrapped address out of headerText,
// rejecting an unbracketed comma the same way parseContactAddressHeader
// does.
func parseRouteAddress(headerText string, address *sip.Uri) error {
	inBrackets := false
	inQuotes := false
	last := len(headerText) - 1
	for idx, char := range headerText {
		if char == '<' && !inQuotes {
			inBrackets = true
			continue
		}
		if char == '>' && !inQuotes {
			inBrackets = false
		} else if char == '"' {
			inQuotes = !inQuotes
		}

		if inQuotes || inBrackets {
			continue
		}

		valueEnd := idx
		switch {
		case char == ',':
			return errComaDetected(idx)
		case idx == last:
			valueEnd = idx + 1
		default:
			continue
		}

		var params sip.HeaderParams
		_, err := ParseAddressValue(headerText[:valueEnd], address, &params)
		return err
	}
	return nil
}
