package parser

import (
	"fmt"
	"strings"

	"github.com/sipware/sipcore/sip"
)

// mapHeadersParser resolves per-field header parsers for ParserStream. A nil
// map falls back to the package's default header-parser table, the same one
// (*Parser).ParseHeader uses, so a zero-value ParserStream works without
// extra wiring.
type mapHeadersParser map[string]HeaderParser

// parseMsgHeader parses one unfolded header line and appends the result to
// msg, mirroring (*Parser).ParseHeader's field lookup.
func (m mapHeadersParser) parseMsgHeader(msg sip.Message, headerText string) error {
	table := map[string]HeaderParser(m)
	if table == nil {
		table = headersParsers
	}

	colonIdx := strings.Index(headerText, ":")
	if colonIdx == -1 {
		return fmt.Errorf("field name with no value in header: %s", headerText)
	}

	fieldName := strings.TrimSpace(headerText[:colonIdx])
	lowerFieldName := sip.HeaderToLower(fieldName)
	fieldText := strings.TrimSpace(headerText[colonIdx+1:])

	var header sip.Header
	var err error
	if headerParser, ok := table[lowerFieldName]; ok {
		header, err = headerParser(lowerFieldName, fieldText)
		if err != nil {
			return err
		}
	} else {
		header = &sip.GenericHeader{
			HeaderName: fieldName,
			Contents:   fieldText,
		}
	}

	msg.AppendHeader(header)
	return nil
}

// errComaDetected signals that a comma was hit while scanning a header value.
// The Via parser uses it to step to the next hop; the Contact and Route
// parsers return it to reject a second address on one header line.
type errComaDetected int

func (e errComaDetected) Error() string {
	return "comma detected"
}

// DefaultHeadersParser returns minimal version header parser.
// It can be extended or overwritten. Removing some defaults can break SIP functionality
//
// NOTE this API call may change
func DefaultHeadersParser() map[string]HeaderParser {
	return headersParsers
}
