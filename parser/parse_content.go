package parser

import (
	"strconv"
	"strings"

	"github.com/sipware/sipcore/sip"
)

func parseContentLength(headerName string, headerText string) (header sip.Header, err error) {
	n, err := strconv.ParseUint(strings.TrimSpace(headerText), 10, 32)
	contentLength := sip.ContentLengthHeader(n)
	return &contentLength, err
}

func parseContentType(headerName string, headerText string) (header sip.Header, err error) {
	contentType := sip.ContentTypeHeader(strings.TrimSpace(headerText))
	return &contentType, nil
}
