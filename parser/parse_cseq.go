package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sipware/sipcore/sip"
)

// parseCSeq parses a "CSeq: <seqno> <method>" value (RFC 3261 §20.16).
func parseCSeq(headerName string, headerText string) (header sip.Header, err error) {
	sepIdx := strings.IndexAny(headerText, abnfWs)
	if sepIdx < 1 || len(headerText)-sepIdx < 2 {
		return nil, fmt.Errorf("CSeq field should have precisely one whitespace section: %q", headerText)
	}

	seqNo, err := strconv.ParseUint(headerText[:sepIdx], 10, 32)
	if err != nil {
		return nil, err
	}
	if seqNo > maxCseq {
		return nil, fmt.Errorf("invalid CSeq %d: exceeds maximum permitted value 2**31 - 1", seqNo)
	}

	var cseq sip.CSeqHeader
	cseq.SeqNo = uint32(seqNo)
	cseq.MethodName = sip.RequestMethod(headerText[sepIdx+1:])
	return &cseq, nil
}
