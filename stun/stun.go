// Package stun implements the STUN message codec (C2) used to demultiplex
// ICE/TURN connectivity-check traffic off the same socket as SIP. It does
// no socket I/O: callers classify a received datagram with IsMessage and
// hand it to Decode, or build an outgoing message with NewBindingRequest
// and similar constructors and write the result themselves.
package stun

import (
	"fmt"

	"github.com/pion/stun/v2"
)

// IsMessage reports whether b looks like a STUN message: at least 20 bytes
// (a full header) with the magic cookie 0x2112A442 at offset 4, per spec
// §4.2. UDPTransport calls this during receive classification before
// handing a datagram to the SIP parser.
func IsMessage(b []byte) bool {
	return stun.IsMessage(b)
}

// Message wraps pion/stun's Message, the wire-framing type for header plus
// attributes (type:2 | length:2 | value:length | padding-to-4-bytes per
// attribute).
type Message = stun.Message

// Decode parses a raw STUN message, returning a Message with its
// Attributes populated for the typed accessors below to read from.
func Decode(raw []byte) (*Message, error) {
	m := &stun.Message{Raw: append([]byte(nil), raw...)}
	if err := m.Decode(); err != nil {
		return nil, fmt.Errorf("stun: decode: %w", err)
	}
	return m, nil
}

// NewBindingRequest builds a STUN Binding request, optionally signed with
// short-term credentials (username/password) and a FINGERPRINT trailer,
// per spec §4.2's ICE usage.
func NewBindingRequest(username, password string) (*Message, error) {
	setters := []stun.Setter{stun.TransactionID, stun.BindingRequest}
	if username != "" {
		setters = append(setters, stun.NewUsername(username))
	}
	m, err := stun.Build(setters...)
	if err != nil {
		return nil, fmt.Errorf("stun: build binding request: %w", err)
	}
	if password != "" {
		if err := stun.NewShortTermIntegrity(password).AddTo(m); err != nil {
			return nil, fmt.Errorf("stun: add message-integrity: %w", err)
		}
	}
	if err := stun.Fingerprint.AddTo(m); err != nil {
		return nil, fmt.Errorf("stun: add fingerprint: %w", err)
	}
	return m, nil
}

// NewBindingSuccess builds a STUN Binding success response carrying the
// reflexive address observed for the request, XOR-encoded against the
// magic cookie and transaction ID per RFC 5389 §15.2.
func NewBindingSuccess(req *Message, mappedAddr XORMappedAddress, password string) (*Message, error) {
	m, err := stun.Build(stun.TransactionID, stun.BindingSuccess)
	if err != nil {
		return nil, fmt.Errorf("stun: build binding success: %w", err)
	}
	m.TransactionID = req.TransactionID
	m.WriteTransactionID()
	xma := stun.XORMappedAddress{IP: mappedAddr.IP, Port: mappedAddr.Port}
	if err := xma.AddTo(m); err != nil {
		return nil, fmt.Errorf("stun: add xor-mapped-address: %w", err)
	}
	if password != "" {
		if err := stun.NewShortTermIntegrity(password).AddTo(m); err != nil {
			return nil, fmt.Errorf("stun: add message-integrity: %w", err)
		}
	}
	if err := stun.Fingerprint.AddTo(m); err != nil {
		return nil, fmt.Errorf("stun: add fingerprint: %w", err)
	}
	return m, nil
}

// NewBindingError builds a STUN Binding error response carrying code and
// reason, per the ERROR-CODE attribute (RFC 5389 §15.6).
func NewBindingError(req *Message, code int, reason string) (*Message, error) {
	m, err := stun.Build(stun.TransactionID, stun.BindingError)
	if err != nil {
		return nil, fmt.Errorf("stun: build binding error: %w", err)
	}
	m.TransactionID = req.TransactionID
	m.WriteTransactionID()
	ec := stun.ErrorCodeAttribute{Code: stun.ErrorCode(code), Reason: []byte(reason)}
	if err := ec.AddTo(m); err != nil {
		return nil, fmt.Errorf("stun: add error-code: %w", err)
	}
	if err := stun.Fingerprint.AddTo(m); err != nil {
		return nil, fmt.Errorf("stun: add fingerprint: %w", err)
	}
	return m, nil
}

// XORMappedAddress is the reflexive transport address attribute, carried
// XOR'd with the magic cookie and transaction ID on the wire but exposed
// here in plain IP/Port form.
type XORMappedAddress = stun.XORMappedAddress

// MappedAddress is the legacy (non-XOR) reflexive address attribute, kept
// for RFC 3489 interop per spec §4.2.
type MappedAddress = stun.MappedAddress

// GetXORMappedAddress extracts the reflexive address from a decoded
// message.
func GetXORMappedAddress(m *Message) (XORMappedAddress, error) {
	var addr stun.XORMappedAddress
	if err := addr.GetFrom(m); err != nil {
		return XORMappedAddress{}, fmt.Errorf("stun: get xor-mapped-address: %w", err)
	}
	return addr, nil
}

// GetMappedAddress extracts the legacy reflexive address from a decoded
// message.
func GetMappedAddress(m *Message) (MappedAddress, error) {
	var addr stun.MappedAddress
	if err := addr.GetFrom(m); err != nil {
		return MappedAddress{}, fmt.Errorf("stun: get mapped-address: %w", err)
	}
	return addr, nil
}

// GetErrorCode extracts the ERROR-CODE attribute from a decoded error
// response.
func GetErrorCode(m *Message) (code int, reason string, err error) {
	var ec stun.ErrorCodeAttribute
	if err := ec.GetFrom(m); err != nil {
		return 0, "", fmt.Errorf("stun: get error-code: %w", err)
	}
	return int(ec.Code), string(ec.Reason), nil
}

// CheckFingerprint validates the trailing FINGERPRINT attribute (CRC32 of
// everything preceding it, XOR 0x5354554E), returning an error if absent
// or mismatched.
func CheckFingerprint(m *Message) error {
	if err := stun.Fingerprint.Check(m); err != nil {
		return fmt.Errorf("stun: fingerprint check: %w", err)
	}
	return nil
}

// CheckMessageIntegrity validates the MESSAGE-INTEGRITY attribute (HMAC-
// SHA1 over the message using the short-term credential derived from
// password).
func CheckMessageIntegrity(m *Message, password string) error {
	if err := stun.NewShortTermIntegrity(password).Check(m); err != nil {
		return fmt.Errorf("stun: message-integrity check: %w", err)
	}
	return nil
}
