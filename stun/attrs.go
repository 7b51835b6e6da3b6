package stun

import (
	"encoding/binary"
	"fmt"

	"github.com/pion/stun/v2"
)

// ICE and TURN attribute types not present in pion/stun's typed set, per
// spec §4.2. Values are the registered STUN attribute numbers (RFC 8445,
// RFC 5766/8656).
const (
	AttrPriority      = stun.AttrType(0x0024)
	AttrUseCandidate  = stun.AttrType(0x0025)
	AttrICEControlled = stun.AttrType(0x8029)
	AttrICEControl    = stun.AttrType(0x802A)

	AttrChannelNumber      = stun.AttrType(0x000C)
	AttrLifetime           = stun.AttrType(0x000D)
	AttrXORPeerAddress     = stun.AttrType(0x0012)
	AttrData               = stun.AttrType(0x0013)
	AttrXORRelayedAddress  = stun.AttrType(0x0016)
	AttrRequestedTransport = stun.AttrType(0x0019)
	AttrDontFragment       = stun.AttrType(0x001A)
	AttrReservationToken   = stun.AttrType(0x0022)
)

// AttrType re-exports pion/stun's attribute type so callers of this
// package never need to import pion/stun directly.
type AttrType = stun.AttrType

// getRaw reads an attribute's raw value off the decoded message's
// attribute set, following pion/stun's own typed-attribute Getters (e.g.
// Fingerprint, Username) which all read through m.Attributes.Get.
func getRaw(m *Message, t AttrType) ([]byte, error) {
	a, ok := m.Attributes.Get(t)
	if !ok {
		return nil, fmt.Errorf("attribute %s not found", t)
	}
	return a.Value, nil
}

// Priority is the ICE PRIORITY attribute (RFC 8445 §5.1.2): a uint32
// candidate priority.
type Priority uint32

func (p Priority) AddTo(m *Message) error {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, uint32(p))
	m.Add(AttrPriority, v)
	return nil
}

func (p *Priority) GetFrom(m *Message) error {
	v, err := getRaw(m, AttrPriority)
	if err != nil {
		return fmt.Errorf("stun: get priority: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("stun: priority attribute has bad length %d", len(v))
	}
	*p = Priority(binary.BigEndian.Uint32(v))
	return nil
}

// UseCandidate is the ICE USE-CANDIDATE attribute (RFC 8445 §7.1.2): a
// flag attribute carrying no value.
type UseCandidate struct{}

func (UseCandidate) AddTo(m *Message) error {
	m.Add(AttrUseCandidate, nil)
	return nil
}

func (UseCandidate) GetFrom(m *Message) error {
	_, err := getRaw(m, AttrUseCandidate)
	if err != nil {
		return fmt.Errorf("stun: get use-candidate: %w", err)
	}
	return nil
}

// ICEControlled and ICEControlling are the tie-breaker attributes (RFC
// 8445 §7.1.3 and §16.1) carrying an 8-byte random tie-breaker value.
type ICEControlled uint64
type ICEControlling uint64

func (t ICEControlled) AddTo(m *Message) error {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, uint64(t))
	m.Add(AttrICEControlled, v)
	return nil
}

func (t *ICEControlled) GetFrom(m *Message) error {
	v, err := getRaw(m, AttrICEControlled)
	if err != nil {
		return fmt.Errorf("stun: get ice-controlled: %w", err)
	}
	if len(v) != 8 {
		return fmt.Errorf("stun: ice-controlled attribute has bad length %d", len(v))
	}
	*t = ICEControlled(binary.BigEndian.Uint64(v))
	return nil
}

func (t ICEControlling) AddTo(m *Message) error {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, uint64(t))
	m.Add(AttrICEControl, v)
	return nil
}

func (t *ICEControlling) GetFrom(m *Message) error {
	v, err := getRaw(m, AttrICEControl)
	if err != nil {
		return fmt.Errorf("stun: get ice-controlling: %w", err)
	}
	if len(v) != 8 {
		return fmt.Errorf("stun: ice-controlling attribute has bad length %d", len(v))
	}
	*t = ICEControlling(binary.BigEndian.Uint64(v))
	return nil
}

// XORRelayedAddress and XORPeerAddress are the TURN address attributes
// (RFC 5766 §14.5/§14.3), reusing pion/stun's XOR encoding for an address
// attribute at a non-default attribute type.
func AddXORRelayedAddress(m *Message, addr XORMappedAddress) error {
	if err := addr.AddToAs(m, AttrXORRelayedAddress); err != nil {
		return fmt.Errorf("stun: add xor-relayed-address: %w", err)
	}
	return nil
}

func GetXORRelayedAddress(m *Message) (XORMappedAddress, error) {
	var addr stun.XORMappedAddress
	if err := addr.GetFromAs(m, AttrXORRelayedAddress); err != nil {
		return XORMappedAddress{}, fmt.Errorf("stun: get xor-relayed-address: %w", err)
	}
	return addr, nil
}

func AddXORPeerAddress(m *Message, addr XORMappedAddress) error {
	if err := addr.AddToAs(m, AttrXORPeerAddress); err != nil {
		return fmt.Errorf("stun: add xor-peer-address: %w", err)
	}
	return nil
}

func GetXORPeerAddress(m *Message) (XORMappedAddress, error) {
	var addr stun.XORMappedAddress
	if err := addr.GetFromAs(m, AttrXORPeerAddress); err != nil {
		return XORMappedAddress{}, fmt.Errorf("stun: get xor-peer-address: %w", err)
	}
	return addr, nil
}

// ChannelNumber is the TURN CHANNEL-NUMBER attribute (RFC 5766 §14.1): a
// uint16 channel number, padded to 4 bytes with RFFU zeroed.
type ChannelNumber uint16

func (c ChannelNumber) AddTo(m *Message) error {
	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v, uint16(c))
	m.Add(AttrChannelNumber, v)
	return nil
}

func (c *ChannelNumber) GetFrom(m *Message) error {
	v, err := getRaw(m, AttrChannelNumber)
	if err != nil {
		return fmt.Errorf("stun: get channel-number: %w", err)
	}
	if len(v) < 2 {
		return fmt.Errorf("stun: channel-number attribute has bad length %d", len(v))
	}
	*c = ChannelNumber(binary.BigEndian.Uint16(v))
	return nil
}

// Lifetime is the TURN LIFETIME attribute (RFC 5766 §14.2), in seconds.
type Lifetime uint32

func (l Lifetime) AddTo(m *Message) error {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, uint32(l))
	m.Add(AttrLifetime, v)
	return nil
}

func (l *Lifetime) GetFrom(m *Message) error {
	v, err := getRaw(m, AttrLifetime)
	if err != nil {
		return fmt.Errorf("stun: get lifetime: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("stun: lifetime attribute has bad length %d", len(v))
	}
	*l = Lifetime(binary.BigEndian.Uint32(v))
	return nil
}

// Data is the TURN DATA attribute (RFC 5766 §14.4) wrapping the relayed
// payload.
type Data []byte

func (d Data) AddTo(m *Message) error {
	m.Add(AttrData, d)
	return nil
}

func (d *Data) GetFrom(m *Message) error {
	v, err := getRaw(m, AttrData)
	if err != nil {
		return fmt.Errorf("stun: get data: %w", err)
	}
	*d = append(Data(nil), v...)
	return nil
}

// RequestedTransport is the TURN REQUESTED-TRANSPORT attribute (RFC 5766
// §14.7): a protocol number (17 for UDP) in the high byte, RFFU zeroed.
type RequestedTransport byte

// ProtoUDP is the only transport value TURN currently defines.
const ProtoUDP RequestedTransport = 17

func (r RequestedTransport) AddTo(m *Message) error {
	v := []byte{byte(r), 0, 0, 0}
	m.Add(AttrRequestedTransport, v)
	return nil
}

func (r *RequestedTransport) GetFrom(m *Message) error {
	v, err := getRaw(m, AttrRequestedTransport)
	if err != nil {
		return fmt.Errorf("stun: get requested-transport: %w", err)
	}
	if len(v) < 1 {
		return fmt.Errorf("stun: requested-transport attribute has bad length %d", len(v))
	}
	*r = RequestedTransport(v[0])
	return nil
}

// DontFragment is the TURN DONT-FRAGMENT attribute (RFC 5766 §14.8): a
// flag attribute carrying no value.
type DontFragment struct{}

func (DontFragment) AddTo(m *Message) error {
	m.Add(AttrDontFragment, nil)
	return nil
}

func (DontFragment) GetFrom(m *Message) error {
	_, err := getRaw(m, AttrDontFragment)
	if err != nil {
		return fmt.Errorf("stun: get dont-fragment: %w", err)
	}
	return nil
}

// ReservationToken is the TURN RESERVATION-TOKEN attribute (RFC 5766
// §14.9): an 8-byte opaque token.
type ReservationToken [8]byte

func (r ReservationToken) AddTo(m *Message) error {
	m.Add(AttrReservationToken, r[:])
	return nil
}

func (r *ReservationToken) GetFrom(m *Message) error {
	v, err := getRaw(m, AttrReservationToken)
	if err != nil {
		return fmt.Errorf("stun: get reservation-token: %w", err)
	}
	if len(v) != 8 {
		return fmt.Errorf("stun: reservation-token attribute has bad length %d", len(v))
	}
	copy(r[:], v)
	return nil
}
