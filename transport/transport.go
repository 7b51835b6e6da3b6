package transport

import (
	"context"

	"github.com/sipware/sipcore/sip"
)

var (
	SIPDebug bool
)

const (
	// IdleConnection is the extra reference a new stream or connected UDP
	// connection starts with, so it stays open in its pool after the
	// request that created it releases its own reference with TryClose.
	IdleConnection = 1

	// transportBufferSize is the read buffer size of each receive loop.
	transportBufferSize = 65535
)

const (
	// Transport for different sip messages. GO uses lowercase, but for message parsing, we should
	// use this constants for setting message Transport
	TransportUDP = "UDP"
	TransportTCP = "TCP"
	TransportTLS = "TLS"
	TransportWS  = "WS"
	TransportWSS = "WSS"
)

// Addr is the transport package's local name for sip.Addr, so the five
// Transport implementations and Layer don't need the sip. qualifier on
// every CreateConnection call.
type Addr = sip.Addr

// Transport implements network-specific channel features: C3 (Channel) of
// the core design. Listening and serving are protocol-shaped (PacketConn vs
// Listener) and are therefore exposed as concrete methods on each
// implementation rather than through this interface; Layer dispatches to
// them by name at startup and only needs the shape below afterward.
type Transport interface {
	Network() string
	GetConnection(addr string) (Connection, error)
	CreateConnection(ctx context.Context, laddr Addr, raddr Addr, handler sip.MessageHandler) (Connection, error)
	String() string
	Close() error
}
