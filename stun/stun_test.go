package stun

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMessageRejectsSIP(t *testing.T) {
	sipReq := []byte("OPTIONS sip:test@example.com SIP/2.0\r\n\r\n")
	assert.False(t, IsMessage(sipReq))
}

func TestBindingRequestRoundTrip(t *testing.T) {
	req, err := NewBindingRequest("frag:ufrag", "pwd")
	require.NoError(t, err)
	require.NotNil(t, req)

	raw := req.Raw
	assert.True(t, IsMessage(raw))

	decoded, err := Decode(raw)
	require.NoError(t, err)

	require.NoError(t, CheckFingerprint(decoded))
	require.NoError(t, CheckMessageIntegrity(decoded, "pwd"))
}

func TestBindingSuccessCarriesMappedAddress(t *testing.T) {
	req, err := NewBindingRequest("", "")
	require.NoError(t, err)

	want := XORMappedAddress{IP: net.ParseIP("203.0.113.5"), Port: 54321}
	res, err := NewBindingSuccess(req, want, "")
	require.NoError(t, err)

	decoded, err := Decode(res.Raw)
	require.NoError(t, err)

	got, err := GetXORMappedAddress(decoded)
	require.NoError(t, err)
	assert.Equal(t, want.Port, got.Port)
	assert.True(t, want.IP.Equal(got.IP))
	assert.Equal(t, req.TransactionID, decoded.TransactionID)
}

func TestBindingErrorCarriesReason(t *testing.T) {
	req, err := NewBindingRequest("", "")
	require.NoError(t, err)

	res, err := NewBindingError(req, 400, "Bad Request")
	require.NoError(t, err)

	decoded, err := Decode(res.Raw)
	require.NoError(t, err)

	code, reason, err := GetErrorCode(decoded)
	require.NoError(t, err)
	assert.Equal(t, 400, code)
	assert.Equal(t, "Bad Request", reason)
}

func TestICEAttributeRoundTrip(t *testing.T) {
	m, err := NewBindingRequest("", "")
	require.NoError(t, err)

	require.NoError(t, Priority(12345).AddTo(m))
	require.NoError(t, UseCandidate{}.AddTo(m))
	require.NoError(t, ICEControlling(0xABCD).AddTo(m))

	decoded, err := Decode(m.Raw)
	require.NoError(t, err)

	var p Priority
	require.NoError(t, p.GetFrom(decoded))
	assert.Equal(t, Priority(12345), p)

	require.NoError(t, UseCandidate{}.GetFrom(decoded))

	var ctl ICEControlling
	require.NoError(t, ctl.GetFrom(decoded))
	assert.Equal(t, ICEControlling(0xABCD), ctl)
}

func TestTURNAddressAttributes(t *testing.T) {
	m, err := NewBindingRequest("", "")
	require.NoError(t, err)

	relayed := XORMappedAddress{IP: net.ParseIP("198.51.100.9"), Port: 4000}
	require.NoError(t, AddXORRelayedAddress(m, relayed))
	require.NoError(t, Lifetime(600).AddTo(m))

	decoded, err := Decode(m.Raw)
	require.NoError(t, err)

	got, err := GetXORRelayedAddress(decoded)
	require.NoError(t, err)
	assert.Equal(t, relayed.Port, got.Port)
	assert.True(t, relayed.IP.Equal(got.IP))

	var lifetime Lifetime
	require.NoError(t, lifetime.GetFrom(decoded))
	assert.Equal(t, Lifetime(600), lifetime)
}
