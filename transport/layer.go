package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sipware/sipcore/parser"
	"github.com/sipware/sipcore/sip"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNetworkNotSuported = errors.New("protocol not supported")
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

// Layer implementation.
type Layer struct {
	udp *UDPTransport
	tcp *TCPTransport
	tls *TLSTransport
	ws  *WSTransport
	wss *WSSTransport

	transports map[string]Transport

	listenPorts   map[string][]int
	listenPortsMu sync.Mutex
	dnsResolver   *net.Resolver
	Resolver      Resolver

	Metrics *Metrics

	handlers []sip.MessageHandler

	log zerolog.Logger

	// Parser used by transport layer. It can be overrided before setuping network transports
	Parser *parser.Parser
	// ConnectionReuse will force connection reuse when passing request
	ConnectionReuse bool
	// CanCreateMissingChannels allows on-demand creation of a client
	// connection on a network this Layer has never been told to listen
	// on, per spec §6's can_create_missing_channels option. Defaults to
	// true (the teacher's original behavior, since all five transports
	// are always registered regardless of which are actually listening);
	// set false to restrict outbound connections to protocols this Layer
	// is also serving inbound.
	CanCreateMissingChannels bool

	// ContactHost overrides the Contact/Via/From placeholder rewrite with a
	// fixed host (e.g. a public IP behind NAT), per spec §6's contact_host
	// option. Empty means use the locally chosen source address.
	ContactHost string
	// PreferIPv6 biases outbound DNS/channel selection toward AAAA/IPv6
	// source addresses, per spec §6's prefer_ipv6_name_resolution option.
	PreferIPv6 bool
	// MaxMessageSize rejects (with a 413, for requests) any inbound message
	// larger than this many bytes. Zero disables the check.
	MaxMessageSize int
	// MaxInMessageQueue bounds the inbound work queue, per spec §5/§6's
	// max_in_message_queue option. Zero (the default) dispatches inline on
	// the channel's own receive goroutine, the bypass mode spec §5
	// describes for stateless proxies that must not block on DNS. A
	// positive value starts one inbound worker goroutine draining a
	// channel of that capacity; once full, the newest message is dropped
	// with a logged warning rather than applying backpressure to the
	// receive goroutine.
	MaxInMessageQueue int

	customizeRequest  RequestHeaderCustomizer
	customizeResponse ResponseHeaderCustomizer

	inbound   chan sip.Message
	startOnce sync.Once
	closeOnce sync.Once
}

// NewLayer creates transport layer.
// dns Resolver
// sip parser
// tls config - can be nil to use default tls
func NewLayer(
	dnsResolver *net.Resolver,
	sipparser *parser.Parser,
	tlsConfig *tls.Config,
) *Layer {
	l := &Layer{
		transports:      make(map[string]Transport),
		listenPorts:     make(map[string][]int),
		dnsResolver:              dnsResolver,
		Resolver:                 NewDNSResolver(dnsResolver, false),
		Parser:                   sipparser,
		ConnectionReuse:          true,
		CanCreateMissingChannels: true,
	}

	l.log = log.Logger.With().Str("caller", "transportlayer").Logger()

	// Make some default transports available.
	l.udp = NewUDPTransport(sipparser)
	l.tcp = NewTCPTransport(sipparser)
	// TODO. Using default dial tls, but it needs to configurable via client
	l.tls = NewTLSTransport(sipparser, tlsConfig)
	l.ws = NewWSTransport(sipparser)
	// TODO. Using default dial tls, but it needs to configurable via client
	l.wss = NewWSSTransport(sipparser, tlsConfig)

	// Fill map for fast access
	l.transports["udp"] = l.udp
	l.transports["tcp"] = l.tcp
	l.transports["tls"] = l.tls
	l.transports["ws"] = l.ws
	l.transports["wss"] = l.wss

	return l
}

// OnMessage is main function which will be called on any new message by transport layer
func (l *Layer) OnMessage(h sip.MessageHandler) {
	// if l.handler != nil {
	// 	// Make sure appending
	// 	next := l.handler
	// 	l.handler = func(m sip.Message) {
	// 		h(m)
	// 		next(m)
	// 	}
	// 	return
	// }

	// l.handler = h

	l.handlers = append(l.handlers, h)
}

// OnSTUN installs the hook invoked for UDP datagrams classified as STUN
// rather than SIP, per spec §4.2/§4.4. Must be called before Serve starts
// reading.
func (l *Layer) OnSTUN(f func(data []byte, src string)) {
	l.udp.OnSTUN(f)
}

// SetMetrics wires an optional Metrics set into both the transport layer
// and its UDP channel (the only channel STUN can arrive on).
func (l *Layer) SetMetrics(m *Metrics) {
	l.Metrics = m
	l.udp.metrics = m
}

// OnCustomizeRequest installs the C6 hook that runs before the default
// outbound request header rewrite, per spec §4.6.
func (l *Layer) OnCustomizeRequest(f RequestHeaderCustomizer) {
	l.customizeRequest = f
}

// OnCustomizeResponse installs the C6 hook that runs before the default
// outbound response header rewrite.
func (l *Layer) OnCustomizeResponse(f ResponseHeaderCustomizer) {
	l.customizeResponse = f
}

// handleMessage is the receive-task entry point: every channel's read loop
// calls this for each decoded message. With MaxInMessageQueue unset it
// dispatches inline; otherwise it enqueues onto the bounded inbound queue
// for the single inbound worker goroutine to drain, per spec §5.
func (l *Layer) handleMessage(msg sip.Message) {
	if l.inbound == nil {
		l.dispatch(msg)
		return
	}

	select {
	case l.inbound <- msg:
		if l.Metrics != nil {
			l.Metrics.InboundQueueDepth.Set(float64(len(l.inbound)))
		}
	default:
		if l.Metrics != nil {
			l.Metrics.InboundQueueDropped.Inc()
		}
		l.log.Warn().Str("transport", msg.Transport()).Msg("inbound queue saturated, dropping newest message")
	}
}

// startInboundWorker launches the single inbound-queue consumer when
// MaxInMessageQueue opts into bounded queueing. Safe to call multiple
// times; only the first call (per Layer) has effect.
func (l *Layer) startInboundWorker() {
	l.startOnce.Do(func() {
		if l.MaxInMessageQueue <= 0 {
			return
		}
		l.inbound = make(chan sip.Message, l.MaxInMessageQueue)
		go l.inboundWorker()
	})
}

// inboundWorker drains the bounded inbound queue until it is closed on
// shutdown. A panic while dispatching one message is recovered and logged
// so a single bad message cannot stop the worker.
func (l *Layer) inboundWorker() {
	for msg := range l.inbound {
		l.dispatchRecoverably(msg)
	}
}

func (l *Layer) dispatchRecoverably(msg sip.Message) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("recovered from panic dispatching inbound message, worker continues")
		}
	}()
	l.dispatch(msg)
}

// dispatch is the parse-and-dispatch pipeline: size check, Route
// preprocessing, then every subscribed handler.
func (l *Layer) dispatch(msg sip.Message) {
	// We have to consider
	// https://datatracker.ietf.org/doc/html/rfc3261#section-18.2.1 for some message editing
	// Proxy further to other

	if l.MaxMessageSize > 0 && len(msg.String()) > l.MaxMessageSize {
		if l.Metrics != nil {
			l.Metrics.DroppedOversizeTotal.Inc()
		}
		if req, ok := msg.(*sip.Request); ok && !req.IsAck() {
			l.respondTooLarge(req)
		}
		return
	}

	if req, ok := msg.(*sip.Request); ok {
		l.preprocessRoute(req)
	}

	// 18.1.2 Receiving Responses
	// States that transport should find transaction and if not, it should still forward message to core
	// l.handler(msg)
	for _, h := range l.handlers {
		h(msg)
	}
}

// respondTooLarge builds and sends a best-effort 413 for a request this
// layer refuses to forward because it exceeds MaxMessageSize. Failures are
// logged, not propagated: the caller (dispatch) has no one else to tell.
func (l *Layer) respondTooLarge(req *sip.Request) {
	conn, err := l.getConnection(NetworkToLower(req.Transport()), req.Source())
	if err != nil {
		l.log.Debug().Err(err).Msg("no connection to respond 413 Request Entity Too Large")
		return
	}
	defer conn.TryClose()

	res := sip.NewResponseFromRequest(req, 413, "Request Entity Too Large", nil)
	if err := conn.WriteMsg(res); err != nil {
		l.log.Debug().Err(err).Msg("failed to send 413 Request Entity Too Large")
	}
}

// ServeUDP will listen on udp connection
func (l *Layer) ServeUDP(c net.PacketConn) error {
	_, port, err := sip.ParseAddr(c.LocalAddr().String())
	if err != nil {
		return err
	}

	l.addListenPort("udp", port)
	l.startInboundWorker()

	return l.udp.Serve(c, l.handleMessage)
}

// ServeTCP will listen on tcp connection
func (l *Layer) ServeTCP(c net.Listener) error {
	_, port, err := sip.ParseAddr(c.Addr().String())
	if err != nil {
		return err
	}

	l.addListenPort("tcp", port)
	l.startInboundWorker()

	return l.tcp.Serve(c, l.handleMessage)
}

// ServeWS will listen on ws connection
func (l *Layer) ServeWS(c net.Listener) error {
	_, port, err := sip.ParseAddr(c.Addr().String())
	if err != nil {
		return err
	}

	l.addListenPort("ws", port)
	l.startInboundWorker()

	return l.ws.Serve(c, l.handleMessage)
}

// ServeTLS will listen on tcp connection
func (l *Layer) ServeTLS(c net.Listener) error {
	_, port, err := sip.ParseAddr(c.Addr().String())
	if err != nil {
		return err
	}

	l.addListenPort("tls", port)
	l.startInboundWorker()
	return l.tls.Serve(c, l.handleMessage)
}

// ServeWSS will listen on wss connection
func (l *Layer) ServeWSS(c net.Listener) error {
	_, port, err := sip.ParseAddr(c.Addr().String())
	if err != nil {
		return err
	}

	l.addListenPort("wss", port)
	l.startInboundWorker()

	return l.wss.Serve(c, l.handleMessage)
}

// Serve on any network. This function will block
// Network supported: udp, tcp, ws
func (l *Layer) ListenAndServe(ctx context.Context, network string, addr string) error {
	network = strings.ToLower(network)
	// Do some filtering
	var connCloser io.Closer
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// TODO consider different design to avoid this additional go routines
	go func() {
		select {
		case <-ctx.Done():
			if connCloser == nil {
				return
			}
			if err := connCloser.Close(); err != nil {
				l.log.Error().Err(err).Msg("Failed to close listener")
			}

		}
	}()

	switch network {
	case "udp":
		// resolve local UDP endpoint
		laddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return fmt.Errorf("fail to resolve address. err=%w", err)
		}
		udpConn, err := net.ListenUDP("udp", laddr)
		if err != nil {
			return fmt.Errorf("listen udp error. err=%w", err)
		}

		connCloser = udpConn
		return l.ServeUDP(udpConn)

	case "ws", "tcp":
		laddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return fmt.Errorf("fail to resolve address. err=%w", err)
		}

		conn, err := net.ListenTCP("tcp", laddr)
		if err != nil {
			return fmt.Errorf("listen tcp error. err=%w", err)
		}

		connCloser = conn
		// and uses listener to buffer
		if network == "ws" {
			return l.ServeWS(conn)
		}

		return l.ServeTCP(conn)
	}
	return ErrNetworkNotSuported
}

// Serve on any tls network. This function will block
// Network supported: tls, tcp, wss
func (l *Layer) ListenAndServeTLS(ctx context.Context, network string, addr string, conf *tls.Config) error {
	network = strings.ToLower(network)

	var connCloser io.Closer
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// TODO consider different design to avoid this additional go routines
	go func() {
		select {
		case <-ctx.Done():
			if connCloser == nil {
				return
			}
			if err := connCloser.Close(); err != nil {
				l.log.Error().Err(err).Msg("Failed to close listener")
			}

		}
	}()
	// Do some filtering
	switch network {
	case "tls", "tcp", "wss":
		laddr, err := net.ResolveTCPAddr("tcp", addr)
		if err != nil {
			return fmt.Errorf("fail to resolve address. err=%w", err)
		}

		listener, err := tls.Listen("tcp", laddr.String(), conf)
		if err != nil {
			return fmt.Errorf("listen tls error. err=%w", err)
		}

		connCloser = listener
		if network == "wss" {
			return l.ServeWSS(listener)
		}

		return l.ServeTLS(listener)
	}

	return ErrNetworkNotSuported
}

func (l *Layer) addListenPort(network string, port int) {
	l.listenPortsMu.Lock()
	defer l.listenPortsMu.Unlock()

	if _, ok := l.listenPorts[network]; !ok {
		if l.listenPorts[network] == nil {
			l.listenPorts[network] = make([]int, 0)
		}
		l.listenPorts[network] = append(l.listenPorts[network], port)
	}
}

func (l *Layer) WriteMsg(msg sip.Message) error {
	network := msg.Transport()
	addr := msg.Destination()
	return l.WriteMsgTo(msg, addr, network)
}

func (l *Layer) WriteMsgTo(msg sip.Message, addr string, network string) error {
	/*s
	// Client sending request, or we are sending responses
	To consider
		18.2.1
		When the server transport receives a request over any transport, it
		MUST examine the value of the "sent-by" parameter in the top Via
		header field value.
		If the host portion of the "sent-by" parameter
	contains a domain name, or if it contains an IP address that differs
	from the packet source address, the server MUST add a "received"
	parameter to that Via header field value.  This parameter MUST
	contain the source address from which the packet was received.
	*/

	var conn Connection
	var err error

	switch m := msg.(type) {
	// RFC 3261 - 18.1.1.
	// 	TODO
	// 	If a request is within 200 bytes of the path MTU, or if it is larger
	//    than 1300 bytes and the path MTU is unknown, the request MUST be sent
	//    using an RFC 2914 [43] congestion controlled transport protocol, such
	//    as TCP. If this causes a change in the transport protocol from the
	//    one indicated in the top Via, the value in the top Via MUST be
	//    changed.
	case *sip.Request:
		//Every new request must be handled in seperate connection
		conn, err = l.ClientRequestConnection(context.Background(), m)
		if err != nil {
			return err
		}

		// Reference counting should prevent us closing connection too early
		defer conn.TryClose()

		// RFC 3261 - 18.2.2.
	case *sip.Response:

		conn, err = l.GetConnection(network, addr)
		if err != nil {
			return err
		}
	}

	if err := conn.WriteMsg(msg); err != nil {
		return err
	}

	// transport, ok := l.transports[network]
	// if !ok {
	// 	return fmt.Errorf("transport %s is not supported", network)
	// }

	// raddr, err := transport.ResolveAddr(addr)
	// if err != nil {
	// 	return err
	// }

	// err = transport.WriteMsg(msg, raddr)
	// if err != nil {
	// 	err = fmt.Errorf("send SIP message through %s protocol to %s: %w", network, addr, err)
	// }
	return err
}

// ClientRequestConnection is based on
// https://www.rfc-editor.org/rfc/rfc3261#section-18.1.1
// It is wrapper for getting and creating connection. The destination host
// is resolved through Resolver (cache first, async DNS on a miss) per spec
// §4.4's DNS strategy, and the outbound channel's chosen headers are
// rewritten before the connection is handed back.
func (l *Layer) ClientRequestConnection(ctx context.Context, req *sip.Request) (c Connection, err error) {
	network := NetworkToLower(req.Transport())
	destAddr := req.Destination()

	host, portStr, err := net.SplitHostPort(destAddr)
	if err != nil {
		return nil, fmt.Errorf("build address target for %s: %w", destAddr, err)
	}
	port, _ := strconv.Atoi(portStr)

	resolved, outcome := l.Resolver.ResolveFromCache(ctx, host, port, network, l.PreferIPv6)
	switch outcome {
	case ResolveMiss:
		resolved, err = l.Resolver.ResolveAsync(ctx, host, port, network, l.PreferIPv6)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", destAddr, err)
		}
	case ResolveNegative:
		return nil, fmt.Errorf("resolve %s: recently failed, not retrying yet", destAddr)
	}
	addr := resolved.String()

	if isBlackhole(resolved.IP) {
		return nil, fmt.Errorf("destination %s is the blackhole address", destAddr)
	}

	viaHop := req.Via()
	if viaHop == nil {
		return nil, fmt.Errorf("missing Via Header")
	}
	// rewrite sent-by port
	if viaHop.Port <= 0 {
		if ports, ok := l.listenPorts[network]; ok {
			port := ports[rand.Intn(len(ports))]
			viaHop.Port = port
		} else {
			defPort := sip.DefaultPort(network)
			viaHop.Port = int(defPort)
		}
	}

	if l.ConnectionReuse {
		viaHop.Params.Add("alias", "")
		c, _ = l.getConnection(network, addr)
		if c != nil {
			//Increase reference. This should prevent client connection early drop
			l.log.Debug().Str("req", req.Method.String()).Msg("Connection ref increment")
			c.Ref(1)
			l.rewriteOutboundRequest(localAddrOf(c, network), network, req)
			return c, nil
		}
	}

	c, err = l.createConnection(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	l.rewriteOutboundRequest(localAddrOf(c, network), network, req)
	return c, nil
}

// localAddrOf renders a Connection's local endpoint as a sip.Addr for
// header rewriting. It returns a zero sip.Addr when the connection is nil
// or cannot report a local address that splits into host and port.
func localAddrOf(c Connection, network string) sip.Addr {
	if c == nil || c.LocalAddr() == nil {
		return sip.Addr{}
	}
	host, portStr, err := net.SplitHostPort(c.LocalAddr().String())
	if err != nil {
		return sip.Addr{}
	}
	port, _ := strconv.Atoi(portStr)
	return sip.Addr{IP: net.ParseIP(host), Port: port}
}

// GetConnection gets the existing connection for addr on network; it does
// not create one.
func (l *Layer) GetConnection(network, addr string) (Connection, error) {
	network = NetworkToLower(network)
	return l.getConnection(network, addr)
}

func (l *Layer) CreateConnection(ctx context.Context, network, addr string) (Connection, error) {
	network = NetworkToLower(network)
	return l.createConnection(ctx, network, addr)
}

func (l *Layer) getConnection(network, addr string) (Connection, error) {
	transport, ok := l.transports[network]
	if !ok {
		return nil, fmt.Errorf("transport %s is not supported", network)
	}

	c, err := transport.GetConnection(addr)
	if err == nil && c == nil {
		return nil, fmt.Errorf("connection %q does not exist", addr)
	}

	return c, err
}

func (l *Layer) createConnection(ctx context.Context, network, addr string) (Connection, error) {
	transport, ok := l.transports[network]
	if !ok {
		return nil, fmt.Errorf("transport %s is not supported", network)
	}

	if !l.CanCreateMissingChannels {
		l.listenPortsMu.Lock()
		_, listening := l.listenPorts[network]
		l.listenPortsMu.Unlock()
		if !listening {
			return nil, fmt.Errorf("transport %s has no listening channel and can_create_missing_channels is disabled", network)
		}
	}

	var raddrVal Addr
	if host, portStr, splitErr := net.SplitHostPort(addr); splitErr == nil {
		port, _ := strconv.Atoi(portStr)
		raddrVal = Addr{IP: net.ParseIP(host), Port: port, Hostname: host}
	}

	// If there are no transport handlers registered for handling connection message
	// this message will be dropped
	c, err := transport.CreateConnection(ctx, Addr{}, raddrVal, l.handleMessage)
	return c, err
}

func (l *Layer) Close() error {
	var werr error
	for _, t := range l.transports {
		if err := t.Close(); err != nil {
			// For now dump last error
			werr = err
		}
	}

	l.closeOnce.Do(func() {
		if l.inbound != nil {
			close(l.inbound)
		}
	})

	return werr
}

func IsReliable(network string) bool {
	switch network {
	case "tcp", "tls", "TCP", "TLS":
		return true
	default:
		return false
	}
}

func IsStreamed(network string) bool {
	switch network {
	case "tcp", "tls", "TCP", "TLS":
		return true
	default:
		return false
	}
}

// NetworkToLower is faster function converting UDP, TCP to udp, tcp
func NetworkToLower(network string) string {
	// Switch is faster then lower
	switch network {
	case "UDP":
		return "udp"
	case "TCP":
		return "tcp"
	case "TLS":
		return "tls"
	case "WS":
		return "ws"
	default:
		return sip.ASCIIToLower(network)
	}
}
