package sip

// FnTxTerminate is the callback shape for Transaction.OnTerminate, declared
// here (rather than in the transaction package, which imports this one) so
// the interface method below and the transaction package's implementation
// share one named type.
type FnTxTerminate func(key string)

// Transaction, ClientTransaction and ServerTransaction are the shapes the
// transaction package's ClientTx/ServerTx expose to callers that must not
// import the transaction package directly (message handlers registered via
// OnRequest, dialog/UA code, test helpers). Declaring them here instead of
// in the transaction package avoids a transaction -> sip -> transaction
// import cycle while still letting sip-level code accept a transaction by
// interface.
type Transaction interface {
	// Key is the transaction's matching key (RFC 3261 §17.1.3/§17.2.3).
	Key() string
	// Origin is the request that created the transaction.
	Origin() *Request
	// Terminate forces the transaction to its Terminated state and stops
	// its timers.
	Terminate()
	// OnTerminate registers a callback fired once the transaction's state
	// machine reaches Terminated. Calling transaction methods from inside
	// the callback can deadlock.
	OnTerminate(f FnTxTerminate)
	// Done is closed when the transaction terminates.
	Done() <-chan struct{}
	// Err is the error that caused termination, if any.
	Err() error
}

// ServerTransaction is implemented by *transaction.ServerTx.
type ServerTransaction interface {
	Transaction
	// Respond sends a response built with NewResponseFromRequest.
	Respond(res *Response) error
	// Acks delivers ACK requests matched to this transaction: the ACK for a
	// non-2xx final response, and an ACK that matches an INVITE transaction
	// while it is in the Accepted state after a 2xx.
	Acks() <-chan *Request
	// Cancels delivers CANCEL requests matched to this transaction.
	Cancels() <-chan *Request
}

// ClientTransaction is implemented by *transaction.ClientTx.
type ClientTransaction interface {
	Transaction
	// Responses delivers every response the transaction passes up, in
	// receive order.
	Responses() <-chan *Response
}
