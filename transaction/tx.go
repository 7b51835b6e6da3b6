package transaction

import (
	"sync"

	"github.com/sipware/sipcore/sip"
	"github.com/sipware/sipcore/transport"

	"github.com/rs/zerolog"
)

type commonTx struct {
	key string

	origin *sip.Request
	// tpl    *transport.Layer

	conn     transport.Connection
	lastResp *sip.Response

	errs    chan error
	lastErr error
	done    chan struct{}

	//State machine control
	fsmMu    sync.RWMutex
	fsmState txStateFn

	log         zerolog.Logger
	onTerminate FnTxTerminate

	metrics *Metrics

	// disableRetransmitSending suppresses the wire write on a timer-driven
	// resend while leaving the timer schedule itself untouched, per spec
	// §6's disable_retransmit_sending option.
	disableRetransmitSending bool
}

func (tx *commonTx) String() string {
	if tx == nil {
		return "<nil>"
	}
	return tx.key
}

func (tx *commonTx) Origin() *sip.Request {
	return tx.origin
}

func (tx *commonTx) Key() string {
	return tx.key
}

// Errors lazily allocates the error channel on first call, so a caller that
// never asks for it never pays for the channel.
func (tx *commonTx) Errors() <-chan error {
	if tx.errs != nil {
		return tx.errs
	}
	tx.errs = make(chan error)
	return tx.errs
}

func (tx *commonTx) Done() <-chan struct{} {
	return tx.done
}

func (tx *commonTx) OnTerminate(f FnTxTerminate) {
	tx.onTerminate = f
}

// spinFsm feeds a signal into the current state, then keeps feeding back
// whatever signal that state returns until one returns sigNone. A state
// returning a fresh signal (rather than driving it through an action call)
// lets a single external event cause a same-tick cascade of transitions.
func (tx *commonTx) spinFsm(in txSignal) {
	tx.fsmMu.Lock()
	defer tx.fsmMu.Unlock()
	for next := in; next != sigNone; {
		next = tx.fsmState(next)
	}
}
