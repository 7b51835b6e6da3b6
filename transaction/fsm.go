package transaction

// The four state machines in this package (UAC INVITE, UAC non-INVITE, UAS
// INVITE, UAS non-INVITE) are not driven by a table keyed on an integer
// state; each state is instead one method value stored in commonTx.fsmState.
// Firing a signal into it runs the action paired with that signal and
// returns the signal the action produces; spinFsm's loop in tx.go feeds that
// signal straight back in (a same-tick transition) until it is sigNone.
// txStateFn is the shape of a state method, txAction the shape of the
// side-effecting action it dispatches to.
type txSignal int
type txAction func() txSignal
type txStateFn func(s txSignal) txSignal

// clientState and serverState name the RFC 3261 diagram boxes purely for
// documentation/logging; nothing in this package switches on these values,
// since the state itself lives in which txStateFn is currently assigned.
type clientState int

const (
	clientCalling clientState = iota
	clientProceeding
	clientCompleted
	clientAccepted
	clientTerminated
)

type serverState int

const (
	serverTrying serverState = iota
	serverProceeding
	serverCompleted
	serverConfirmed
	serverAccepted
	serverTerminated
)

// sigNone is returned by a txStateFn/txAction that has nothing further to
// feed back into the machine this tick.
const sigNone txSignal = 0

// Signals accepted by the two UAS (server transaction) machines.
const (
	sigServerRequest txSignal = iota + 1
	sigServerAck
	sigServerCancel
	sigServerUser1xx
	sigServerUser2xx
	sigServerUser3xxPlus
	sigServerTimerG
	sigServerTimerH
	sigServerTimerI
	sigServerTimerJ
	sigServerTimerL
	sigServerTransportErr
	sigServerDelete
)

// Signals accepted by the two UAC (client transaction) machines.
const (
	sigClient1xx txSignal = iota + 100
	sigClient2xx
	sigClient3xxPlus
	sigClientTimerA
	sigClientTimerB
	sigClientTimerD
	sigClientTimerM
	sigClientTransportErr
	sigClientDelete
	sigClientCancelRequested
	sigClientCanceled
)
