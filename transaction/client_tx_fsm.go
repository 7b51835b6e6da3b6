package transaction

import (
	"fmt"
	"time"
)

// transition commits the next state and immediately runs the action that
// comes with it, returning whatever signal (if any) that action wants fed
// back into spinFsm this same tick.
func (tx *ClientTx) transition(next txStateFn, action txAction) txSignal {
	tx.fsmState = next
	return action()
}

// inviteCalling is the UAC INVITE machine's Calling box (RFC 3261 §17.1.1).
func (tx *ClientTx) inviteCalling(s txSignal) txSignal {
	switch s {
	case sigClient1xx:
		return tx.transition(tx.inviteProceeding, tx.onInviteProvisional)
	case sigClient2xx:
		return tx.transition(tx.inviteAccepted, tx.onAccepted)
	case sigClient3xxPlus:
		return tx.transition(tx.inviteCompleted, tx.onInviteFailed)
	case sigClientCancelRequested:
		return tx.transition(tx.inviteCalling, tx.onCancelRequest)
	case sigClientCanceled:
		return tx.transition(tx.inviteCalling, tx.onCancelConfirmed)
	case sigClientTimerA:
		return tx.transition(tx.inviteCalling, tx.onInviteRetransmitTimer)
	case sigClientTimerB:
		return tx.transition(tx.inviteTerminated, tx.onTimedOut)
	case sigClientTransportErr:
		return tx.transition(tx.inviteTerminated, tx.onTransportError)
	}
	return sigNone
}

// inviteProceeding is the Proceeding box: at least one 1xx has arrived.
func (tx *ClientTx) inviteProceeding(s txSignal) txSignal {
	switch s {
	case sigClient1xx:
		return tx.transition(tx.inviteProceeding, tx.onProvisional)
	case sigClient2xx:
		return tx.transition(tx.inviteAccepted, tx.onAccepted)
	case sigClient3xxPlus:
		return tx.transition(tx.inviteCompleted, tx.onInviteFailed)
	case sigClientCancelRequested:
		return tx.transition(tx.inviteProceeding, tx.onCancelRequestAndArmTimerB)
	case sigClientCanceled:
		return tx.transition(tx.inviteProceeding, tx.onCancelConfirmed)
	case sigClientTimerB:
		return tx.transition(tx.inviteTerminated, tx.onTimedOut)
	case sigClientTransportErr:
		return tx.transition(tx.inviteTerminated, tx.onTransportError)
	}
	return sigNone
}

// inviteCompleted holds while a non-2xx final response is acked and Timer D
// waits out any straggling retransmits of that final response.
func (tx *ClientTx) inviteCompleted(s txSignal) txSignal {
	switch s {
	case sigClient3xxPlus:
		return tx.transition(tx.inviteCompleted, tx.onFinalRetransmitted)
	case sigClientTransportErr:
		return tx.transition(tx.inviteTerminated, tx.onTransportError)
	case sigClientTimerD:
		return tx.transition(tx.inviteTerminated, tx.onTerminate)
	}
	return sigNone
}

// inviteAccepted is reached on a 2xx; the dialog layer (not this tx) owns the
// resulting ACK, so this box just keeps surfacing 2xx retransmits for
// Timer M before tearing down.
func (tx *ClientTx) inviteAccepted(s txSignal) txSignal {
	switch s {
	case sigClient2xx:
		return tx.transition(tx.inviteAccepted, tx.onProvisional)
	case sigClientTransportErr:
		return tx.transition(tx.inviteAccepted, tx.onTransportErrorNoTerminate)
	case sigClientTimerM:
		return tx.transition(tx.inviteTerminated, tx.onTerminate)
	}
	return sigNone
}

func (tx *ClientTx) onTransportErrorNoTerminate() txSignal {
	tx.onTransportError()
	return sigNone
}

func (tx *ClientTx) inviteTerminated(s txSignal) txSignal {
	if s == sigClientDelete {
		return tx.transition(tx.inviteTerminated, tx.onTerminate)
	}
	return sigNone
}

// nonInviteCalling is the UAC non-INVITE machine's Trying box (§17.1.2).
func (tx *ClientTx) nonInviteCalling(s txSignal) txSignal {
	switch s {
	case sigClient1xx:
		return tx.transition(tx.nonInviteProceeding, tx.onProvisional)
	case sigClient2xx, sigClient3xxPlus:
		return tx.transition(tx.nonInviteCompleted, tx.onNonInviteFinal)
	case sigClientTimerA:
		return tx.transition(tx.nonInviteCalling, tx.onNonInviteRetransmitTimer)
	case sigClientTimerB:
		return tx.transition(tx.nonInviteTerminated, tx.onTimedOut)
	case sigClientTransportErr:
		return tx.transition(tx.nonInviteTerminated, tx.onTransportError)
	}
	return sigNone
}

func (tx *ClientTx) nonInviteProceeding(s txSignal) txSignal {
	switch s {
	case sigClient1xx:
		return tx.transition(tx.nonInviteProceeding, tx.onProvisional)
	case sigClient2xx, sigClient3xxPlus:
		return tx.transition(tx.nonInviteCompleted, tx.onNonInviteFinal)
	case sigClientTimerA:
		return tx.transition(tx.nonInviteProceeding, tx.onNonInviteRetransmitTimer)
	case sigClientTimerB:
		return tx.transition(tx.nonInviteTerminated, tx.onTimedOut)
	case sigClientTransportErr:
		return tx.transition(tx.nonInviteTerminated, tx.onTransportError)
	}
	return sigNone
}

func (tx *ClientTx) nonInviteCompleted(s txSignal) txSignal {
	switch s {
	case sigClientDelete, sigClientTimerD:
		return tx.transition(tx.nonInviteTerminated, tx.onTerminate)
	}
	return sigNone
}

func (tx *ClientTx) nonInviteTerminated(s txSignal) txSignal {
	if s == sigClientDelete {
		return tx.transition(tx.nonInviteTerminated, tx.onTerminate)
	}
	return sigNone
}

// --- actions -----------------------------------------------------------

// onInviteRetransmitTimer fires on Timer A while Calling: backs it off
// without the T2 ceiling (INVITE retransmits run up to Timer B) and resends
// the original INVITE.
func (tx *ClientTx) onInviteRetransmitTimer() txSignal {
	tx.mu.Lock()
	tx.timer_a_time *= 2
	tx.timer_a.Reset(tx.timer_a_time)
	tx.mu.Unlock()

	tx.resend()
	return sigNone
}

// onCancelConfirmed reacts to a response whose CSeq method is CANCEL; there
// is nothing this transaction still needs to do about it.
func (tx *ClientTx) onCancelConfirmed() txSignal {
	return sigNone
}

// onNonInviteRetransmitTimer backs Timer A off, capped at T2 per §17.1.2.2.
func (tx *ClientTx) onNonInviteRetransmitTimer() txSignal {
	tx.mu.Lock()
	tx.timer_a_time *= 2
	if tx.timer_a_time > T2 {
		tx.timer_a_time = T2
	}
	tx.timer_a.Reset(tx.timer_a_time)
	tx.mu.Unlock()

	tx.resend()
	return sigNone
}

// onProvisional passes a 1xx (or a 2xx retransmit held in inviteAccepted) up
// to the caller without touching state.
func (tx *ClientTx) onProvisional() txSignal {
	tx.passUp()

	tx.mu.Lock()
	tx.stopTimerA()
	tx.mu.Unlock()
	return sigNone
}

// onInviteProvisional is the first 1xx for an INVITE: it disarms both
// retransmit and timeout timers, since a provisional response means the
// request got through.
func (tx *ClientTx) onInviteProvisional() txSignal {
	tx.passUp()

	tx.mu.Lock()
	tx.stopTimerA()
	tx.stopTimerB()
	tx.mu.Unlock()
	return sigNone
}

// onInviteFailed handles a non-2xx final response to an INVITE: the
// transaction itself must ACK it (§17.1.1.3), pass it up, and arm Timer D to
// absorb any retransmitted copies of that same final response.
func (tx *ClientTx) onInviteFailed() txSignal {
	tx.ack()
	tx.passUp()

	tx.mu.Lock()
	tx.stopTimerA()
	tx.stopTimerB()
	tx.timer_d = time.AfterFunc(tx.timer_d_time, func() {
		tx.spinFsm(sigClientTimerD)
	})
	tx.mu.Unlock()
	return sigNone
}

// onNonInviteFinal handles any final response (2xx or not) to a non-INVITE
// request. With Timer D at zero (reliable transport) there's nothing left
// to wait for, so it terminates immediately instead of arming a timer.
func (tx *ClientTx) onNonInviteFinal() txSignal {
	tx.passUp()

	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.stopTimerA()
	tx.stopTimerB()

	if tx.timer_d_time > 0 {
		tx.timer_d = time.AfterFunc(tx.timer_d_time, func() {
			tx.spinFsm(sigClientTimerD)
		})
		return sigNone
	}
	return sigClientDelete
}

// onCancelRequest sends the CANCEL for this INVITE; reachable only while
// still Calling, before any provisional response arms the usual Timer B
// path for the cancel.
func (tx *ClientTx) onCancelRequest() txSignal {
	tx.cancel()
	return sigNone
}

// onCancelRequestAndArmTimerB sends the CANCEL once a provisional response
// has already been seen, and (re)arms Timer B so an unresponsive peer still
// times the transaction out.
func (tx *ClientTx) onCancelRequestAndArmTimerB() txSignal {
	tx.cancel()

	tx.mu.Lock()
	if tx.timer_b != nil {
		tx.timer_b.Stop()
	}
	tx.timer_b = time.AfterFunc(Timer_B, func() {
		tx.spinFsm(sigClientTimerB)
	})
	tx.mu.Unlock()
	return sigNone
}

// onFinalRetransmitted resends the ACK for a duplicate non-2xx final
// response received while already Completed (§17.1.1.3).
func (tx *ClientTx) onFinalRetransmitted() txSignal {
	tx.ack()
	return sigNone
}

// onTransportError reports a fatal transport error up and terminates.
func (tx *ClientTx) onTransportError() txSignal {
	tx.reportTransportError()

	tx.mu.Lock()
	tx.stopTimerA()
	tx.mu.Unlock()
	return sigClientDelete
}

// onTimedOut reports a Timer B/F expiry up and terminates.
func (tx *ClientTx) onTimedOut() txSignal {
	tx.reportTimeout()

	tx.mu.Lock()
	tx.stopTimerA()
	tx.mu.Unlock()
	return sigClientDelete
}

// onAccepted passes a 2xx up and arms Timer M, which bounds how long this
// transaction keeps absorbing 2xx retransmits on behalf of the dialog.
func (tx *ClientTx) onAccepted() txSignal {
	tx.passUp()

	tx.mu.Lock()
	tx.stopTimerA()
	tx.stopTimerB()
	tx.timer_m = time.AfterFunc(Timer_M, func() {
		select {
		case <-tx.done:
			return
		default:
		}
		tx.spinFsm(sigClientTimerM)
	})
	tx.mu.Unlock()
	return sigNone
}

func (tx *ClientTx) onTerminate() txSignal {
	tx.delete()
	return sigNone
}

// stopTimerA/stopTimerB assume tx.mu is already held by the caller.
func (tx *ClientTx) stopTimerA() {
	if tx.timer_a != nil {
		tx.timer_a.Stop()
		tx.timer_a = nil
	}
}

func (tx *ClientTx) stopTimerB() {
	if tx.timer_b != nil {
		tx.timer_b.Stop()
		tx.timer_b = nil
	}
}

func (tx *ClientTx) reportTransportError() {
	tx.mu.RLock()
	err := tx.lastErr
	tx.mu.RUnlock()

	err = fmt.Errorf("transaction failed to send %s: %w", tx.origin.Short(), err)
	go func() {
		select {
		case <-tx.done:
		case tx.errs <- err:
		}
	}()
}

func (tx *ClientTx) reportTimeout() {
	err := fmt.Errorf("transaction timed out tx=%s", tx.key)
	go func() {
		select {
		case <-tx.done:
		case tx.errs <- err:
		}
	}()
}
