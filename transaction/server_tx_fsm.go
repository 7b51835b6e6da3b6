package transaction

import (
	"fmt"
	"time"
)

// transition commits the next state and runs the action paired with it,
// returning whatever signal the action wants fed back into spinFsm this tick.
func (tx *ServerTx) transition(next txStateFn, action txAction) txSignal {
	tx.fsmState = next
	return action()
}

// inviteProceeding is the UAS INVITE machine's Proceeding box
// (RFC 3261 §17.2.1): the request has been seen and a final response is
// still pending from the core.
func (tx *ServerTx) inviteProceeding(s txSignal) txSignal {
	switch s {
	case sigServerRequest, sigServerUser1xx:
		return tx.transition(tx.inviteProceeding, tx.onRespond)
	case sigServerCancel:
		return tx.transition(tx.inviteProceeding, tx.onCancelRequest)
	case sigServerUser2xx:
		return tx.transition(tx.inviteAccepted, tx.onAcceptedRespond)
	case sigServerUser3xxPlus:
		return tx.transition(tx.inviteCompleted, tx.onFinalRespond)
	case sigServerTransportErr:
		return tx.transition(tx.inviteTerminated, tx.onTransportError)
	}
	return sigNone
}

// inviteCompleted retransmits the final response (Timer G, unreliable only)
// until an ACK arrives or Timer H gives up on ever seeing one.
func (tx *ServerTx) inviteCompleted(s txSignal) txSignal {
	switch s {
	case sigServerRequest:
		return tx.transition(tx.inviteCompleted, tx.onRespond)
	case sigServerAck:
		return tx.transition(tx.inviteConfirmed, tx.onAckConfirmed)
	case sigServerTimerG:
		return tx.transition(tx.inviteCompleted, tx.onFinalRespond)
	case sigServerTimerH:
		return tx.transition(tx.inviteTerminated, tx.onTerminate)
	case sigServerTransportErr:
		return tx.transition(tx.inviteTerminated, tx.onTransportError)
	}
	return sigNone
}

// inviteConfirmed absorbs stray ACK retransmits for Timer I before tearing
// down; only meaningful over unreliable transports (§17.2.1).
func (tx *ServerTx) inviteConfirmed(s txSignal) txSignal {
	if s == sigServerTimerI {
		return tx.transition(tx.inviteTerminated, tx.onTerminate)
	}
	return sigNone
}

// inviteAccepted keeps absorbing 2xx resends from the core for Timer L
// (§13.3.1.4) since the ACK for a 2xx is end-to-end and not this tx's job.
func (tx *ServerTx) inviteAccepted(s txSignal) txSignal {
	switch s {
	case sigServerAck:
		return tx.transition(tx.inviteAccepted, tx.onAckPassedUp)
	case sigServerUser2xx:
		return tx.transition(tx.inviteAccepted, tx.onRespond)
	case sigServerTimerL:
		return tx.transition(tx.inviteTerminated, tx.onTerminate)
	}
	return sigNone
}

func (tx *ServerTx) inviteTerminated(s txSignal) txSignal {
	if s == sigServerDelete {
		return tx.transition(tx.inviteTerminated, tx.onTerminate)
	}
	return sigNone
}

// nonInviteTrying is the UAS non-INVITE machine's Trying box (§17.2.2).
func (tx *ServerTx) nonInviteTrying(s txSignal) txSignal {
	switch s {
	case sigServerUser1xx:
		return tx.transition(tx.nonInviteProceeding, tx.onRespond)
	case sigServerUser2xx, sigServerUser3xxPlus:
		return tx.transition(tx.nonInviteCompleted, tx.onNonInviteFinal)
	case sigServerTransportErr:
		return tx.transition(tx.nonInviteTerminated, tx.onTransportError)
	}
	return sigNone
}

func (tx *ServerTx) nonInviteProceeding(s txSignal) txSignal {
	switch s {
	case sigServerRequest, sigServerUser1xx:
		return tx.transition(tx.nonInviteProceeding, tx.onRespond)
	case sigServerUser2xx, sigServerUser3xxPlus:
		return tx.transition(tx.nonInviteCompleted, tx.onNonInviteFinal)
	case sigServerTransportErr:
		return tx.transition(tx.nonInviteTerminated, tx.onTransportError)
	}
	return sigNone
}

// nonInviteCompleted retransmits the final response to duplicate requests
// until Timer J expires (§17.2.2).
func (tx *ServerTx) nonInviteCompleted(s txSignal) txSignal {
	switch s {
	case sigServerRequest:
		return tx.transition(tx.nonInviteCompleted, tx.onRespond)
	case sigServerTimerJ:
		return tx.transition(tx.nonInviteTerminated, tx.onTerminate)
	case sigServerTransportErr:
		return tx.transition(tx.nonInviteTerminated, tx.onTransportError)
	}
	return sigNone
}

func (tx *ServerTx) nonInviteTerminated(s txSignal) txSignal {
	if s == sigServerDelete {
		return tx.transition(tx.nonInviteTerminated, tx.onTerminate)
	}
	return sigNone
}

// --- actions -------------------------------------------------------------

// onRespond writes the last response back to the client without altering
// any retransmission schedule.
func (tx *ServerTx) onRespond() txSignal {
	if err := tx.passResp(); err != nil {
		return sigServerTransportErr
	}
	return sigNone
}

// onFinalRespond writes a non-2xx final response and arms Timer G (resend
// schedule, unreliable transports only, capped at T2) and Timer H (absolute
// bound on ever seeing the ACK), per §17.2.1.
func (tx *ServerTx) onFinalRespond() txSignal {
	tx.mu.RLock()
	retransmitting := tx.timer_g != nil
	tx.mu.RUnlock()
	if retransmitting {
		tx.metrics.retransmitted("server")
	}

	if !(retransmitting && tx.disableRetransmitSending) {
		if err := tx.passResp(); err != nil {
			return sigServerTransportErr
		}
	}

	if !tx.reliable {
		tx.mu.Lock()
		if tx.timer_g == nil {
			tx.timer_g = time.AfterFunc(tx.timer_g_time, func() {
				tx.spinFsm(sigServerTimerG)
			})
		} else {
			tx.timer_g_time *= 2
			if tx.timer_g_time > T2 {
				tx.timer_g_time = T2
			}
			tx.timer_g.Reset(tx.timer_g_time)
		}
		tx.mu.Unlock()
	}

	tx.mu.Lock()
	if tx.timer_h == nil {
		tx.timer_h = time.AfterFunc(Timer_H, func() {
			tx.spinFsm(sigServerTimerH)
		})
	}
	tx.mu.Unlock()

	return sigNone
}

// onAcceptedRespond writes the 2xx and arms Timer L, which bounds how long
// this transaction keeps absorbing 2xx retransmits from the core (§13.3.1.4).
func (tx *ServerTx) onAcceptedRespond() txSignal {
	if err := tx.passResp(); err != nil {
		return sigServerTransportErr
	}

	tx.mu.Lock()
	tx.timer_l = time.AfterFunc(Timer_L, func() {
		tx.spinFsm(sigServerTimerL)
	})
	tx.mu.Unlock()

	return sigNone
}

// onAckPassedUp hands an ACK for a 2xx up to the core; this transaction has
// no further bookkeeping to do for it.
func (tx *ServerTx) onAckPassedUp() txSignal {
	tx.passAck()
	return sigNone
}

// onNonInviteFinal writes a non-INVITE final response and arms Timer J, the
// window during which duplicate requests still get the cached response.
func (tx *ServerTx) onNonInviteFinal() txSignal {
	if err := tx.passResp(); err != nil {
		return sigServerTransportErr
	}

	tx.mu.Lock()
	tx.timer_j = time.AfterFunc(Timer_J, func() {
		tx.spinFsm(sigServerTimerJ)
	})
	tx.mu.Unlock()

	return sigNone
}

// onTransportError reports a fatal transport error and terminates.
func (tx *ServerTx) onTransportError() txSignal {
	tx.reportTransportError()
	return sigServerDelete
}

func (tx *ServerTx) onTerminate() txSignal {
	tx.delete()
	return sigNone
}

// onAckConfirmed stops Timers G and H, arms Timer I to absorb any stray ACK
// retransmits, and passes the ACK up (§17.2.1, unreliable-transport path).
func (tx *ServerTx) onAckConfirmed() txSignal {
	tx.mu.Lock()

	if tx.timer_g != nil {
		tx.timer_g.Stop()
		tx.timer_g = nil
	}
	if tx.timer_h != nil {
		tx.timer_h.Stop()
		tx.timer_h = nil
	}

	tx.timer_i = time.AfterFunc(Timer_I, func() {
		tx.spinFsm(sigServerTimerI)
	})

	tx.mu.Unlock()

	tx.passAck()
	return sigNone
}

func (tx *ServerTx) onCancelRequest() txSignal {
	tx.passCancel()
	return sigNone
}

func (tx *ServerTx) reportTransportError() {
	tx.mu.RLock()
	err := tx.lastErr
	tx.mu.RUnlock()

	err = fmt.Errorf("transaction failed to send %s: %w", tx.key, err)
	go tx.sendErr(err)
}
