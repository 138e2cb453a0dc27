package ril

import (
	"github.com/danmuck/ipcril/internal/protocol/ipc"
)

func (e *Engine) onPowerUp(ipc.Message) {
	e.log.Info().Msg("modem powered up")
	e.updateRadio(eventModemUp)
}

func (e *Engine) onPowerReset(ipc.Message) {
	e.log.Info().Msg("modem reset")
	e.updateRadio(eventModemReset)
}

// onPhoneState finishes a radio power request. The modem reports the mode it
// settled in rather than echoing the request.
func (e *Engine) onPhoneState(msg ipc.Message) {
	mode, err := ipc.DecodePhoneState(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed phone state")
		t := e.held.radioPower
		e.held.radioPower = NoToken
		e.complete(t, GenericFailure, nil)
		return
	}

	var event string
	switch mode {
	case ipc.PhoneStateReply(ipc.PhoneStateLPM):
		e.powerNormal = false
		event = eventPowerLPM
	case ipc.PhoneStateReply(ipc.PhoneStateNormal):
		e.powerNormal = true
		event = eventPowerNormal
	default:
		e.log.Warn().Uint8("mode", mode).Msg("unknown phone state")
		return
	}

	t := e.held.radioPower
	e.held.radioPower = NoToken
	e.complete(t, Success, nil)
	e.updateRadio(event)
}

func (e *Engine) requestRadioPower(t Token, r RadioPower) {
	if e.guard(RadioUnavailable, t) {
		return
	}
	mode := ipc.PhoneStateLPM
	if r.On {
		mode = ipc.PhoneStateNormal
	}
	seq := e.seqFor(t)
	e.expect.AutoAbort(seq, ipc.PWRPhoneState)
	e.sendFMT(ipc.PWRPhoneState, ipc.TypeExec, ipc.PhoneStateRequest(mode), seq)
	e.held.radioPower = t
}
