package ril

import (
	"github.com/danmuck/ipcril/internal/observability"
	"github.com/danmuck/ipcril/internal/protocol/ipc"
)

type handlerFunc func(*Engine, ipc.Message)

var fmtHandlers = map[ipc.Command]handlerFunc{
	ipc.GENPhoneRes: (*Engine).onGenericResponse,

	ipc.PWRPhonePwrUp: (*Engine).onPowerUp,
	ipc.PWRPhoneReset: (*Engine).onPowerReset,
	ipc.PWRPhoneState: (*Engine).onPhoneState,

	ipc.DISPIconInfo: (*Engine).onIconInfo,
	ipc.DISPRSSIInfo: (*Engine).onRSSIInfo,

	ipc.MISCMEVersion: (*Engine).onBasebandVersion,
	ipc.MISCMEIMSI:    (*Engine).onIMSI,
	ipc.MISCMESN:      (*Engine).onSerialNumber,
	ipc.MISCTimeInfo:  (*Engine).onTimeInfo,

	ipc.SSUSSD: (*Engine).onUSSD,

	ipc.SECSIMStatus:  (*Engine).onSIMStatus,
	ipc.SECSIMICCType: (*Engine).onSIMICCType,
	ipc.SECLockInfo:   (*Engine).onLockInfo,
	ipc.SECRSIMAccess: (*Engine).onRSIMAccess,
	ipc.SECPhoneLock:  (*Engine).onPhoneLock,

	ipc.SMSSendMsg:       (*Engine).onSendMsg,
	ipc.SMSIncomingMsg:   (*Engine).onIncomingMsg,
	ipc.SMSDeliverReport: (*Engine).onDeliverReport,
	ipc.SMSDeviceReady:   (*Engine).onDeviceReady,
	ipc.SMSSvcCenterAddr: (*Engine).onSvcCenterAddr,
}

var rfsHandlers = map[ipc.Command]handlerFunc{
	ipc.RFSNVReadItem:  (*Engine).onNVRead,
	ipc.RFSNVWriteItem: (*Engine).onNVWrite,
}

var srsHandlers = map[ipc.Command]handlerFunc{
	ipc.SRSControlPing:         (*Engine).onSRSPing,
	ipc.SRSSndSetCallVolume:    (*Engine).onSRSSound,
	ipc.SRSSndSetCallAudioPath: (*Engine).onSRSSound,
	ipc.SRSSndSetCallClockSync: (*Engine).onSRSSound,
}

// Dispatch routes one inbound message. Channel readers call it in arrival
// order; it returns once the handler has run.
func (e *Engine) Dispatch(msg ipc.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	observability.RecordIPCMessage(msg.Channel.String(), "in", ipc.CommandName(msg.Channel, msg.Command))

	var handlers map[ipc.Command]handlerFunc
	switch msg.Channel {
	case ipc.ChannelFMT:
		// The modem may have consumed ids on its own; never hand one out twice.
		e.registry.Resync(msg.Seq)
		handlers = fmtHandlers
	case ipc.ChannelRFS:
		handlers = rfsHandlers
	case ipc.ChannelSRS:
		handlers = srsHandlers
	}

	h, ok := handlers[msg.Command]
	if !ok {
		observability.RecordUnknownCommand(msg.Channel.String())
		e.log.Error().
			Stringer("channel", msg.Channel).
			Str("command", ipc.CommandName(msg.Channel, msg.Command)).
			Stringer("type", msg.Type).
			Msg("unhandled command")
		return
	}
	h(e, msg)
	e.publishQueueDepth()
}

func (e *Engine) onGenericResponse(msg ipc.Message) {
	res, err := ipc.DecodeGenericResponse(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Uint8("seq", msg.Seq).Msg("malformed generic response")
		e.complete(e.tokenFor(msg), GenericFailure, nil)
		return
	}

	exp, ok := e.expect.Take(msg.Seq)
	if !ok {
		e.log.Debug().
			Uint8("seq", msg.Seq).
			Stringer("command", res.Command()).
			Msg("generic response without expectation")
		return
	}
	if exp.Command != res.Command() {
		e.log.Warn().
			Uint8("seq", msg.Seq).
			Stringer("expected", exp.Command).
			Stringer("got", res.Command()).
			Msg("generic response for unexpected command")
	}

	switch exp.Action {
	case ActionCallback:
		if exp.Handler != nil {
			exp.Handler(msg, res)
		}
	case ActionAutoComplete:
		errno := Success
		if !res.OK() {
			errno = GenericFailure
		}
		e.complete(e.tokenFor(msg), errno, nil)
	case ActionAutoAbort:
		if !res.OK() {
			e.log.Warn().
				Uint8("seq", msg.Seq).
				Stringer("command", res.Command()).
				Uint16("code", res.Code).
				Msg("acknowledgment failed, waiting for follow-up")
		}
	}
}
