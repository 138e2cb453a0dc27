package ril

import (
	"github.com/danmuck/ipcril/internal/observability"
	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/warthog618/sms"
)

// Outgoing SMS

func (e *Engine) requestSendSMS(t Token, r SendSMS) {
	if !e.sms.Acquire() {
		e.log.Debug().Msg("sms lock taken, queueing")
		e.enqueueSMS(e.seqFor(t), r.PDU, r.SMSC)
		return
	}

	if r.SMSC == nil {
		// The entry waits in the queue until the modem names its SMSC.
		seq := e.seqFor(t)
		e.enqueueSMS(seq, r.PDU, nil)
		e.sendFMT(ipc.SMSSvcCenterAddr, ipc.TypeGet, nil, seq)
		return
	}

	e.sendSMSMessage(t, r.PDU, r.SMSC)
}

func (e *Engine) enqueueSMS(seq uint8, pdu, smsc []byte) {
	slot, evicted := e.sms.Add(seq, pdu, smsc)
	if evicted {
		observability.RecordSMSEviction()
	}
	e.log.Debug().Int("slot", slot).Int("queued", e.sms.Len()).Msg("sms queued")
}

// sendSMSMessage builds SEND_MSG from a raw TPDU and an SMSC whose first byte
// is its own length.
func (e *Engine) sendSMSMessage(t Token, pdu, smsc []byte) {
	if len(pdu) == 0 || len(smsc) == 0 {
		e.log.Error().Msg("sms pdu or smsc missing")
		e.failSMS(t)
		return
	}
	if len(pdu) > e.cfg.MaxPDUBytes {
		e.log.Error().Int("length", len(pdu)).Msg("sms pdu too large")
		e.failSMS(t)
		return
	}
	smscLen := int(smsc[0])
	if smscLen > len(smsc)-1 {
		e.log.Error().Int("declared", smscLen).Int("length", len(smsc)-1).Msg("sms smsc truncated")
		e.failSMS(t)
		return
	}
	total := len(pdu) + smscLen + 1
	if total > 0xff {
		e.log.Error().Int("length", total).Msg("sms message too large")
		e.failSMS(t)
		return
	}

	req := ipc.SendMsgRequest{
		Type:    ipc.SMSTypeOutgoing,
		MsgType: smsMessageType(pdu),
		Length:  uint8(total),
		SMSCLen: uint8(smscLen),
	}
	payload := req.Marshal()
	payload = append(payload, smsc[1:1+smscLen]...)
	payload = append(payload, pdu...)

	seq := e.seqFor(t)
	e.expect.Callback(seq, ipc.SMSSendMsg, e.sendMsgAck)
	e.sendFMT(ipc.SMSSendMsg, ipc.TypeExec, payload, seq)
}

// smsMessageType flags segments of a concatenated message. A TPDU that does
// not parse is sent as a single part.
func smsMessageType(pdu []byte) uint8 {
	t, err := sms.Unmarshal(pdu, sms.AsMO)
	if err != nil {
		return ipc.SMSMsgSingle
	}
	segments, _, _, ok := t.ConcatInfo()
	if ok && segments > 1 {
		return ipc.SMSMsgMultiple
	}
	return ipc.SMSMsgSingle
}

func (e *Engine) failSMS(t Token) {
	e.complete(t, GenericFailure, nil)
	e.nextSMS()
}

func (e *Engine) sendMsgAck(msg ipc.Message, res ipc.GenericResponse) {
	if res.OK() {
		return
	}
	e.log.Error().Uint16("code", res.Code).Msg("sms send rejected")
	e.failSMS(e.tokenFor(msg))
}

func (e *Engine) onSvcCenterAddr(msg ipc.Message) {
	t := e.tokenFor(msg)
	slot, ok := e.sms.FindBySeq(msg.Seq)
	if !ok {
		e.log.Error().Uint8("seq", msg.Seq).Msg("smsc reply for a request that was not queued")
		e.failSMS(t)
		return
	}
	entry, _ := e.sms.Take(slot)
	e.sendSMSMessage(t, entry.PDU, msg.Payload)
}

func (e *Engine) onSendMsg(msg ipc.Message) {
	t := e.tokenFor(msg)
	res, err := ipc.DecodeSendMsgResponse(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed send msg response")
		e.failSMS(t)
		return
	}

	resp := SMSResponse{MessageRef: int(res.MsgTPID), ErrorCode: -1}
	errno := Success
	if res.Error != ipc.SMSAckNoError {
		resp.ErrorCode = 500
		errno = GenericFailure
	}
	e.log.Debug().Uint8("tpid", res.MsgTPID).Stringer("errno", errno).Msg("sms sent")
	e.complete(t, errno, resp)
	e.nextSMS()
}

// nextSMS releases the send lock and resubmits the newest queued entry.
func (e *Engine) nextSMS() {
	e.sms.Release()
	for {
		slot, ok := e.sms.Next()
		if !ok {
			return
		}
		entry, _ := e.sms.Take(slot)
		t := e.registry.TokenFor(entry.Seq)
		if t == NoToken {
			e.log.Error().Uint8("seq", entry.Seq).Msg("queued sms lost its request, dropping")
			continue
		}
		e.log.Debug().Int("slot", slot).Msg("sending queued sms")
		e.requestSendSMS(t, SendSMS{SMSC: entry.SMSC, PDU: entry.PDU})
		return
	}
}

// Incoming SMS

func (e *Engine) onIncomingMsg(msg ipc.Message) {
	in, err := ipc.DecodeIncomingMsg(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed incoming sms")
		return
	}
	if len(in.PDU) == 0 {
		return
	}
	if e.incomingAwaitingAck {
		e.log.Debug().Int("queued", len(e.incoming)+1).Msg("sms awaiting ack, queueing")
		e.incoming = append(e.incoming, pendingSMS{pdu: in.PDU, typ: in.Type, tpid: in.MsgTPID})
		return
	}
	e.deliverIncoming(pendingSMS{pdu: in.PDU, typ: in.Type, tpid: in.MsgTPID})
}

// deliverIncoming hands one message to the host. It reports false for a
// message type the host has no event for.
func (e *Engine) deliverIncoming(m pendingSMS) bool {
	var event Unsolicited
	switch m.typ {
	case ipc.SMSTypePointToPoint:
		event = UnsolNewSMS
	case ipc.SMSTypeStatusReport:
		event = UnsolNewSMSStatusReport
	default:
		e.log.Error().Uint8("type", m.typ).Msg("unhandled incoming sms type")
		return false
	}
	e.incomingAwaitingAck = true
	e.incomingTPID = m.tpid
	e.unsolicited(event, IncomingSMS{PDU: m.pdu})
	return true
}

func (e *Engine) releaseIncoming() {
	for len(e.incoming) > 0 {
		m := e.incoming[0]
		e.incoming = e.incoming[1:]
		if e.deliverIncoming(m) {
			return
		}
	}
}

func smsAckError(success bool, failCause int) uint16 {
	switch {
	case success:
		return ipc.SMSAckNoError
	case failCause == 0xd3:
		return ipc.SMSAckPDAFull
	default:
		return ipc.SMSAckUnspecError
	}
}

func (e *Engine) requestSMSAcknowledge(t Token, r SMSAcknowledge) {
	if !e.incomingAwaitingAck {
		e.log.Error().Msg("no sms to acknowledge")
		e.complete(t, GenericFailure, nil)
		return
	}

	report := ipc.DeliverReport{
		Type:    ipc.SMSTypeStatusReport,
		Error:   smsAckError(r.Success, r.FailCause),
		MsgTPID: e.incomingTPID,
	}
	seq := e.seqFor(t)
	e.expect.AutoAbort(seq, ipc.SMSDeliverReport)
	e.sendFMT(ipc.SMSDeliverReport, ipc.TypeExec, report.Marshal(), seq)

	e.incomingAwaitingAck = false
	e.incomingTPID = 0
	e.releaseIncoming()
}

func (e *Engine) onDeliverReport(msg ipc.Message) {
	report, err := ipc.DecodeDeliverReport(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed deliver report")
		return
	}
	errno := Success
	if report.Error != ipc.SMSAckNoError {
		errno = GenericFailure
	}
	e.complete(e.tokenFor(msg), errno, nil)
}

func (e *Engine) onDeviceReady(msg ipc.Message) {
	if e.radio.Current() == RadioSimReady {
		e.sendFMT(ipc.SMSDeviceReady, ipc.TypeSet, nil, msg.Seq)
	}
	e.sweepTokens()
}
