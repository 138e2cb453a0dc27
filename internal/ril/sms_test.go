package ril

import (
	"encoding/binary"
	"testing"

	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/danmuck/ipcril/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSMSC = []byte{0x07, 0x91, 0x44, 0x77, 0x58, 0x10, 0x06, 0x50}

	// SMS-SUBMIT to +12345678901, 7-bit "hi".
	singlePDU = []byte{
		0x01, 0x00, 0x0b, 0x91, 0x21, 0x43, 0x65, 0x87, 0x09, 0xf1,
		0x00, 0x00, 0x02, 0xe8, 0x34,
	}

	// Same destination, part 1 of 2 with an 8-bit concatenation header.
	concatPDU = []byte{
		0x41, 0x00, 0x0b, 0x91, 0x21, 0x43, 0x65, 0x87, 0x09, 0xf1,
		0x00, 0x00, 0x09,
		0x05, 0x00, 0x03, 0x01, 0x02, 0x01,
		0xd0, 0x69,
	}
)

func sendMsgResponse(tpid uint8, errCode uint16) []byte {
	b := make([]byte, ipc.SendMsgResponseSize)
	b[0] = ipc.SMSTypeOutgoing
	binary.LittleEndian.PutUint16(b[1:3], errCode)
	b[3] = tpid
	return b
}

func incomingPayload(typ, tpid uint8, pdu []byte) []byte {
	b := []byte{0x00, typ, 0x00, 0x00, tpid, uint8(len(pdu))}
	return append(b, pdu...)
}

func TestSMSMessageType(t *testing.T) {
	testlog.Start(t)

	assert.Equal(t, ipc.SMSMsgSingle, smsMessageType(singlePDU))
	assert.Equal(t, ipc.SMSMsgMultiple, smsMessageType(concatPDU))
	assert.Equal(t, ipc.SMSMsgSingle, smsMessageType([]byte{0xff}))
}

func TestSendSMSWithSMSC(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.OnRequest(1, SendSMS{SMSC: testSMSC, PDU: singlePDU})

	req := rig.fmt.last(t)
	require.Equal(t, ipc.SMSSendMsg, req.Command)
	assert.Equal(t, ipc.TypeExec, req.Type)

	want := []byte{ipc.SMSTypeOutgoing, ipc.SMSMsgSingle, uint8(len(singlePDU) + 8), 7}
	want = append(want, testSMSC[1:]...)
	want = append(want, singlePDU...)
	assert.Equal(t, want, req.Payload)
	assert.True(t, rig.engine.Status().SMSLocked)

	rig.engine.Dispatch(genericAck(req.Seq, ipc.SMSSendMsg, true))
	assert.Empty(t, rig.host.completions)

	rig.engine.Dispatch(response(ipc.SMSSendMsg, req.Seq, sendMsgResponse(42, ipc.SMSAckNoError)))
	require.Len(t, rig.host.completionsFor(1), 1)
	assert.Equal(t, completion{Token: 1, Errno: Success, Payload: SMSResponse{MessageRef: 42, ErrorCode: -1}}, rig.host.completionsFor(1)[0])
	assert.False(t, rig.engine.Status().SMSLocked)
}

func TestSendSMSNetworkErrorFails(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.OnRequest(1, SendSMS{SMSC: testSMSC, PDU: singlePDU})
	req := rig.fmt.last(t)

	rig.engine.Dispatch(response(ipc.SMSSendMsg, req.Seq, sendMsgResponse(3, ipc.SMSAckUnspecError)))

	require.Len(t, rig.host.completions, 1)
	assert.Equal(t, GenericFailure, rig.host.completions[0].Errno)
	assert.Equal(t, SMSResponse{MessageRef: 3, ErrorCode: 500}, rig.host.completions[0].Payload)
}

func TestSendSMSFetchesServiceCenter(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.OnRequest(2, SendSMS{PDU: singlePDU})

	query := rig.fmt.last(t)
	require.Equal(t, ipc.SMSSvcCenterAddr, query.Command)
	assert.Equal(t, ipc.TypeGet, query.Type)
	assert.Equal(t, 1, rig.engine.Status().SMSQueued)

	rig.engine.Dispatch(response(ipc.SMSSvcCenterAddr, query.Seq, testSMSC))

	req := rig.fmt.last(t)
	require.Equal(t, ipc.SMSSendMsg, req.Command)
	assert.Equal(t, query.Seq, req.Seq)
	assert.Equal(t, 0, rig.engine.Status().SMSQueued)
	assert.Equal(t, testSMSC[1:], req.Payload[ipc.SendMsgRequestSize:ipc.SendMsgRequestSize+7])
}

func TestSendSMSQueuesWhileLockedAndDrainsNewestFirst(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.OnRequest(1, SendSMS{SMSC: testSMSC, PDU: singlePDU})
	first := rig.fmt.last(t)

	rig.engine.OnRequest(2, SendSMS{SMSC: testSMSC, PDU: singlePDU})
	rig.engine.OnRequest(3, SendSMS{SMSC: testSMSC, PDU: concatPDU})
	assert.Equal(t, 1, rig.fmt.count(ipc.SMSSendMsg))
	assert.Equal(t, 2, rig.engine.Status().SMSQueued)

	rig.engine.Dispatch(response(ipc.SMSSendMsg, first.Seq, sendMsgResponse(1, ipc.SMSAckNoError)))

	require.Equal(t, 2, rig.fmt.count(ipc.SMSSendMsg))
	rec, err := rig.engine.registry.LookupByToken(3)
	require.NoError(t, err)
	next := rig.fmt.last(t)
	assert.Equal(t, rec.Seq, next.Seq)
	assert.Equal(t, ipc.SMSMsgMultiple, next.Payload[1])
	assert.Equal(t, 1, rig.engine.Status().SMSQueued)
	assert.True(t, rig.engine.Status().SMSLocked)
}

func TestSendSMSAfterServiceCenterReplyOnFullQueue(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.OnRequest(1, SendSMS{PDU: singlePDU})
	query := rig.fmt.last(t)
	require.Equal(t, ipc.SMSSvcCenterAddr, query.Command)

	for tok := Token(2); tok <= 10; tok++ {
		rig.engine.OnRequest(tok, SendSMS{SMSC: testSMSC, PDU: singlePDU})
	}
	require.Equal(t, 10, rig.engine.Status().SMSQueued)

	rig.engine.Dispatch(response(ipc.SMSSvcCenterAddr, query.Seq, testSMSC))
	require.Equal(t, 9, rig.engine.Status().SMSQueued)

	require.NotPanics(t, func() {
		rig.engine.OnRequest(11, SendSMS{SMSC: testSMSC, PDU: singlePDU})
	})
	assert.Equal(t, 10, rig.engine.Status().SMSQueued)
	assert.Empty(t, rig.host.completions)
}

func TestSendSMSRejectedAckReleasesLock(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.OnRequest(1, SendSMS{SMSC: testSMSC, PDU: singlePDU})
	req := rig.fmt.last(t)

	rig.engine.Dispatch(genericAck(req.Seq, ipc.SMSSendMsg, false))

	assert.Equal(t, []completion{{Token: 1, Errno: GenericFailure}}, rig.host.completions)
	assert.False(t, rig.engine.Status().SMSLocked)
}

func TestSendSMSValidation(t *testing.T) {
	testlog.Start(t)

	cases := map[string]SendSMS{
		"empty pdu":       {SMSC: testSMSC},
		"pdu too long":    {SMSC: testSMSC, PDU: make([]byte, 256)},
		"smsc truncated":  {SMSC: []byte{0x09, 0x91, 0x44}, PDU: singlePDU},
		"message too big": {SMSC: testSMSC, PDU: make([]byte, 250)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			testlog.Start(t)

			rig := newTestRig(t)
			rig.engine.OnRequest(1, req)

			assert.Equal(t, []completion{{Token: 1, Errno: GenericFailure}}, rig.host.completions)
			assert.Zero(t, rig.fmt.count(ipc.SMSSendMsg))
			assert.False(t, rig.engine.Status().SMSLocked)
		})
	}
}

func TestIncomingSMSWaitsForAck(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.Dispatch(notification(ipc.SMSIncomingMsg, incomingPayload(ipc.SMSTypePointToPoint, 7, []byte{0xaa, 0xbb})))
	rig.engine.Dispatch(notification(ipc.SMSIncomingMsg, incomingPayload(ipc.SMSTypeStatusReport, 8, []byte{0xcc})))

	require.Len(t, rig.host.events, 1)
	assert.Equal(t, event{Event: UnsolNewSMS, Payload: IncomingSMS{PDU: []byte{0xaa, 0xbb}}}, rig.host.events[0])
	assert.Equal(t, 1, rig.engine.Status().IncomingQueued)

	rig.engine.OnRequest(20, SMSAcknowledge{Success: true})

	report := rig.fmt.last(t)
	require.Equal(t, ipc.SMSDeliverReport, report.Command)
	want := ipc.DeliverReport{Type: ipc.SMSTypeStatusReport, Error: ipc.SMSAckNoError, MsgTPID: 7}.Marshal()
	assert.Equal(t, want, report.Payload)

	require.Len(t, rig.host.events, 2)
	assert.Equal(t, event{Event: UnsolNewSMSStatusReport, Payload: IncomingSMS{PDU: []byte{0xcc}}}, rig.host.events[1])
	assert.Zero(t, rig.engine.Status().IncomingQueued)

	rig.engine.Dispatch(genericAck(report.Seq, ipc.SMSDeliverReport, true))
	assert.Empty(t, rig.host.completions)

	rig.engine.Dispatch(response(ipc.SMSDeliverReport, report.Seq, want))
	assert.Equal(t, []completion{{Token: 20, Errno: Success}}, rig.host.completions)
}

func TestSMSAcknowledgeWithoutMessageFails(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.OnRequest(5, SMSAcknowledge{Success: true})

	assert.Equal(t, []completion{{Token: 5, Errno: GenericFailure}}, rig.host.completions)
	assert.Empty(t, rig.fmt.sent)
}

func TestIncomingSMSUnknownTypeIsSkipped(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.Dispatch(notification(ipc.SMSIncomingMsg, incomingPayload(ipc.SMSTypePointToPoint, 1, []byte{0x01})))
	rig.engine.Dispatch(notification(ipc.SMSIncomingMsg, incomingPayload(0x7f, 2, []byte{0x02})))
	rig.engine.Dispatch(notification(ipc.SMSIncomingMsg, incomingPayload(ipc.SMSTypePointToPoint, 3, []byte{0x03})))

	rig.engine.OnRequest(9, SMSAcknowledge{Success: true})

	require.Len(t, rig.host.events, 2)
	assert.Equal(t, IncomingSMS{PDU: []byte{0x03}}, rig.host.events[1].Payload)
}

func TestSMSAckError(t *testing.T) {
	testlog.Start(t)

	assert.Equal(t, ipc.SMSAckNoError, smsAckError(true, 0))
	assert.Equal(t, ipc.SMSAckPDAFull, smsAckError(false, 0xd3))
	assert.Equal(t, ipc.SMSAckUnspecError, smsAckError(false, 0xff))
}

func TestDeviceReadyOnlyAnsweredWhenSIMReady(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.powerOn(t)
	rig.fmt.reset()

	rig.engine.Dispatch(notification(ipc.SMSDeviceReady, nil))
	assert.Zero(t, rig.fmt.count(ipc.SMSDeviceReady))

	rig.simReady(t)
	rig.engine.Dispatch(notification(ipc.SMSDeviceReady, nil))
	ready := rig.fmt.lastOf(t, ipc.SMSDeviceReady)
	assert.Equal(t, ipc.TypeSet, ready.Type)
	assert.Equal(t, uint8(0xff), ready.Seq)
}
