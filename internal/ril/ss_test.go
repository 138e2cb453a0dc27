package ril

import (
	"strings"
	"testing"

	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/danmuck/ipcril/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/sms/encoding/gsm7"
)

func packUSSD(t *testing.T, text string) []byte {
	t.Helper()
	septets, err := gsm7.Encode([]byte(text))
	require.NoError(t, err)
	return gsm7.Pack7BitUSSD(septets, 0)
}

func ussdPayload(state, dcs uint8, data []byte) []byte {
	return ipc.USSD{State: state, DCS: dcs, Length: uint8(len(data)), Data: data}.Marshal(0)
}

func TestSendUSSDPacksGSM7(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.powerOn(t)
	rig.fmt.reset()
	rig.host.reset()

	rig.engine.OnRequest(1, SendUSSD{Text: "*100#"})

	req := rig.fmt.last(t)
	require.Equal(t, ipc.SSUSSD, req.Command)
	assert.Equal(t, ipc.TypeExec, req.Type)
	require.Len(t, req.Payload, DefaultConfig().MaxUSSDBytes)
	assert.Equal(t, []byte{ipc.USSDNoActionRequire, ussdDCS, 5, 0xaa, 0x18, 0x0c, 0x36, 0x02}, req.Payload[:8])

	rig.engine.Dispatch(genericAck(req.Seq, ipc.SSUSSD, true))
	assert.Equal(t, []completion{{Token: 1, Errno: Success}}, rig.host.completions)
}

func TestSendUSSDFailureResetsSession(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.powerOn(t)
	rig.engine.Dispatch(notification(ipc.SSUSSD, ussdPayload(ipc.USSDActionRequire, ussdDCS, packUSSD(t, "1. Balance"))))
	rig.fmt.reset()
	rig.host.reset()

	rig.engine.OnRequest(2, SendUSSD{Text: "1"})
	req := rig.fmt.last(t)
	assert.Equal(t, []byte{ipc.USSDActionRequire, ussdDCS, 1, '1'}, req.Payload[:4])

	rig.engine.Dispatch(genericAck(req.Seq, ipc.SSUSSD, false))
	assert.Equal(t, []completion{{Token: 2, Errno: GenericFailure}}, rig.host.completions)
	assert.Zero(t, rig.engine.ussdState)

	// With the session gone the next string is packed again.
	rig.engine.OnRequest(3, SendUSSD{Text: "1"})
	assert.Equal(t, ipc.USSDNoActionRequire, rig.fmt.last(t).Payload[0])
}

func TestSendUSSDTooLong(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.powerOn(t)
	rig.fmt.reset()
	rig.host.reset()

	rig.engine.OnRequest(4, SendUSSD{Text: strings.Repeat("1", 300)})

	assert.Equal(t, []completion{{Token: 4, Errno: GenericFailure}}, rig.host.completions)
	assert.Empty(t, rig.fmt.sent)
}

func TestSendUSSDGuardedWhileOff(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.engine.Dispatch(notification(ipc.PWRPhonePwrUp, nil))
	rig.host.reset()

	rig.engine.OnRequest(5, SendUSSD{Text: "*100#"})
	assert.Equal(t, []completion{{Token: 5, Errno: RadioNotAvailable}}, rig.host.completions)
}

func TestCancelUSSD(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	rig.powerOn(t)
	rig.fmt.reset()
	rig.host.reset()

	rig.engine.OnRequest(6, CancelUSSD{})
	req := rig.fmt.last(t)
	assert.Equal(t, []byte{ipc.USSDTerminatedByNet, 0, 0}, req.Payload)
	assert.Equal(t, ipc.USSDTerminatedByNet, rig.engine.ussdState)

	rig.engine.Dispatch(genericAck(req.Seq, ipc.SSUSSD, true))
	assert.Equal(t, []completion{{Token: 6, Errno: Success}}, rig.host.completions)
}

func TestIncomingUSSDDecoding(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		name    string
		payload []byte
		want    USSDNotification
	}{
		{
			name:    "gsm7 menu",
			payload: ussdPayload(ipc.USSDActionRequire, 0x0f, packUSSD(t, "1. Balance")),
			want:    USSDNotification{Type: "1", Message: "1. Balance"},
		},
		{
			name:    "ucs2",
			payload: ussdPayload(ipc.USSDNoActionRequire, 0x11, []byte{0x00, 0x48, 0x00, 0x69}),
			want:    USSDNotification{Type: "0", Message: "Hi"},
		},
		{
			name:    "8-bit as text",
			payload: ussdPayload(ipc.USSDNoActionRequire, 0x44, []byte("abc")),
			want:    USSDNotification{Type: "0", Message: "abc"},
		},
		{
			name:    "terminated without text",
			payload: ussdPayload(ipc.USSDTerminatedByNet, 0x0f, nil),
			want:    USSDNotification{Type: "2"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testlog.Start(t)

			rig := newTestRig(t)
			rig.engine.Dispatch(notification(ipc.SSUSSD, tc.payload))

			require.Len(t, rig.host.events, 1)
			assert.Equal(t, event{Event: UnsolOnUSSD, Payload: tc.want}, rig.host.events[0])
		})
	}
}

func TestIncomingUSSDHonoursLength(t *testing.T) {
	testlog.Start(t)

	rig := newTestRig(t)
	payload := ipc.USSD{State: ipc.USSDNoActionRequire, DCS: 0x44, Length: 2, Data: []byte("abcdef")}.Marshal(0)
	rig.engine.Dispatch(notification(ipc.SSUSSD, payload))

	require.Len(t, rig.host.events, 1)
	assert.Equal(t, USSDNotification{Type: "0", Message: "ab"}, rig.host.events[0].Payload)
}

func TestUSSDCodingFor(t *testing.T) {
	testlog.Start(t)

	assert.Equal(t, ussdCodingGSM7, ussdCodingFor(0x0f))
	assert.Equal(t, ussdCodingGSM7, ussdCodingFor(0x00))
	assert.Equal(t, ussdCodingUCS2, ussdCodingFor(0x11))
	assert.Equal(t, ussdCodingUCS2, ussdCodingFor(0x48))
	assert.Equal(t, ussdCodingASCII, ussdCodingFor(0x44))
}
