package ril

import (
	"testing"

	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/stretchr/testify/require"
)

type completion struct {
	Token   Token
	Errno   Errno
	Payload any
}

type event struct {
	Event   Unsolicited
	Payload any
}

type recordingHost struct {
	completions []completion
	events      []event
}

func (h *recordingHost) Complete(t Token, errno Errno, payload any) {
	h.completions = append(h.completions, completion{Token: t, Errno: errno, Payload: payload})
}

func (h *recordingHost) Unsolicited(ev Unsolicited, payload any) {
	h.events = append(h.events, event{Event: ev, Payload: payload})
}

func (h *recordingHost) completionsFor(t Token) []completion {
	var out []completion
	for _, c := range h.completions {
		if c.Token == t {
			out = append(out, c)
		}
	}
	return out
}

func (h *recordingHost) eventCount(ev Unsolicited) int {
	n := 0
	for _, e := range h.events {
		if e.Event == ev {
			n++
		}
	}
	return n
}

func (h *recordingHost) reset() {
	h.completions = nil
	h.events = nil
}

type sentMessage struct {
	Command ipc.Command
	Type    ipc.MessageType
	Payload []byte
	Seq     uint8
}

type recordingSender struct {
	sent []sentMessage
}

func (s *recordingSender) Send(cmd ipc.Command, typ ipc.MessageType, payload []byte, seq uint8) {
	s.sent = append(s.sent, sentMessage{
		Command: cmd,
		Type:    typ,
		Payload: append([]byte(nil), payload...),
		Seq:     seq,
	})
}

func (s *recordingSender) count(cmd ipc.Command) int {
	n := 0
	for _, m := range s.sent {
		if m.Command == cmd {
			n++
		}
	}
	return n
}

func (s *recordingSender) last(t *testing.T) sentMessage {
	t.Helper()
	require.NotEmpty(t, s.sent, "nothing was sent")
	return s.sent[len(s.sent)-1]
}

func (s *recordingSender) lastOf(t *testing.T, cmd ipc.Command) sentMessage {
	t.Helper()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].Command == cmd {
			return s.sent[i]
		}
	}
	require.FailNow(t, "command was not sent", "command=%s", cmd)
	return sentMessage{}
}

func (s *recordingSender) reset() { s.sent = nil }

type testRig struct {
	engine *Engine
	host   *recordingHost
	fmt    *recordingSender
	rfs    *recordingSender
	srs    *recordingSender
	nv     *memoryNV
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	r := &testRig{
		host: &recordingHost{},
		fmt:  &recordingSender{},
		rfs:  &recordingSender{},
		srs:  &recordingSender{},
		nv:   &memoryNV{data: make([]byte, 64)},
	}
	e, err := New(DefaultConfig(), Deps{Host: r.host, FMT: r.fmt, RFS: r.rfs, SRS: r.srs, NV: r.nv})
	require.NoError(t, err)
	r.engine = e
	return r
}

// powerOn walks the radio to SimNotReady the way a booting modem does.
func (r *testRig) powerOn(t *testing.T) {
	t.Helper()
	r.engine.Dispatch(notification(ipc.PWRPhonePwrUp, nil))
	r.engine.Dispatch(notification(ipc.PWRPhoneState, []byte{ipc.PhoneStateReply(ipc.PhoneStateNormal)}))
	require.Equal(t, RadioSimNotReady, r.engine.RadioState())
}

// simReady additionally reports an unlocked SIM.
func (r *testRig) simReady(t *testing.T) {
	t.Helper()
	r.powerOn(t)
	r.engine.Dispatch(notification(ipc.SECSIMStatus, ipc.SIMStatus{Status: ipc.SIMStatusInitComplete}.Marshal()))
	require.Equal(t, RadioSimReady, r.engine.RadioState())
	r.host.reset()
	r.fmt.reset()
}

func notification(cmd ipc.Command, payload []byte) ipc.Message {
	return ipc.Message{Channel: ipc.ChannelFMT, Command: cmd, Type: ipc.TypeNotification, Seq: 0xff, Payload: payload}
}

func response(cmd ipc.Command, seq uint8, payload []byte) ipc.Message {
	return ipc.Message{Channel: ipc.ChannelFMT, Command: cmd, Type: ipc.TypeResponse, Seq: seq, Payload: payload}
}

func genericAck(seq uint8, cmd ipc.Command, ok bool) ipc.Message {
	code := uint16(ipc.GenericSuccessCode)
	if !ok {
		code = 0x8001
	}
	return genericAckCode(seq, cmd, code)
}

func genericAckCode(seq uint8, cmd ipc.Command, code uint16) ipc.Message {
	res := ipc.GenericResponse{Group: cmd.Group(), Index: cmd.Index(), Type: 0x01, Code: code}
	return response(ipc.GENPhoneRes, seq, res.Marshal())
}

type memoryNV struct {
	data []byte
}

func (m *memoryNV) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, errShortNV
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, errShortNV
	}
	return n, nil
}

func (m *memoryNV) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(m.data) {
		return 0, errShortNV
	}
	return copy(m.data[off:], p), nil
}

type nvError string

func (e nvError) Error() string { return string(e) }

const errShortNV = nvError("nv: out of range")
