package ril

import (
	"strconv"

	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/warthog618/sms/encoding/gsm7"
	"github.com/warthog618/sms/encoding/tpdu"
	"github.com/warthog618/sms/encoding/ucs2"
)

// ussdDCS is the data coding scheme the modem expects on every outgoing
// USSD string, whatever the payload encoding.
const ussdDCS = 0x0f

func (e *Engine) requestSendUSSD(t Token, r SendUSSD) {
	if e.guard(RadioOff, t) {
		return
	}

	u := ipc.USSD{DCS: ussdDCS}
	switch e.ussdState {
	case ipc.USSDActionRequire:
		// The network is waiting on a menu answer, which goes out as plain text.
		u.State = ipc.USSDActionRequire
		u.Data = []byte(r.Text)
	default:
		septets, err := gsm7.Encode([]byte(r.Text))
		if err != nil {
			e.log.Error().Err(err).Msg("ussd text is not gsm7")
			e.complete(t, GenericFailure, nil)
			return
		}
		u.State = ipc.USSDNoActionRequire
		u.Data = gsm7.Pack7BitUSSD(septets, 0)
	}

	if len(u.Data) > e.cfg.MaxUSSDBytes-ipc.USSDHeaderSize {
		e.log.Error().Int("length", len(u.Data)).Msg("ussd message too long")
		e.complete(t, GenericFailure, nil)
		return
	}
	u.Length = uint8(len(u.Data))

	seq := e.seqFor(t)
	e.expect.Callback(seq, ipc.SSUSSD, e.ussdComplete)
	e.sendFMT(ipc.SSUSSD, ipc.TypeExec, u.Marshal(e.cfg.MaxUSSDBytes), seq)
}

func (e *Engine) ussdComplete(msg ipc.Message, res ipc.GenericResponse) {
	t := e.tokenFor(msg)
	if !res.OK() {
		e.log.Error().Uint16("code", res.Code).Msg("ussd request failed")
		e.ussdState = 0
		e.complete(t, GenericFailure, nil)
		return
	}
	e.complete(t, Success, nil)
}

func (e *Engine) requestCancelUSSD(t Token) {
	if e.guard(RadioOff, t) {
		return
	}
	e.ussdState = ipc.USSDTerminatedByNet
	seq := e.seqFor(t)
	e.expect.AutoComplete(seq, ipc.SSUSSD)
	e.sendFMT(ipc.SSUSSD, ipc.TypeExec, ipc.USSD{State: ipc.USSDTerminatedByNet}.Marshal(0), seq)
}

func (e *Engine) onUSSD(msg ipc.Message) {
	u, err := ipc.DecodeUSSD(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed ussd")
		e.complete(e.tokenFor(msg), GenericFailure, nil)
		return
	}
	e.ussdState = u.State

	n := USSDNotification{}
	if u.State >= ipc.USSDNoActionRequire && u.State <= ipc.USSDTimeOut {
		n.Type = strconv.Itoa(int(u.State - ipc.USSDNoActionRequire))
	}

	data := u.Data
	if int(u.Length) < len(data) {
		data = data[:u.Length]
	}
	if len(data) > 0 {
		n.Message = e.decodeUSSDText(u.DCS, data)
	}
	e.unsolicited(UnsolOnUSSD, n)
}

type ussdCoding int

const (
	ussdCodingASCII ussdCoding = iota
	ussdCodingGSM7
	ussdCodingUCS2
)

// ussdCodingFor classifies a CBS data coding scheme (23.038 section 5).
func ussdCodingFor(dcs uint8) ussdCoding {
	switch {
	case dcs&0xf0 == 0x00:
		return ussdCodingGSM7
	case dcs == 0x11:
		return ussdCodingUCS2
	}
	alpha, err := tpdu.DCS(dcs).Alphabet()
	if err != nil {
		return ussdCodingASCII
	}
	switch alpha {
	case tpdu.Alpha7Bit:
		return ussdCodingGSM7
	case tpdu.AlphaUCS2:
		return ussdCodingUCS2
	default:
		return ussdCodingASCII
	}
}

func (e *Engine) decodeUSSDText(dcs uint8, data []byte) string {
	switch ussdCodingFor(dcs) {
	case ussdCodingGSM7:
		text, err := gsm7.Decode(gsm7.Unpack7BitUSSD(data, 0))
		if err != nil {
			e.log.Warn().Err(err).Msg("ussd gsm7 decode failed")
			return string(data)
		}
		return string(text)
	case ussdCodingUCS2:
		runes, err := ucs2.Decode(data)
		if err != nil {
			e.log.Warn().Err(err).Msg("ussd ucs2 decode failed")
		}
		return string(runes)
	default:
		return cStringBytes(data)
	}
}
