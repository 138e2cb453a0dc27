package ril

import (
	"github.com/danmuck/ipcril/internal/protocol/ipc"
)

// IMEI and IMEISV come from one serial-number query, so both host requests
// are held until the pair is present.

func (e *Engine) requestIMEI(t Token) {
	if e.guard(RadioOff, t) {
		return
	}
	if e.held.imei != NoToken {
		e.log.Debug().Msg("another imei request is waiting")
		e.complete(t, GenericFailure, nil)
		return
	}
	e.held.imei = t
	if e.held.imeisv == NoToken {
		e.log.Debug().Msg("waiting for imeisv request")
		return
	}
	e.sendSerialQuery()
}

func (e *Engine) requestIMEISV(t Token) {
	if e.guard(RadioOff, t) {
		return
	}
	if e.held.imeisv != NoToken {
		e.log.Debug().Msg("another imeisv request is waiting")
		e.complete(t, GenericFailure, nil)
		return
	}
	e.held.imeisv = t
	if e.held.imei == NoToken {
		e.log.Debug().Msg("waiting for imei request")
		return
	}
	e.sendSerialQuery()
}

func (e *Engine) sendSerialQuery() {
	seq := e.seqFor(e.held.imei)
	e.sendFMT(ipc.MISCMESN, ipc.TypeGet, []byte{ipc.MESNSerialNum}, seq)
}

func (e *Engine) onSerialNumber(msg ipc.Message) {
	if msg.Type != ipc.TypeResponse {
		return
	}
	sn, err := ipc.DecodeMESerial(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed serial number")
		e.complete(e.tokenFor(msg), GenericFailure, nil)
		return
	}

	switch sn.Type {
	case ipc.MESNSerialNum:
		e.completeIMEI(msg, sn)
	case ipc.MESNSerialNumSerial:
		e.log.Debug().Str("serial", cStringBytes(sn.Data[:])).Msg("board serial number")
	}
}

func (e *Engine) completeIMEI(msg ipc.Message, sn ipc.MESerial) {
	t := e.tokenFor(msg)
	if e.held.imei != t {
		e.log.Warn().
			Uint64("held", uint64(e.held.imei)).
			Uint64("token", uint64(t)).
			Msg("imei token mismatch")
	}
	if int(sn.Length) > len(sn.Data) {
		e.log.Error().Uint8("length", sn.Length).Msg("imei length out of range")
		return
	}

	raw := sn.Data[:sn.Length]
	imei := cStringBytes(raw)
	imeisv := ""
	if len(raw) >= 2 {
		imeisv = cStringBytes(raw[len(raw)-2:])
	}

	if t != NoToken && t != e.held.imei {
		e.complete(t, Success, imei)
	}
	if e.held.imei != NoToken {
		held := e.held.imei
		e.held.imei = NoToken
		e.complete(held, Success, imei)
	}
	if e.held.imeisv != NoToken {
		held := e.held.imeisv
		e.held.imeisv = NoToken
		e.complete(held, Success, imeisv)
	}
}

func (e *Engine) requestBasebandVersion(t Token) {
	if e.guard(RadioOff, t) {
		return
	}
	if e.held.baseband != NoToken {
		e.log.Debug().Msg("another baseband version request is waiting")
		e.complete(t, GenericFailure, nil)
		return
	}
	e.held.baseband = t
	e.sendFMT(ipc.MISCMEVersion, ipc.TypeGet, []byte{0xff}, e.seqFor(t))
}

func (e *Engine) onBasebandVersion(msg ipc.Message) {
	if msg.Type != ipc.TypeResponse {
		return
	}
	t := e.tokenFor(msg)
	v, err := ipc.DecodeMEVersion(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed version record")
		e.complete(t, GenericFailure, nil)
		return
	}
	if e.held.baseband != t {
		e.log.Warn().
			Uint64("held", uint64(e.held.baseband)).
			Uint64("token", uint64(t)).
			Msg("baseband token mismatch")
	}
	e.held.baseband = NoToken
	e.complete(t, Success, v.SWVersion)
}

func (e *Engine) requestIMSI(t Token) {
	if e.guard(RadioOff, t) {
		return
	}
	e.sendFMT(ipc.MISCMEIMSI, ipc.TypeGet, nil, e.seqFor(t))
}

func (e *Engine) onIMSI(msg ipc.Message) {
	if msg.Type != ipc.TypeResponse {
		return
	}
	imsi, err := ipc.DecodeIMSI(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed imsi")
		e.complete(e.tokenFor(msg), GenericFailure, nil)
		return
	}
	e.complete(e.tokenFor(msg), Success, imsi)
}

func (e *Engine) onTimeInfo(msg ipc.Message) {
	ti, err := ipc.DecodeTimeInfo(msg.Payload)
	if err != nil {
		e.log.Debug().Err(err).Msg("dropping short time info")
		return
	}
	e.unsolicited(UnsolNITZTimeReceived, ti.NITZ())
}

func cStringBytes(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
