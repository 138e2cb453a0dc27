package ril

import (
	"github.com/danmuck/ipcril/internal/protocol/ipc"
)

// rssiUnknown is what the modem reports while it has no measurement.
const rssiUnknown = 0xff

// signalStrengthFor converts the modem's RSSI to a 0..31 ASU level.
func signalStrengthFor(rssi uint8) SignalStrength {
	asu := 0
	if rssi <= 0x6f {
		d := 0x71 - int(rssi)
		asu = (d - d%2) / 2
		if asu > 31 {
			asu = 31
		}
	}
	return SignalStrength{
		GSMSignalStrength: asu,
		GSMBitErrorRate:   99,
		CDMADbm:           asu,
		CDMAEcio:          200,
		EVDODbm:           asu,
		EVDOEcio:          200,
	}
}

func (e *Engine) requestSignalStrength(t Token) {
	e.sendFMT(ipc.DISPIconInfo, ipc.TypeGet, []byte{1}, e.seqFor(t))
}

// Readings taken outside normal power mode are stale and dropped. A
// solicited request caught by this keeps its record until a resync evicts it.
func (e *Engine) onIconInfo(msg ipc.Message) {
	if !e.powerNormal {
		return
	}
	info, err := ipc.DecodeIconInfo(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed icon info")
		e.complete(e.tokenFor(msg), GenericFailure, nil)
		return
	}
	switch msg.Type {
	case ipc.TypeNotification:
		if info.RSSI == rssiUnknown {
			return
		}
		e.unsolicited(UnsolSignalStrength, signalStrengthFor(info.RSSI))
	case ipc.TypeResponse:
		e.complete(e.tokenFor(msg), Success, signalStrengthFor(info.RSSI))
	}
}

func (e *Engine) onRSSIInfo(msg ipc.Message) {
	if !e.powerNormal {
		return
	}
	rssi, err := ipc.DecodeRSSIInfo(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed rssi info")
		return
	}
	e.unsolicited(UnsolSignalStrength, signalStrengthFor(rssi))
}
