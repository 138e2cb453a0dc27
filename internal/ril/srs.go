package ril

import (
	"encoding/binary"

	"github.com/danmuck/ipcril/internal/protocol/ipc"
)

// srsPingMagic is the liveness token the audio service sends; it is echoed
// back unchanged.
const srsPingMagic uint32 = 0xcaffe

func (e *Engine) onSRSPing(msg ipc.Message) {
	if len(msg.Payload) < 4 {
		e.log.Debug().Int("length", len(msg.Payload)).Msg("short srs ping")
		return
	}
	if binary.LittleEndian.Uint32(msg.Payload) != srsPingMagic {
		e.log.Warn().Hex("payload", msg.Payload).Msg("unexpected srs ping payload")
		return
	}
	e.send(e.deps.SRS, ipc.ChannelSRS, ipc.SRSControlPing, ipc.TypeResponse, msg.Payload[:4], msg.Seq)
}

// Call audio is routed by the audio service itself; the engine only records
// what it was asked.
func (e *Engine) onSRSSound(msg ipc.Message) {
	e.log.Debug().Str("command", ipc.CommandName(msg.Channel, msg.Command)).Hex("payload", msg.Payload).Msg("srs sound request")
}
