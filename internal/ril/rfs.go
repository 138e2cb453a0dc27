package ril

import (
	"io"

	"github.com/danmuck/ipcril/internal/protocol/ipc"
)

// NVStore backs the modem's non-volatile item area. An *os.File opened
// read-write satisfies it.
type NVStore interface {
	io.ReaderAt
	io.WriterAt
}

func (e *Engine) sendRFS(cmd ipc.Command, payload []byte, seq uint8) {
	e.send(e.deps.RFS, ipc.ChannelRFS, cmd, ipc.TypeResponse, payload, seq)
}

func (e *Engine) onNVRead(msg ipc.Message) {
	req, err := ipc.DecodeNVIO(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed nv read")
		return
	}
	if e.deps.NV == nil {
		e.log.Error().Msg("nv read without a store")
		return
	}

	conf := ipc.NVIOConfirm{Offset: req.Offset, Length: req.Length}
	if int64(req.Length) > int64(e.cfg.MaxNVIOBytes) {
		e.log.Error().Uint32("length", req.Length).Msg("nv read too large")
		e.sendRFS(ipc.RFSNVReadItem, conf.Marshal(), msg.Seq)
		return
	}

	buf := make([]byte, req.Length)
	n, err := e.deps.NV.ReadAt(buf, int64(req.Offset))
	conf.Confirm = n == len(buf)
	if !conf.Confirm {
		e.log.Error().Err(err).Uint32("offset", req.Offset).Uint32("length", req.Length).Msg("nv read failed")
	}
	conf.Data = buf
	e.log.Debug().Uint32("offset", req.Offset).Uint32("length", req.Length).Msg("nv read")
	e.sendRFS(ipc.RFSNVReadItem, conf.Marshal(), msg.Seq)
}

func (e *Engine) onNVWrite(msg ipc.Message) {
	req, err := ipc.DecodeNVIO(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed nv write")
		return
	}
	if e.deps.NV == nil {
		e.log.Error().Msg("nv write without a store")
		return
	}

	conf := ipc.NVIOConfirm{Offset: req.Offset, Length: req.Length}
	data := req.Data
	switch {
	case int64(req.Length) > int64(e.cfg.MaxNVIOBytes):
		e.log.Error().Uint32("length", req.Length).Msg("nv write too large")
	case int(req.Length) > len(data):
		e.log.Error().Uint32("length", req.Length).Int("got", len(data)).Msg("nv write truncated")
	default:
		_, err := e.deps.NV.WriteAt(data[:req.Length], int64(req.Offset))
		if err != nil {
			e.log.Error().Err(err).Uint32("offset", req.Offset).Msg("nv write failed")
		}
		conf.Confirm = err == nil
	}
	e.log.Debug().Uint32("offset", req.Offset).Uint32("length", req.Length).Bool("confirm", conf.Confirm).Msg("nv write")
	e.sendRFS(ipc.RFSNVWriteItem, conf.Marshal(), msg.Seq)
}
