package ril

import (
	"github.com/danmuck/ipcril/internal/protocol/ipc"
)

// SIM file access runs one command at a time. e.held.simIO is the token on
// the wire; everything else waits in e.simIO in arrival order.

func (e *Engine) requestSIMIO(t Token, r SIMIO) {
	if e.guard(RadioSimNotReady, t) {
		return
	}
	entry := e.simIO.Register(SIMIOEntry{
		Token:   t,
		Command: r.Command,
		FileID:  r.FileID,
		P1:      r.P1,
		P2:      r.P2,
		P3:      r.P3,
		Data:    r.Data,
	})
	if e.held.simIO != NoToken {
		e.log.Debug().Int("queued", e.simIO.Len()).Msg("sim io busy, queued")
		return
	}
	e.startSIMIO(entry)
}

func (e *Engine) startSIMIO(entry *SIMIOEntry) {
	entry.Waiting = false
	e.held.simIO = entry.Token
	req := ipc.RSIMAccessRequest{
		Command: entry.Command,
		FileID:  entry.FileID,
		P1:      entry.P1,
		P2:      entry.P2,
		P3:      entry.P3,
		Data:    entry.Data,
	}
	e.sendFMT(ipc.SECRSIMAccess, ipc.TypeGet, req.Marshal(), e.seqFor(entry.Token))
	entry.Data = nil
}

// nextSIMIO launches the oldest queued entry, if any.
func (e *Engine) nextSIMIO() {
	e.held.simIO = NoToken
	entry, ok := e.simIO.Head()
	if !ok {
		return
	}
	e.startSIMIO(entry)
}

func (e *Engine) onRSIMAccess(msg ipc.Message) {
	t := e.tokenFor(msg)
	entry, ok := e.simIO.FindByToken(t)
	if !ok {
		e.log.Error().Uint8("seq", msg.Seq).Msg("sim io response without a queued request")
		e.nextSIMIO()
		return
	}

	res, err := ipc.DecodeRSIMAccessResponse(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed rsim access response")
		e.complete(t, GenericFailure, nil)
		e.simIO.Remove(entry)
		e.nextSIMIO()
		return
	}

	resp := SIMIOResponse{
		SW1:      res.SW1,
		SW2:      res.SW2,
		Response: simIOResponseText(entry.Command, entry.FileID, res.Data, e.iccType),
	}
	e.log.Debug().
		Uint16("file_id", entry.FileID).
		Uint8("sw1", resp.SW1).
		Uint8("sw2", resp.SW2).
		Str("response", resp.Response).
		Msg("sim io complete")
	e.complete(t, Success, resp)
	e.simIO.Remove(entry)
	e.nextSIMIO()
}
