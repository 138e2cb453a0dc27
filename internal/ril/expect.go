package ril

import (
	"github.com/danmuck/ipcril/internal/logging"
	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/rs/zerolog"
)

// ExpectAction selects what happens when the generic acknowledgment for a
// sequence id arrives.
type ExpectAction int

const (
	// ActionCallback runs a handler with the acknowledgment.
	ActionCallback ExpectAction = iota
	// ActionAutoComplete completes the request from the acknowledgment status.
	ActionAutoComplete
	// ActionAutoAbort swallows the acknowledgment whatever its status; a
	// richer message completes the request later.
	ActionAutoAbort
)

func (a ExpectAction) String() string {
	switch a {
	case ActionCallback:
		return "callback"
	case ActionAutoComplete:
		return "auto_complete"
	case ActionAutoAbort:
		return "auto_abort"
	default:
		return "unknown"
	}
}

// AckHandler runs under the engine lock.
type AckHandler func(msg ipc.Message, res ipc.GenericResponse)

type Expectation struct {
	Seq     uint8
	Command ipc.Command
	Action  ExpectAction
	Handler AckHandler
}

// ExpectTable holds one-shot expectations keyed by sequence id.
type ExpectTable struct {
	entries map[uint8]Expectation
	log     zerolog.Logger
}

func NewExpectTable() *ExpectTable {
	return &ExpectTable{
		entries: make(map[uint8]Expectation),
		log:     logging.Component("expect"),
	}
}

func (x *ExpectTable) register(e Expectation) {
	if prev, ok := x.entries[e.Seq]; ok {
		x.log.Warn().
			Uint8("seq", e.Seq).
			Stringer("previous", prev.Command).
			Stringer("command", e.Command).
			Msg("replacing unconsumed expectation")
	}
	x.entries[e.Seq] = e
}

func (x *ExpectTable) Callback(seq uint8, cmd ipc.Command, fn AckHandler) {
	x.register(Expectation{Seq: seq, Command: cmd, Action: ActionCallback, Handler: fn})
}

func (x *ExpectTable) AutoComplete(seq uint8, cmd ipc.Command) {
	x.register(Expectation{Seq: seq, Command: cmd, Action: ActionAutoComplete})
}

func (x *ExpectTable) AutoAbort(seq uint8, cmd ipc.Command) {
	x.register(Expectation{Seq: seq, Command: cmd, Action: ActionAutoAbort})
}

// Take consumes the expectation for seq.
func (x *ExpectTable) Take(seq uint8) (Expectation, bool) {
	e, ok := x.entries[seq]
	if ok {
		delete(x.entries, seq)
	}
	return e, ok
}

func (x *ExpectTable) Get(seq uint8) (Expectation, bool) {
	e, ok := x.entries[seq]
	return e, ok
}

func (x *ExpectTable) Len() int { return len(x.entries) }
