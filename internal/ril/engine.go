package ril

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/ipcril/internal/logging"
	"github.com/danmuck/ipcril/internal/observability"
	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/rs/zerolog"
)

var (
	ErrMissingHost   = errors.New("ril: host is required")
	ErrMissingSender = errors.New("ril: fmt sender is required")
)

// Deps are the engine's collaborators. RFS, SRS and NV may be nil; messages
// for a missing collaborator are logged and dropped.
type Deps struct {
	Host Host
	FMT  Sender
	RFS  Sender
	SRS  Sender
	NV   NVStore
}

// heldTokens are requests parked until a later message (or a state change)
// lets them finish.
type heldTokens struct {
	radioPower Token
	baseband   Token
	imei       Token
	imeisv     Token
	simIO      Token
	pinStatus  Token
	// simDataWaiting marks an unsolicited SIM status nobody has fetched yet.
	simDataWaiting bool
}

type pendingSMS struct {
	pdu  []byte
	typ  uint8
	tpid uint8
}

// Engine is the session layer between one host and one modem. Every exported
// method takes the engine lock, so host calls and the channel readers are
// serialized; nothing blocks while the lock is held.
type Engine struct {
	mu sync.Mutex

	cfg  Config
	deps Deps
	log  zerolog.Logger

	registry *Registry
	expect   *ExpectTable
	radio    *radioMachine
	sms      *SMSQueue
	simIO    *SIMIOQueue
	held     heldTokens

	simState     SimState
	simStatus    ipc.SIMStatus
	iccType      uint8
	pin1Attempts int

	powerNormal bool
	ussdState   uint8

	incomingAwaitingAck bool
	incomingTPID        uint8
	incoming            []pendingSMS
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Host == nil {
		return nil, ErrMissingHost
	}
	if deps.FMT == nil {
		return nil, ErrMissingSender
	}
	e := &Engine{
		cfg:          cfg,
		deps:         deps,
		log:          logging.Component("engine"),
		registry:     NewRegistry(),
		expect:       NewExpectTable(),
		radio:        newRadioMachine(),
		sms:          NewSMSQueue(cfg.SMSQueueSlots),
		simIO:        NewSIMIOQueue(),
		pin1Attempts: -1,
	}
	e.publishRadioState()
	return e, nil
}

// OnRequest runs one host call. Every request ends in exactly one Complete
// for t, unless t is canceled first.
func (e *Engine) OnRequest(t Token, req Request) {
	e.mu.Lock()
	defer e.mu.Unlock()

	kind := "unknown"
	if req != nil {
		kind = req.Kind()
	}
	observability.RecordHostRequest(kind)
	e.log.Debug().Uint64("token", uint64(t)).Str("kind", kind).Msg("host request")

	switch r := req.(type) {
	case RadioPower:
		e.requestRadioPower(t, r)
	case BasebandVersion:
		e.requestBasebandVersion(t)
	case GetIMEI:
		e.requestIMEI(t)
	case GetIMEISV:
		e.requestIMEISV(t)
	case GetIMSI:
		e.requestIMSI(t)
	case SignalStrengthQuery:
		e.requestSignalStrength(t)
	case GetSIMStatus:
		e.requestSIMStatus(t)
	case SIMIO:
		e.requestSIMIO(t, r)
	case EnterSIMPIN:
		e.requestEnterSIMPIN(t, r)
	case EnterSIMPUK:
		e.requestEnterSIMPUK(t, r)
	case ChangeSIMPIN:
		e.requestChangeSIMPIN(t, r)
	case QueryFacilityLock:
		e.requestQueryFacilityLock(t, r)
	case SetFacilityLock:
		e.requestSetFacilityLock(t, r)
	case SendSMS:
		e.requestSendSMS(t, r)
	case SMSAcknowledge:
		e.requestSMSAcknowledge(t, r)
	case SendUSSD:
		e.requestSendUSSD(t, r)
	case CancelUSSD:
		e.requestCancelUSSD(t)
	case ScreenState:
		e.complete(t, Success, nil)
	default:
		e.log.Error().Str("kind", kind).Msg("unhandled host request")
		e.complete(t, RequestNotSupported, nil)
	}
	e.publishQueueDepth()
}

// Cancel marks t so its completion is dropped. The modem exchange still runs
// to the end.
func (e *Engine) Cancel(t Token) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.registry.SetCanceled(t, true); err != nil {
		e.log.Debug().Err(err).Msg("cancel for unknown token")
	}
}

// RadioState is a snapshot read of the current radio state.
func (e *Engine) RadioState() RadioState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.radio.Current()
}

// Status is a point-in-time view of the engine for the admin surface.
type Status struct {
	Radio          string          `json:"radio"`
	SIM            string          `json:"sim"`
	PowerNormal    bool            `json:"power_normal"`
	SeqCounter     uint8           `json:"seq_counter"`
	Requests       []RequestRecord `json:"requests"`
	Expectations   int             `json:"expectations"`
	SMSQueued      int             `json:"sms_queued"`
	SMSLocked      bool            `json:"sms_locked"`
	SIMIOQueued    int             `json:"sim_io_queued"`
	IncomingQueued int             `json:"incoming_sms_queued"`
	PIN1Attempts   int             `json:"pin1_attempts"`
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Radio:          e.radio.Current().String(),
		SIM:            e.simState.String(),
		PowerNormal:    e.powerNormal,
		SeqCounter:     e.registry.Counter(),
		Requests:       e.registry.List(),
		Expectations:   e.expect.Len(),
		SMSQueued:      e.sms.Len(),
		SMSLocked:      e.sms.Locked(),
		SIMIOQueued:    e.simIO.Len(),
		IncomingQueued: len(e.incoming),
		PIN1Attempts:   e.pin1Attempts,
	}
}

// RadioGraph renders the radio transition table in Graphviz form.
func (e *Engine) RadioGraph() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.radio.Graph()
}

// complete delivers a result for t. A live record is removed first; if it was
// canceled nothing reaches the host. Without a record the result is delivered
// as-is.
func (e *Engine) complete(t Token, errno Errno, payload any) {
	if t == NoToken {
		e.log.Debug().Stringer("errno", errno).Msg("dropping completion without a token")
		return
	}
	canceled, _ := e.registry.Take(t)
	if canceled {
		observability.RecordSuppressedCompletion()
		e.log.Debug().Uint64("token", uint64(t)).Msg("completion suppressed for canceled request")
		return
	}
	observability.RecordCompletion(errno.String())
	e.deps.Host.Complete(t, errno, payload)
}

func (e *Engine) unsolicited(event Unsolicited, payload any) {
	observability.RecordUnsolicited(event.String())
	e.deps.Host.Unsolicited(event, payload)
}

func (e *Engine) send(link Sender, ch ipc.Channel, cmd ipc.Command, typ ipc.MessageType, payload []byte, seq uint8) {
	if link == nil {
		e.log.Error().Stringer("channel", ch).Str("command", ipc.CommandName(ch, cmd)).Msg("no sender for channel")
		return
	}
	observability.RecordIPCMessage(ch.String(), "out", ipc.CommandName(ch, cmd))
	link.Send(cmd, typ, payload, seq)
}

func (e *Engine) sendFMT(cmd ipc.Command, typ ipc.MessageType, payload []byte, seq uint8) {
	e.send(e.deps.FMT, ipc.ChannelFMT, cmd, typ, payload, seq)
}

// seqFor allocates (or reuses) the sequence id bound to t.
func (e *Engine) seqFor(t Token) uint8 {
	return e.registry.AllocateOrGet(t)
}

// tokenFor resolves an inbound sequence id to its token.
func (e *Engine) tokenFor(msg ipc.Message) Token {
	return e.registry.TokenFor(msg.Seq)
}

// guard rejects t when the radio is not past gate. It returns true when the
// caller must stop.
func (e *Engine) guard(gate RadioState, t Token) bool {
	errno, rejected := guardVerdict(gate, e.radio.Current())
	if !rejected {
		return false
	}
	if t != NoToken {
		e.complete(t, errno, nil)
	}
	return true
}

// updateRadio applies a transition, tells the host, then releases any held
// work the new state allows.
func (e *Engine) updateRadio(event string) {
	state, err := e.radio.Fire(event)
	if err != nil {
		e.log.Error().Err(err).Str("event", event).Msg("radio transition failed")
	}
	e.log.Info().Str("event", event).Stringer("state", state).Msg("radio state")
	e.publishRadioState()
	e.unsolicited(UnsolRadioStateChanged, nil)
	e.sweepTokens()
}

func (e *Engine) sweepTokens() {
	state := e.radio.Current()
	if e.held.baseband != NoToken && state != RadioOff {
		t := e.held.baseband
		e.held.baseband = NoToken
		e.requestBasebandVersion(t)
	}
	if e.held.imei != NoToken && e.held.imeisv != NoToken && state != RadioOff {
		t := e.held.imei
		e.held.imei = NoToken
		e.requestIMEI(t)
	}
}

func (e *Engine) publishRadioState() {
	states := make([]string, 0, len(radioStateNames))
	for _, name := range radioStateNames {
		states = append(states, name)
	}
	observability.SetRadioState(e.radio.Current().String(), states)
}

func (e *Engine) publishQueueDepth() {
	observability.SetQueueDepth("sms", e.sms.Len())
	observability.SetQueueDepth("sim_io", e.simIO.Len())
	observability.SetQueueDepth("incoming_sms", len(e.incoming))
}

func (e *Engine) String() string {
	return fmt.Sprintf("engine(radio=%s sim=%s)", e.radio.Current(), e.simState)
}
