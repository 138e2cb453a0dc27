package ril

import (
	"github.com/danmuck/ipcril/internal/protocol/ipc"
)

// CardStatus answers GetSIMStatus. The single SIM application is described
// by App; AppIndex follows the SIM state.
type CardStatus struct {
	CardState    string    `json:"card_state"`
	UniversalPIN string    `json:"universal_pin_state"`
	AppIndex     int       `json:"app_index"`
	App          AppStatus `json:"app"`
}

type AppStatus struct {
	Type          string `json:"type"`
	State         string `json:"state"`
	PersoSubstate string `json:"perso_substate"`
	PIN1          string `json:"pin1"`
}

var appStatusBySIM = map[SimState]AppStatus{
	SimAbsent:               {Type: "unknown", State: "unknown", PersoSubstate: "unknown", PIN1: "unknown"},
	SimNotReady:             {Type: "sim", State: "detected", PersoSubstate: "unknown", PIN1: "unknown"},
	SimReady:                {Type: "sim", State: "ready", PersoSubstate: "ready", PIN1: "unknown"},
	SimPin:                  {Type: "sim", State: "pin", PersoSubstate: "unknown", PIN1: "enabled_not_verified"},
	SimPuk:                  {Type: "sim", State: "puk", PersoSubstate: "unknown", PIN1: "enabled_blocked"},
	SimBlocked:              {Type: "sim", State: "puk", PersoSubstate: "unknown", PIN1: "enabled_perm_blocked"},
	SimNetworkPerso:         {Type: "sim", State: "subscription_perso", PersoSubstate: "sim_network", PIN1: "enabled_not_verified"},
	SimNetworkSubsetPerso:   {Type: "sim", State: "subscription_perso", PersoSubstate: "sim_network_subset", PIN1: "enabled_not_verified"},
	SimCorporatePerso:       {Type: "sim", State: "subscription_perso", PersoSubstate: "sim_corporate", PIN1: "enabled_not_verified"},
	SimServiceProviderPerso: {Type: "sim", State: "subscription_perso", PersoSubstate: "sim_service_provider", PIN1: "enabled_not_verified"},
}

// simStateFor maps the modem's status record onto a SIM state. Unknown codes
// map to SimAbsent with known=false.
func simStateFor(s ipc.SIMStatus) (state SimState, known bool) {
	switch s.Status {
	case ipc.SIMStatusLockSC:
		switch s.FacilityLock {
		case ipc.FacilityLockSCUnlocked:
			return SimReady, true
		case ipc.FacilityLockSCPIN1Req:
			return SimPin, true
		case ipc.FacilityLockSCPUKReq:
			return SimPuk, true
		case ipc.FacilityLockSCCardBlocked:
			return SimBlocked, true
		default:
			return SimAbsent, false
		}
	case ipc.SIMStatusLockFD:
		return SimAbsent, true
	case ipc.SIMStatusLockPN:
		return SimNetworkPerso, true
	case ipc.SIMStatusLockPU:
		return SimNetworkSubsetPerso, true
	case ipc.SIMStatusLockPP:
		return SimServiceProviderPerso, true
	case ipc.SIMStatusLockPC:
		return SimCorporatePerso, true
	case ipc.SIMStatusReady, ipc.SIMStatusInitComplete, ipc.SIMStatusPBInitComplete:
		return SimReady, true
	case ipc.SIMStatusSIMLockRequired, ipc.SIMStatusInsidePFError,
		ipc.SIMStatusCardNotPresent, ipc.SIMStatusCardError:
		return SimAbsent, true
	default:
		return SimAbsent, false
	}
}

func cardStatusFor(s SimState) CardStatus {
	cs := CardStatus{
		CardState:    "present",
		UniversalPIN: "unknown",
		AppIndex:     int(s),
		App:          appStatusBySIM[s],
	}
	if s == SimAbsent {
		cs.CardState = "absent"
	}
	return cs
}

// applySIMStatus records a status record and moves the radio state with it.
func (e *Engine) applySIMStatus(status ipc.SIMStatus) {
	state, known := simStateFor(status)
	if !known {
		e.log.Error().
			Uint8("status", status.Status).
			Uint8("facility_lock", status.FacilityLock).
			Msg("unknown sim status")
	}
	e.simStatus = status
	e.simState = state
	e.updateRadio(radioEventFor(state))
}

func (e *Engine) onSIMStatus(msg ipc.Message) {
	status, err := ipc.DecodeSIMStatus(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed sim status")
		e.complete(e.tokenFor(msg), GenericFailure, nil)
		return
	}

	switch msg.Type {
	case ipc.TypeNotification:
		if e.guard(RadioOff, NoToken) {
			return
		}
		if e.held.pinStatus != NoToken {
			e.log.Error().Msg("sim status request in progress, skipping notification")
			return
		}
		e.applySIMStatus(status)
		e.held.simDataWaiting = true
		e.unsolicited(UnsolSIMStatusChanged, nil)
	case ipc.TypeResponse:
		t := e.tokenFor(msg)
		if e.held.pinStatus != t {
			e.log.Warn().
				Uint64("held", uint64(e.held.pinStatus)).
				Uint64("token", uint64(t)).
				Msg("sim status token mismatch")
		}
		e.applySIMStatus(status)
		e.complete(t, Success, cardStatusFor(e.simState))
		e.held.pinStatus = NoToken
	default:
		e.log.Error().Stringer("type", msg.Type).Msg("unhandled sim status message type")
	}
}

func (e *Engine) requestSIMStatus(t Token) {
	if e.guard(RadioOff, t) {
		return
	}
	switch {
	case e.held.simDataWaiting:
		e.held.simDataWaiting = false
		e.complete(t, Success, e.cachedCardStatus())
	case e.held.pinStatus == NoToken:
		e.held.pinStatus = t
		e.sendFMT(ipc.SECSIMStatus, ipc.TypeGet, nil, e.seqFor(t))
	default:
		e.log.Error().Msg("sim status request in progress, answering from cache")
		e.complete(t, Success, e.cachedCardStatus())
	}
}

func (e *Engine) cachedCardStatus() CardStatus {
	return cardStatusFor(e.simState)
}

func (e *Engine) onSIMICCType(msg ipc.Message) {
	typ, err := ipc.DecodeSIMICCType(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed icc type")
		e.complete(e.tokenFor(msg), GenericFailure, nil)
		return
	}
	e.iccType = typ
	e.log.Debug().Uint8("icc_type", typ).Msg("sim icc type")
}

func (e *Engine) onLockInfo(msg ipc.Message) {
	info, err := ipc.DecodeLockInfo(msg.Payload)
	if err != nil {
		return
	}
	if info.Type != ipc.PINTypePIN1 {
		e.log.Error().Uint8("type", info.Type).Msg("unhandled lock type")
		return
	}
	e.pin1Attempts = int(info.Attempts)
	e.log.Debug().Int("attempts", e.pin1Attempts).Msg("pin1 attempts left")
}

// simStatusComplete finishes PIN, PUK and lock password changes. The payload
// is the remaining attempt count, or -1 when unknown.
func (e *Engine) simStatusComplete(msg ipc.Message, res ipc.GenericResponse) {
	t := e.tokenFor(msg)
	if res.OK() {
		e.complete(t, Success, -1)
		return
	}
	switch res.ErrorCode() {
	case 0x10:
		e.log.Error().Msg("wrong password")
		e.complete(t, PasswordIncorrect, -1)
	case 0x0c:
		e.log.Error().Msg("wrong password and no attempts left")
		e.complete(t, PasswordIncorrect, 0)
		e.unsolicited(UnsolSIMStatusChanged, nil)
	default:
		e.log.Error().Uint16("code", res.Code).Msg("sim status change failed")
		e.complete(t, GenericFailure, nil)
	}
}

func (e *Engine) requestEnterSIMPIN(t Token, r EnterSIMPIN) {
	if e.guard(RadioOff, t) {
		return
	}
	payload, err := ipc.PinStatusSet{Type: ipc.PINTypePIN1, PIN1: r.PIN}.Marshal()
	if err != nil {
		e.log.Error().Err(err).Msg("pin rejected")
		e.complete(t, GenericFailure, nil)
		return
	}
	seq := e.seqFor(t)
	e.expect.Callback(seq, ipc.SECSIMStatus, e.simStatusComplete)
	e.sendFMT(ipc.SECSIMStatus, ipc.TypeSet, payload, seq)
	e.sendFMT(ipc.SECLockInfo, ipc.TypeGet, ipc.LockInfoRequest(ipc.PINTypePIN1), seq)
}

func (e *Engine) requestEnterSIMPUK(t Token, r EnterSIMPUK) {
	if e.guard(RadioOff, t) {
		return
	}
	payload, err := ipc.PinStatusSet{Type: ipc.PINTypePIN1, PIN1: r.PIN, PIN2: r.PUK}.Marshal()
	if err != nil {
		e.log.Error().Err(err).Msg("puk rejected")
		e.complete(t, GenericFailure, nil)
		return
	}
	seq := e.seqFor(t)
	e.expect.Callback(seq, ipc.SECSIMStatus, e.simStatusComplete)
	e.sendFMT(ipc.SECSIMStatus, ipc.TypeSet, payload, seq)
}

func (e *Engine) requestChangeSIMPIN(t Token, r ChangeSIMPIN) {
	if e.guard(RadioSimNotReady, t) {
		return
	}
	payload := ipc.ChangeLockingPW{Facility: ipc.SIMStatusLockSC, Old: r.Old, New: r.New}.Marshal()
	seq := e.seqFor(t)
	e.expect.Callback(seq, ipc.SECChangeLockingPW, e.simStatusComplete)
	e.sendFMT(ipc.SECChangeLockingPW, ipc.TypeSet, payload, seq)
}

func (e *Engine) requestQueryFacilityLock(t Token, r QueryFacilityLock) {
	if e.guard(RadioSimNotReady, t) {
		return
	}
	code, ok := ipc.FacilityCode(r.Facility)
	if !ok {
		e.log.Error().Str("facility", r.Facility).Msg("unsupported facility")
		e.complete(t, GenericFailure, nil)
		return
	}
	e.sendFMT(ipc.SECPhoneLock, ipc.TypeGet, []byte{code}, e.seqFor(t))
}

func (e *Engine) onPhoneLock(msg ipc.Message) {
	lock, err := ipc.DecodePhoneLockResponse(msg.Payload)
	if err != nil {
		e.log.Error().Err(err).Msg("malformed phone lock")
		e.complete(e.tokenFor(msg), GenericFailure, nil)
		return
	}
	e.complete(e.tokenFor(msg), Success, int(lock.Status))
}

func (e *Engine) requestSetFacilityLock(t Token, r SetFacilityLock) {
	if e.guard(RadioSimNotReady, t) {
		return
	}
	code, ok := ipc.FacilityCode(r.Facility)
	if !ok {
		e.log.Error().Str("facility", r.Facility).Msg("unsupported facility")
		e.complete(t, GenericFailure, nil)
		return
	}
	payload := ipc.PhoneLockSet{Type: code, Lock: r.Lock, Password: r.Password}.Marshal()
	seq := e.seqFor(t)
	e.expect.Callback(seq, ipc.SECPhoneLock, e.simStatusComplete)
	e.sendFMT(ipc.SECPhoneLock, ipc.TypeSet, payload, seq)
}
