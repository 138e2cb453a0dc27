package ril

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// RadioState is the coarse modem/SIM readiness the host sees.
type RadioState int

const (
	RadioUnavailable RadioState = iota
	RadioOff
	RadioSimNotReady
	RadioSimLockedOrAbsent
	RadioSimReady
)

var radioStateNames = map[RadioState]string{
	RadioUnavailable:       "unavailable",
	RadioOff:               "off",
	RadioSimNotReady:       "sim_not_ready",
	RadioSimLockedOrAbsent: "sim_locked_or_absent",
	RadioSimReady:          "sim_ready",
}

func (s RadioState) String() string {
	if name, ok := radioStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("radio(%d)", int(s))
}

func parseRadioState(name string) (RadioState, bool) {
	for s, n := range radioStateNames {
		if n == name {
			return s, true
		}
	}
	return RadioUnavailable, false
}

// guardSeverity orders states for the readiness gate. SimNotReady ranks above
// SimLockedOrAbsent: a request gated at SimLockedOrAbsent is still allowed
// while the SIM is merely not ready.
var guardSeverity = map[RadioState]int{
	RadioUnavailable:       0,
	RadioOff:               1,
	RadioSimLockedOrAbsent: 2,
	RadioSimNotReady:       3,
	RadioSimReady:          4,
}

// guardVerdict reports whether current fails a gate at the given state, and with what errno.
// A SimReady gate has no rank above it and only rejects an unavailable radio.
func guardVerdict(gate, current RadioState) (Errno, bool) {
	if gate == RadioSimReady {
		if current == RadioUnavailable {
			return RadioNotAvailable, true
		}
		return Success, false
	}
	if guardSeverity[current] > guardSeverity[gate] {
		return Success, false
	}
	switch current {
	case RadioUnavailable, RadioOff:
		return RadioNotAvailable, true
	default:
		return GenericFailure, true
	}
}

// Radio transition events, named by what the modem reported.
const (
	eventModemUp     = "modem_up"
	eventModemReset  = "modem_reset"
	eventPowerLPM    = "power_lpm"
	eventPowerNormal = "power_normal"
	eventSIMReady    = "sim_ready"
	eventSIMNotReady = "sim_not_ready"
	eventSIMLocked   = "sim_locked_or_absent"
)

// radioMachine records radio state transitions. Every event is accepted from
// every state; re-entering the current state still counts as an update.
type radioMachine struct {
	fsm *fsm.FSM
}

func newRadioMachine() *radioMachine {
	all := make([]string, 0, len(radioStateNames))
	for _, s := range []RadioState{RadioUnavailable, RadioOff, RadioSimNotReady, RadioSimLockedOrAbsent, RadioSimReady} {
		all = append(all, s.String())
	}
	events := fsm.Events{
		{Name: eventModemUp, Src: all, Dst: RadioOff.String()},
		{Name: eventModemReset, Src: all, Dst: RadioOff.String()},
		{Name: eventPowerLPM, Src: all, Dst: RadioOff.String()},
		{Name: eventPowerNormal, Src: all, Dst: RadioSimNotReady.String()},
		{Name: eventSIMReady, Src: all, Dst: RadioSimReady.String()},
		{Name: eventSIMNotReady, Src: all, Dst: RadioSimNotReady.String()},
		{Name: eventSIMLocked, Src: all, Dst: RadioSimLockedOrAbsent.String()},
	}
	return &radioMachine{
		fsm: fsm.NewFSM(RadioUnavailable.String(), events, fsm.Callbacks{}),
	}
}

func (m *radioMachine) Current() RadioState {
	s, _ := parseRadioState(m.fsm.Current())
	return s
}

func (m *radioMachine) Fire(event string) (RadioState, error) {
	err := m.fsm.Event(context.Background(), event)
	var same fsm.NoTransitionError
	if err != nil && !errors.As(err, &same) {
		return m.Current(), err
	}
	return m.Current(), nil
}

// Graph renders the transition table in Graphviz form.
func (m *radioMachine) Graph() string {
	return fsm.Visualize(m.fsm)
}

// SimState is the SIM readiness derived from the modem's status record.
type SimState int

const (
	SimAbsent SimState = iota
	SimNotReady
	SimReady
	SimPin
	SimPuk
	SimBlocked
	SimNetworkPerso
	SimNetworkSubsetPerso
	SimCorporatePerso
	SimServiceProviderPerso
)

var simStateNames = [...]string{
	"absent", "not_ready", "ready", "pin", "puk", "blocked",
	"network_perso", "network_subset_perso", "corporate_perso", "service_provider_perso",
}

func (s SimState) String() string {
	if s >= 0 && int(s) < len(simStateNames) {
		return simStateNames[s]
	}
	return fmt.Sprintf("sim(%d)", int(s))
}

// radioEventFor maps a SIM state onto the radio transition it causes.
func radioEventFor(s SimState) string {
	switch s {
	case SimReady:
		return eventSIMReady
	case SimNotReady:
		return eventSIMNotReady
	default:
		return eventSIMLocked
	}
}
