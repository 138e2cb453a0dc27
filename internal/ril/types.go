package ril

import (
	"fmt"

	"github.com/danmuck/ipcril/internal/protocol/ipc"
)

// Token is the host's opaque request handle. The engine only stores and
// compares it. NoToken marks an empty slot.
type Token uint64

const NoToken Token = 0

// Errno is the host-visible completion status.
type Errno int

const (
	Success             Errno = 0
	RadioNotAvailable   Errno = 1
	GenericFailure      Errno = 2
	PasswordIncorrect   Errno = 3
	RequestNotSupported Errno = 6
)

func (e Errno) String() string {
	switch e {
	case Success:
		return "success"
	case RadioNotAvailable:
		return "radio_not_available"
	case GenericFailure:
		return "generic_failure"
	case PasswordIncorrect:
		return "password_incorrect"
	case RequestNotSupported:
		return "request_not_supported"
	default:
		return fmt.Sprintf("errno(%d)", int(e))
	}
}

// Unsolicited identifies an event pushed to the host without a request.
type Unsolicited int

const (
	UnsolRadioStateChanged Unsolicited = iota + 1
	UnsolSIMStatusChanged
	UnsolNewSMS
	UnsolNewSMSStatusReport
	UnsolNITZTimeReceived
	UnsolSignalStrength
	UnsolOnUSSD
)

func (u Unsolicited) String() string {
	switch u {
	case UnsolRadioStateChanged:
		return "radio_state_changed"
	case UnsolSIMStatusChanged:
		return "sim_status_changed"
	case UnsolNewSMS:
		return "new_sms"
	case UnsolNewSMSStatusReport:
		return "new_sms_status_report"
	case UnsolNITZTimeReceived:
		return "nitz_time_received"
	case UnsolSignalStrength:
		return "signal_strength"
	case UnsolOnUSSD:
		return "on_ussd"
	default:
		return fmt.Sprintf("unsol(%d)", int(u))
	}
}

// Host receives completions and unsolicited events. Both calls are made with
// the engine lock held and must not call back into the engine.
type Host interface {
	Complete(t Token, errno Errno, payload any)
	Unsolicited(event Unsolicited, payload any)
}

// Sender hands one command to a modem channel. It must not block on the
// modem's reply.
type Sender interface {
	Send(cmd ipc.Command, typ ipc.MessageType, payload []byte, seq uint8)
}

// Completion payloads.

// SMSResponse answers SendSMS.
type SMSResponse struct {
	MessageRef int    `json:"message_ref"`
	AckPDU     []byte `json:"ack_pdu,omitempty"`
	ErrorCode  int    `json:"error_code"`
}

// SIMIOResponse answers SIMIO. Response is hex text or empty.
type SIMIOResponse struct {
	SW1      uint8  `json:"sw1"`
	SW2      uint8  `json:"sw2"`
	Response string `json:"response,omitempty"`
}

// SignalStrength carries the GSM ASU value mirrored into the CDMA and EVDO
// slots, which some hosts read regardless of technology.
type SignalStrength struct {
	GSMSignalStrength int `json:"gsm_signal_strength"`
	GSMBitErrorRate   int `json:"gsm_bit_error_rate"`
	CDMADbm           int `json:"cdma_dbm"`
	CDMAEcio          int `json:"cdma_ecio"`
	EVDODbm           int `json:"evdo_dbm"`
	EVDOEcio          int `json:"evdo_ecio"`
}

// USSDNotification is the OnUSSD payload. Type is "0".."5".
type USSDNotification struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// IncomingSMS is the NewSMS / NewSMSStatusReport payload.
type IncomingSMS struct {
	PDU []byte `json:"pdu"`
}
