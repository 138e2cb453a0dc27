package ril

// Request is one host call. Kind names it in logs, metrics and the admin API.
type Request interface {
	Kind() string
}

type RadioPower struct {
	On bool `json:"on"`
}

type BasebandVersion struct{}

type GetIMEI struct{}

type GetIMEISV struct{}

type GetIMSI struct{}

type SignalStrengthQuery struct{}

type GetSIMStatus struct{}

// SIMIO is a raw SIM file access. Data is the command body, if any.
type SIMIO struct {
	Command uint8  `json:"command"`
	FileID  uint16 `json:"file_id"`
	P1      uint8  `json:"p1"`
	P2      uint8  `json:"p2"`
	P3      uint8  `json:"p3"`
	Data    []byte `json:"data,omitempty"`
}

type EnterSIMPIN struct {
	PIN string `json:"pin"`
}

type EnterSIMPUK struct {
	PUK string `json:"puk"`
	PIN string `json:"pin"`
}

type ChangeSIMPIN struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type QueryFacilityLock struct {
	Facility string `json:"facility"`
}

type SetFacilityLock struct {
	Facility string `json:"facility"`
	Lock     bool   `json:"lock"`
	Password string `json:"password"`
}

// SendSMS submits one TPDU. SMSC starts with its own length byte; a nil
// SMSC makes the engine ask the modem for the default service center.
type SendSMS struct {
	SMSC       []byte `json:"smsc,omitempty"`
	PDU        []byte `json:"pdu"`
	ExpectMore bool   `json:"expect_more,omitempty"`
}

// SMSAcknowledge reports whether the last delivered SMS was stored.
type SMSAcknowledge struct {
	Success   bool `json:"success"`
	FailCause int  `json:"fail_cause,omitempty"`
}

type SendUSSD struct {
	Text string `json:"text"`
}

type CancelUSSD struct{}

type ScreenState struct {
	On bool `json:"on"`
}

func (RadioPower) Kind() string          { return "radio_power" }
func (BasebandVersion) Kind() string     { return "baseband_version" }
func (GetIMEI) Kind() string             { return "get_imei" }
func (GetIMEISV) Kind() string           { return "get_imeisv" }
func (GetIMSI) Kind() string             { return "get_imsi" }
func (SignalStrengthQuery) Kind() string { return "signal_strength" }
func (GetSIMStatus) Kind() string        { return "get_sim_status" }
func (SIMIO) Kind() string               { return "sim_io" }
func (EnterSIMPIN) Kind() string         { return "enter_sim_pin" }
func (EnterSIMPUK) Kind() string         { return "enter_sim_puk" }
func (ChangeSIMPIN) Kind() string        { return "change_sim_pin" }
func (QueryFacilityLock) Kind() string   { return "query_facility_lock" }
func (SetFacilityLock) Kind() string     { return "set_facility_lock" }
func (r SendSMS) Kind() string {
	if r.ExpectMore {
		return "send_sms_expect_more"
	}
	return "send_sms"
}
func (SMSAcknowledge) Kind() string { return "sms_acknowledge" }
func (SendUSSD) Kind() string       { return "send_ussd" }
func (CancelUSSD) Kind() string     { return "cancel_ussd" }
func (ScreenState) Kind() string    { return "screen_state" }
