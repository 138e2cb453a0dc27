package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/danmuck/ipcril/internal/ril"
)

var (
	ErrUnknownKind = errors.New("admin: unknown request kind")
	ErrBadRequest  = errors.New("admin: malformed request body")
)

type decodeFunc func(body json.RawMessage) (ril.Request, error)

func decodeAs[T ril.Request](body json.RawMessage) (ril.Request, error) {
	var req T
	if len(body) > 0 && string(body) != "null" {
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}
	return req, nil
}

var requestKinds = map[string]decodeFunc{
	"radio_power":          decodeAs[ril.RadioPower],
	"baseband_version":     decodeAs[ril.BasebandVersion],
	"get_imei":             decodeAs[ril.GetIMEI],
	"get_imeisv":           decodeAs[ril.GetIMEISV],
	"get_imsi":             decodeAs[ril.GetIMSI],
	"signal_strength":      decodeAs[ril.SignalStrengthQuery],
	"get_sim_status":       decodeAs[ril.GetSIMStatus],
	"sim_io":               decodeAs[ril.SIMIO],
	"enter_sim_pin":        decodeAs[ril.EnterSIMPIN],
	"enter_sim_puk":        decodeAs[ril.EnterSIMPUK],
	"change_sim_pin":       decodeAs[ril.ChangeSIMPIN],
	"query_facility_lock":  decodeAs[ril.QueryFacilityLock],
	"set_facility_lock":    decodeAs[ril.SetFacilityLock],
	"send_sms":             decodeAs[ril.SendSMS],
	"send_sms_expect_more": decodeSendSMSExpectMore,
	"sms_acknowledge":      decodeAs[ril.SMSAcknowledge],
	"send_ussd":            decodeAs[ril.SendUSSD],
	"cancel_ussd":          decodeAs[ril.CancelUSSD],
	"screen_state":         decodeAs[ril.ScreenState],
}

func decodeSendSMSExpectMore(body json.RawMessage) (ril.Request, error) {
	req, err := decodeAs[ril.SendSMS](body)
	if err != nil {
		return nil, err
	}
	sms := req.(ril.SendSMS)
	sms.ExpectMore = true
	return sms, nil
}

// DecodeRequest builds the typed request for kind from its JSON body.
func DecodeRequest(kind string, body json.RawMessage) (ril.Request, error) {
	decode, ok := requestKinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return decode(body)
}

func Kinds() []string {
	out := make([]string, 0, len(requestKinds))
	for kind := range requestKinds {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}
