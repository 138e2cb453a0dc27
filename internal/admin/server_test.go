package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/ipcril/internal/hostbridge"
	"github.com/danmuck/ipcril/internal/protocol/ipc"
	"github.com/danmuck/ipcril/internal/ril"
	"github.com/danmuck/ipcril/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardSender struct{}

func (discardSender) Send(ipc.Command, ipc.MessageType, []byte, uint8) {}

func newTestServer(t *testing.T) (*Server, *ril.Engine, *hostbridge.Bridge) {
	t.Helper()
	bridge := hostbridge.New(0)
	engine, err := ril.New(ril.DefaultConfig(), ril.Deps{Host: bridge, FMT: discardSender{}})
	require.NoError(t, err)
	return New("ipcril-test", ":0", engine, bridge, nil), engine, bridge
}

func do(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestHealthAndMetrics(t *testing.T) {
	testlog.Start(t)

	s, _, _ := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])

	rr = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ipcril_")
}

func TestReadyFollowsRadioState(t *testing.T) {
	testlog.Start(t)

	s, engine, _ := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "unavailable", decodeBody(t, rr)["radio"])

	engine.Dispatch(ipc.Message{Channel: ipc.ChannelFMT, Command: ipc.PWRPhonePwrUp, Type: ipc.TypeNotification, Seq: 0xff})

	rr = do(t, s, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["ready"])
	assert.Equal(t, "off", body["radio"])
}

func TestRadioStatusAndGraph(t *testing.T) {
	testlog.Start(t)

	s, _, _ := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/v1/radio", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var st ril.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "unavailable", st.Radio)

	rr = do(t, s, http.MethodGet, "/v1/radio/graph", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "sim_ready")
}

func TestSubmitAndFetchCompletion(t *testing.T) {
	testlog.Start(t)

	s, _, _ := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/v1/requests", []byte(`{"kind":"screen_state","request":{"on":true}}`))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "screen_state", body["kind"])
	assert.Equal(t, float64(1), body["token"])

	rr = do(t, s, http.MethodGet, "/v1/requests/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	item := decodeBody(t, rr)
	assert.Equal(t, "completed", item["state"])
	assert.Equal(t, "success", item["errno"])

	rr = do(t, s, http.MethodGet, "/v1/requests", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["requests"], 1)
}

func TestSubmitGuardedRequestCompletesRadioNotAvailable(t *testing.T) {
	testlog.Start(t)

	s, _, bridge := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/v1/requests", []byte(`{"kind":"get_imsi"}`))
	require.Equal(t, http.StatusAccepted, rr.Code)

	item, ok := bridge.Get(1)
	require.True(t, ok)
	assert.Equal(t, hostbridge.StateCompleted, item.State)
	assert.Equal(t, "radio_not_available", item.Errno)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	testlog.Start(t)

	s, _, _ := newTestServer(t)

	rr := do(t, s, http.MethodPost, "/v1/requests", []byte(`{"kind":"reboot"}`))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s, http.MethodPost, "/v1/requests", []byte(`{"request":{}}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPost, "/v1/requests", []byte(`{"kind":"radio_power","request":{"on":"yes"}}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodGet, "/v1/requests/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodGet, "/v1/requests/42", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelRemovesRequest(t *testing.T) {
	testlog.Start(t)

	s, _, bridge := newTestServer(t)
	tok := bridge.Mint("get_imei")

	rr := do(t, s, http.MethodDelete, "/v1/requests/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	_, ok := bridge.Get(tok)
	assert.False(t, ok)
}

func TestCanceledRequestStaysGoneAfterLateCompletion(t *testing.T) {
	testlog.Start(t)

	s, _, bridge := newTestServer(t)
	tok := bridge.Mint("get_imei")

	rr := do(t, s, http.MethodDelete, "/v1/requests/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	// The engine finishes requests it had no record for yet.
	bridge.Complete(tok, ril.Success, "356938035643809")

	rr = do(t, s, http.MethodGet, "/v1/requests/1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, s, http.MethodGet, "/v1/requests", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody(t, rr)["requests"])
}

func TestEventsSince(t *testing.T) {
	testlog.Start(t)

	s, engine, _ := newTestServer(t)
	engine.Dispatch(ipc.Message{Channel: ipc.ChannelFMT, Command: ipc.PWRPhonePwrUp, Type: ipc.TypeNotification, Seq: 0xff})

	rr := do(t, s, http.MethodGet, "/v1/events?since=0", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "radio_state_changed"), rr.Body.String())

	rr = do(t, s, http.MethodGet, "/v1/events?since=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDecodeRequestKinds(t *testing.T) {
	testlog.Start(t)

	req, err := DecodeRequest("send_sms_expect_more", json.RawMessage(`{"pdu":"AQID"}`))
	require.NoError(t, err)
	sms, ok := req.(ril.SendSMS)
	require.True(t, ok)
	assert.True(t, sms.ExpectMore)
	assert.Equal(t, []byte{1, 2, 3}, sms.PDU)

	req, err = DecodeRequest("cancel_ussd", nil)
	require.NoError(t, err)
	assert.Equal(t, ril.CancelUSSD{}, req)

	_, err = DecodeRequest("nope", nil)
	require.ErrorIs(t, err, ErrUnknownKind)

	assert.Contains(t, Kinds(), "sim_io")
	assert.Len(t, Kinds(), 19)
}
