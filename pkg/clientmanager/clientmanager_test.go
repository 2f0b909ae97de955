package clientmanager

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppgw/ocpp-gateway/pkg/config"
	"github.com/ocppgw/ocpp-gateway/pkg/evse"
	"github.com/ocppgw/ocpp-gateway/pkg/ocpp"
	"github.com/ocppgw/ocpp-gateway/pkg/ocpp/processor"
	"github.com/ocppgw/ocpp-gateway/pkg/transport"
)

// fakeTransport records sent frames and lets tests drive callbacks and
// connection state directly, without a real socket.
type fakeTransport struct {
	cb    transport.Callbacks
	sent  []string
	state transport.State
}

func (f *fakeTransport) Connect() error {
	f.state = transport.Connected
	f.cb.OnOpen(true)
	return nil
}

func (f *fakeTransport) Send(text string) bool {
	f.sent = append(f.sent, text)
	return true
}

func (f *fakeTransport) Close(reason string) {
	f.state = transport.Closed
	f.cb.OnClose(reason)
}

func (f *fakeTransport) State() transport.State { return f.state }

func newTestClientManager(t *testing.T) (*ClientManager, *fakeTransport) {
	t.Helper()
	var ft *fakeTransport
	factory := func(cfg transport.Config, cb transport.Callbacks) transport.Transport {
		ft = &fakeTransport{cb: cb}
		return ft
	}
	cfg := config.OcppClientConfig{
		CsmsURL:           "wss://csms.example.test/ocpp",
		ChargePointModel:  "TestModel",
		ChargePointVendor: "TestVendor",
		HeartbeatInterval: 30 * time.Second,
	}
	cm := New(cfg, processor.Config{MaxMessages: 100, MaxBytes: 1 << 20}, factory)
	return cm, ft
}

func TestClientManager_Start_SendsBootNotificationOnConnect(t *testing.T) {
	cm, ft := newTestClientManager(t)
	require.NoError(t, cm.Start())

	require.Len(t, ft.sent, 1)
	assert.Contains(t, ft.sent[0], "BootNotification")
	assert.True(t, cm.IsConnected())
}

func TestClientManager_BootNotificationAccepted_StartsHeartbeat(t *testing.T) {
	cm, ft := newTestClientManager(t)
	require.NoError(t, cm.Start())

	call := decodeCall(t, ft.sent[0])
	ft.cb.OnTextMessage(`[3,"` + call.ID + `",{"currentTime":"2026-07-31T00:00:00Z","interval":1,"status":"Accepted"}]`)

	require.NotNil(t, cm.heartbeat)
	assert.True(t, cm.heartbeat.running)
}

func TestClientManager_AddEvse_DuplicateRejected(t *testing.T) {
	cm, _ := newTestClientManager(t)
	require.NoError(t, cm.AddEvse(1, 1))
	assert.Error(t, cm.AddEvse(1, 1))
}

func TestClientManager_AddEvse_StatusChangeSendsStatusNotification(t *testing.T) {
	cm, ft := newTestClientManager(t)
	require.NoError(t, cm.Start())
	require.NoError(t, cm.AddEvse(1, 1))
	ft.sent = nil

	ok := cm.ProcessEvseEvent(1, evse.PlugIn, "")
	require.True(t, ok)
	require.Len(t, ft.sent, 1)
	assert.Contains(t, ft.sent[0], "StatusNotification")
}

func TestClientManager_RemoveEvse_UnknownConnectorErrors(t *testing.T) {
	cm, _ := newTestClientManager(t)
	assert.Error(t, cm.RemoveEvse(9))
}

func TestClientManager_HandleRemoteStartTransaction_UnknownConnectorRejected(t *testing.T) {
	cm, _ := newTestClientManager(t)
	call := &ocpp.Call{ID: "1", Action: ocpp.ActionRemoteStartTransaction, Payload: []byte(`{"idToken":{"idToken":"abc","type":"ISO14443"},"evseId":1}`)}

	result, errCode, _ := cm.handleRemoteStartTransaction(nil, call)
	assert.Empty(t, errCode)
	resp, ok := result.(ocpp.RemoteStartTransactionResponse)
	require.True(t, ok)
	assert.Equal(t, "Rejected", resp.Status)
}

func TestClientManager_HandleRemoteStartTransaction_KnownConnectorAccepted(t *testing.T) {
	cm, _ := newTestClientManager(t)
	require.NoError(t, cm.AddEvse(1, 1))
	require.True(t, cm.ProcessEvseEvent(1, evse.PlugIn, ""))
	call := &ocpp.Call{ID: "1", Action: ocpp.ActionRemoteStartTransaction, Payload: []byte(`{"idToken":{"idToken":"abc","type":"ISO14443"},"evseId":1}`)}

	result, errCode, _ := cm.handleRemoteStartTransaction(nil, call)
	assert.Empty(t, errCode)
	resp, ok := result.(ocpp.RemoteStartTransactionResponse)
	require.True(t, ok)
	assert.Equal(t, "Accepted", resp.Status)
}

func TestClientManager_HandleUnlockConnector_AlwaysSucceeds(t *testing.T) {
	cm, _ := newTestClientManager(t)
	call := &ocpp.Call{ID: "1", Action: ocpp.ActionUnlockConnector, Payload: []byte(`{"evseId":1,"connectorId":1}`)}

	result, errCode, _ := cm.handleUnlockConnector(nil, call)
	assert.Empty(t, errCode)
	resp, ok := result.(ocpp.UnlockConnectorResponse)
	require.True(t, ok)
	assert.Equal(t, "Unlocked", resp.Status)
}

func TestClientManager_HandleTriggerMessage_UnsupportedReturnsNotImplemented(t *testing.T) {
	cm, _ := newTestClientManager(t)
	call := &ocpp.Call{ID: "1", Action: ocpp.ActionTriggerMessage, Payload: []byte(`{"requestedMessage":"SignCertificate"}`)}

	result, errCode, _ := cm.handleTriggerMessage(nil, call)
	assert.Empty(t, errCode)
	resp, ok := result.(ocpp.TriggerMessageResponse)
	require.True(t, ok)
	assert.Equal(t, "NotImplemented", resp.Status)
}

func TestClientManager_HandleSetChargingProfile_UnknownEvseRejected(t *testing.T) {
	cm, _ := newTestClientManager(t)
	call := &ocpp.Call{ID: "1", Action: ocpp.ActionSetChargingProfile, Payload: []byte(`{"evseId":1,"chargingProfile":{"id":1}}`)}

	result, errCode, _ := cm.handleSetChargingProfile(nil, call)
	assert.Empty(t, errCode)
	resp, ok := result.(ocpp.SetChargingProfileResponse)
	require.True(t, ok)
	assert.Equal(t, "Rejected", resp.Status)
}

func TestClientManager_HandleSetChargingProfile_KnownEvseAccepted(t *testing.T) {
	cm, _ := newTestClientManager(t)
	require.NoError(t, cm.AddEvse(1, 1))
	call := &ocpp.Call{ID: "1", Action: ocpp.ActionSetChargingProfile, Payload: []byte(`{"evseId":1,"chargingProfile":{"id":1}}`)}

	result, errCode, _ := cm.handleSetChargingProfile(nil, call)
	assert.Empty(t, errCode)
	resp, ok := result.(ocpp.SetChargingProfileResponse)
	require.True(t, ok)
	assert.Equal(t, "Accepted", resp.Status)
}

func TestClientManager_HandleDataTransfer_AcceptsVendorPayload(t *testing.T) {
	cm, _ := newTestClientManager(t)
	call := &ocpp.Call{ID: "1", Action: ocpp.ActionDataTransfer, Payload: []byte(`{"vendorId":"com.example","messageId":"ping"}`)}

	result, errCode, _ := cm.handleDataTransfer(nil, call)
	assert.Empty(t, errCode)
	resp, ok := result.(ocpp.DataTransferResponse)
	require.True(t, ok)
	assert.Equal(t, "Accepted", resp.Status)
}

// decodeCall extracts the Call ID from a [2,"id","Action",{...}] frame.
func decodeCall(t *testing.T, raw string) *ocpp.Call {
	t.Helper()
	var frame []any
	require.NoError(t, json.Unmarshal([]byte(raw), &frame))
	require.GreaterOrEqual(t, len(frame), 2)
	id, ok := frame[1].(string)
	require.True(t, ok)
	return &ocpp.Call{ID: id}
}
