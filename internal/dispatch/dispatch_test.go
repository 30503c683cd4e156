package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/ocpp-central/station/internal/allowlist"
	"github.com/ocpp-central/station/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(serials string) *Dispatcher {
	return New(allowlist.NewMemoryStore(serials), events.NopPublisher{}, zerolog.Nop())
}

func TestHeartbeatAlwaysReplies(t *testing.T) {
	d := newDispatcher("")
	out := d.HandleCall("CP-1", "hb-1", "Heartbeat", json.RawMessage(`{}`))
	require.Len(t, out.Frames, 1)
	assert.False(t, out.Close)

	var frame []interface{}
	require.NoError(t, json.Unmarshal(out.Frames[0], &frame))
	assert.Equal(t, float64(3), frame[0])
	assert.Equal(t, "hb-1", frame[1])
	payload := frame[2].(map[string]interface{})
	assert.NotEmpty(t, payload["currentTime"])
}

func TestHeartbeatRepliesEvenOnMalformedBody(t *testing.T) {
	d := newDispatcher("")
	out := d.HandleCall("CP-1", "hb-2", "Heartbeat", json.RawMessage(`"not an object"`))
	require.Len(t, out.Frames, 1)
}

func TestBootNotificationAcceptedWhenAllowListEmpty(t *testing.T) {
	d := newDispatcher("")
	raw := json.RawMessage(`{"chargePointModel":"ModelX","chargePointVendor":"AcmeCorp","chargePointSerialNumber":"SN-12345"}`)
	out := d.HandleCall("CP-1", "boot-1", "BootNotification", raw)
	require.Len(t, out.Frames, 1)
	assert.False(t, out.Close)

	var frame []interface{}
	require.NoError(t, json.Unmarshal(out.Frames[0], &frame))
	payload := frame[2].(map[string]interface{})
	assert.Equal(t, "Accepted", payload["status"])
	assert.Equal(t, float64(300), payload["interval"])
}

func TestBootNotificationRejectedClosesSession(t *testing.T) {
	d := newDispatcher("SN-allow")
	raw := json.RawMessage(`{"chargePointModel":"ModelX","chargePointVendor":"AcmeCorp","chargePointSerialNumber":"SN-deny"}`)
	out := d.HandleCall("CP-1", "boot-2", "BootNotification", raw)
	assert.True(t, out.Close)
	assert.Empty(t, out.Frames)
}

func TestBootNotificationAcceptedWhenSerialAllowed(t *testing.T) {
	d := newDispatcher("SN-allow")
	raw := json.RawMessage(`{"chargePointModel":"ModelX","chargePointVendor":"AcmeCorp","chargePointSerialNumber":"SN-allow"}`)
	out := d.HandleCall("CP-1", "boot-3", "BootNotification", raw)
	assert.False(t, out.Close)
	require.Len(t, out.Frames, 1)
}

func TestDataTransferReply(t *testing.T) {
	d := newDispatcher("")
	raw := json.RawMessage(`{"vendorId":"AcmeCorp"}`)
	out := d.HandleCall("CP-1", "dt-1", "DataTransfer", raw)
	require.Len(t, out.Frames, 1)
	var frame []interface{}
	require.NoError(t, json.Unmarshal(out.Frames[0], &frame))
	payload := frame[2].(map[string]interface{})
	assert.Equal(t, "Accepted", payload["status"])
	assert.Equal(t, "Data Transfer Accepted", payload["data"])
}

func TestStopTransactionReply(t *testing.T) {
	d := newDispatcher("")
	raw := json.RawMessage(`{"meterStop":100,"timestamp":"2024-01-01T00:00:00Z","transactionId":1}`)
	out := d.HandleCall("CP-1", "st-1", "StopTransaction", raw)
	require.Len(t, out.Frames, 1)
	var frame []interface{}
	require.NoError(t, json.Unmarshal(out.Frames[0], &frame))
	payload := frame[2].(map[string]interface{})
	idTagInfo := payload["idTagInfo"].(map[string]interface{})
	assert.Equal(t, "Accepted", idTagInfo["status"])
}

func TestStatusNotificationNoReply(t *testing.T) {
	d := newDispatcher("")
	raw := json.RawMessage(`{"connectorId":1,"errorCode":"NoError","status":"Available"}`)
	out := d.HandleCall("CP-1", "sn-1", "StatusNotification", raw)
	assert.Empty(t, out.Frames)
	assert.False(t, out.Close)
}

func TestUnimplementedActionIsNotSupported(t *testing.T) {
	d := newDispatcher("")
	out := d.HandleCall("CP-1", "rs-1", "Reset", json.RawMessage(`{"type":"Hard"}`))
	require.Len(t, out.Frames, 1)
	var frame []interface{}
	require.NoError(t, json.Unmarshal(out.Frames[0], &frame))
	assert.Equal(t, float64(4), frame[0])
	assert.Equal(t, "NotSupported", frame[2])
	assert.Equal(t, "Action Reset not implemented", frame[3])
}

func TestUnknownActionIsNotSupported(t *testing.T) {
	d := newDispatcher("")
	out := d.HandleCall("CP-1", "x", "NotARealAction", json.RawMessage(`{}`))
	require.Len(t, out.Frames, 1)
	var frame []interface{}
	require.NoError(t, json.Unmarshal(out.Frames[0], &frame))
	assert.Equal(t, float64(4), frame[0])
	assert.Equal(t, "x", frame[1])
	assert.Equal(t, "NotSupported", frame[2])
	assert.Equal(t, "Unknown action: NotARealAction", frame[3])
	details := frame[4].(map[string]interface{})
	assert.Equal(t, "NotARealAction", details["action"])
}
