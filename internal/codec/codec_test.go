package codec

import (
	"encoding/json"
	"testing"

	"github.com/ocpp-central/station/internal/ocpp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCallLiteral(t *testing.T) {
	payload := ocpp.BootNotificationRequest{
		ChargePointModel:  "ModelX",
		ChargePointVendor: "AcmeCorp",
	}
	out, err := EncodeCall("123", ocpp.ActionBootNotification, payload)
	require.NoError(t, err)
	assert.JSONEq(t, `[2,"123","BootNotification",{"chargePointModel":"ModelX","chargePointVendor":"AcmeCorp"}]`, string(out))
}

func TestDecodeCallRoundTrip(t *testing.T) {
	in := []byte(`[2,"123","BootNotification",{"chargePointModel":"ModelX","chargePointVendor":"AcmeCorp"}]`)
	env, decErr := DecodeEnvelope(in)
	require.Nil(t, decErr)
	require.NotNil(t, env.Call)
	assert.Equal(t, "123", env.Call.MessageID)
	assert.Equal(t, "BootNotification", env.Call.Action)

	action, ok := ocpp.ParseAction(env.Call.Action)
	require.True(t, ok)
	payload, decErr := DecodeRequestPayload(action, env.Call.Payload)
	require.Nil(t, decErr)
	req, ok := payload.(*ocpp.BootNotificationRequest)
	require.True(t, ok)
	assert.Equal(t, "ModelX", req.ChargePointModel)
	assert.Equal(t, "AcmeCorp", req.ChargePointVendor)
}

func TestEncodeCallResultLiteral(t *testing.T) {
	ts, err := parseRFC3339("2024-01-01T00:00:00Z")
	require.NoError(t, err)
	payload := ocpp.BootNotificationResponse{
		Status:      ocpp.RegistrationStatusAccepted,
		CurrentTime: ts,
		Interval:    300,
	}
	out, err := EncodeCallResult("abc", payload)
	require.NoError(t, err)
	assert.JSONEq(t, `[3,"abc",{"status":"Accepted","currentTime":"2024-01-01T00:00:00Z","interval":300}]`, string(out))
}

func TestDecodeEnvelopeWrongTypeIDForArity(t *testing.T) {
	// Four elements is Call-shaped regardless of the declared type-id; a
	// type-id of 3 here is a mismatch against that shape, not an undersized
	// CallResult. Matches spec §8 property #6.
	_, decErr := DecodeEnvelope([]byte(`[3,"x","Heartbeat",{}]`))
	require.NotNil(t, decErr)
	assert.Equal(t, ProtocolError, decErr.Kind)
	assert.Equal(t, "x", decErr.MessageID)
	assert.Equal(t, 2, decErr.Details["expected"])
	assert.Equal(t, 3, decErr.Details["received"])
	assert.Equal(t, "Invalid MessageTypeId for Call", decErr.Cause.Error())
}

func TestDecodeEnvelopeLengthMismatch(t *testing.T) {
	// An arity that matches none of Call/CallResult/CallError falls back to
	// a genuine length check against the shape the declared type-id names.
	_, decErr := DecodeEnvelope([]byte(`[2,"x"]`))
	require.NotNil(t, decErr)
	assert.Equal(t, ProtocolError, decErr.Kind)
	assert.Equal(t, 4, decErr.Details["expected"])
	assert.Equal(t, 2, decErr.Details["received"])
}

func TestDecodeEnvelopeNotAnArray(t *testing.T) {
	_, decErr := DecodeEnvelope([]byte(`{"not":"an array"}`))
	require.NotNil(t, decErr)
	assert.Equal(t, FramingError, decErr.Kind)
}

func TestDecodeEnvelopeBadTypeID(t *testing.T) {
	_, decErr := DecodeEnvelope([]byte(`[9,"x"]`))
	require.NotNil(t, decErr)
	assert.Equal(t, ProtocolError, decErr.Kind)
}

func TestParseActionUnknown(t *testing.T) {
	env, decErr := DecodeEnvelope([]byte(`[2,"x","NotARealAction",{}]`))
	require.Nil(t, decErr)
	_, ok := ocpp.ParseAction(env.Call.Action)
	assert.False(t, ok)
}

func TestDecodeRequestPayloadFormationViolation(t *testing.T) {
	_, decErr := DecodeRequestPayload(ocpp.ActionBootNotification, json.RawMessage(`"not an object"`))
	require.NotNil(t, decErr)
	assert.Equal(t, FormationViolation, decErr.Kind)
}

func TestDecodeRequestPayloadFailsValidationOnMissingRequiredField(t *testing.T) {
	_, decErr := DecodeRequestPayload(ocpp.ActionBootNotification, json.RawMessage(`{"chargePointVendor":"AcmeCorp"}`))
	require.NotNil(t, decErr)
	assert.Equal(t, FormationViolation, decErr.Kind)
}

func parseRFC3339(s string) (ocpp.DateTime, error) {
	var dt ocpp.DateTime
	err := dt.UnmarshalJSON([]byte(`"` + s + `"`))
	return dt, err
}
