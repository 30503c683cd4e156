package ocpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionClosedSet(t *testing.T) {
	a, ok := ParseAction("BootNotification")
	require.True(t, ok)
	assert.Equal(t, ActionBootNotification, a)

	_, ok = ParseAction("NotARealAction")
	assert.False(t, ok)

	// case-sensitive, no aliasing
	_, ok = ParseAction("bootnotification")
	assert.False(t, ok)
}

func TestParseActionCoversAllTwentyEight(t *testing.T) {
	assert.Len(t, actions, 28)
	assert.Len(t, payloadTypes, 28)
	for a := range actions {
		_, ok := payloadTypes[a]
		assert.Truef(t, ok, "action %s missing from payload type table", a)
	}
}

func TestNewRequestResponse(t *testing.T) {
	req, ok := NewRequest(ActionHeartbeat)
	require.True(t, ok)
	_, isHeartbeatReq := req.(*HeartbeatRequest)
	assert.True(t, isHeartbeatReq)

	resp, ok := NewResponse(ActionHeartbeat)
	require.True(t, ok)
	_, isHeartbeatResp := resp.(*HeartbeatResponse)
	assert.True(t, isHeartbeatResp)

	_, ok = NewRequest(Action("Unknown"))
	assert.False(t, ok)
}
