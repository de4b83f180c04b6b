package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestResponseFrameRoundTrip(t *testing.T) {
	req, err := NewRequest("msg-1", KindObjectAlive, ObjectAliveRequest{TargetAddress: 42})
	require.NoError(t, err)

	isResponse, err := PeekClass(req.EncodeFrame())
	require.NoError(t, err)
	assert.False(t, isResponse)

	got, err := DecodeRequestFrame(req.EncodeFrame())
	require.NoError(t, err)
	assert.Equal(t, "msg-1", got.MessageID)
	assert.Equal(t, KindObjectAlive, got.Kind)

	var body ObjectAliveRequest
	require.NoError(t, got.Decode(&body))
	assert.Equal(t, uint64(42), body.TargetAddress)

	resp, err := NewResponse(req, ObjectAliveResponse{Alive: true})
	require.NoError(t, err)
	assert.Equal(t, req.MessageID, resp.MessageID)

	isResponse, err = PeekClass(resp.EncodeFrame())
	require.NoError(t, err)
	assert.True(t, isResponse)

	gotResp, err := DecodeResponseFrame(resp.EncodeFrame())
	require.NoError(t, err)
	assert.Equal(t, req.MessageID, gotResp.MessageID)
	var respBody ObjectAliveResponse
	require.NoError(t, gotResp.Decode(&respBody))
	assert.True(t, respBody.Alive)
}

func TestDecodeRequestFrameRejectsResponseClass(t *testing.T) {
	req, err := NewRequest("msg-2", KindRootObject, RootObjectRequest{})
	require.NoError(t, err)
	resp, err := NewResponse(req, RootObjectResponse{RootAddress: 1})
	require.NoError(t, err)

	_, err = DecodeRequestFrame(resp.EncodeFrame())
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestErrorResponseRoundTrip(t *testing.T) {
	req, err := NewRequest("msg-3", KindInvocation, InvocationRequest{TargetAddress: 7})
	require.NoError(t, err)

	resp := NewErrorResponse(req, ErrUnsupportedRequest)
	assert.True(t, resp.IsError())

	got, err := DecodeResponseFrame(resp.EncodeFrame())
	require.NoError(t, err)
	assert.True(t, got.IsError())
	assert.EqualError(t, got.AsError(), ErrUnsupportedRequest.Error())
}

func TestRequestMatches(t *testing.T) {
	req, err := NewRequest("msg-4", KindRootObject, RootObjectRequest{})
	require.NoError(t, err)
	assert.True(t, req.Matches("any-uuid"))

	req.ServiceUUID = "svc-1"
	assert.True(t, req.Matches("svc-1"))
	assert.False(t, req.Matches("svc-2"))
}

func TestPeekMessageID(t *testing.T) {
	req, err := NewRequest("msg-5", KindObjectAlive, ObjectAliveRequest{})
	require.NoError(t, err)
	id, err := PeekMessageID(req.EncodeFrame())
	require.NoError(t, err)
	assert.Equal(t, "msg-5", id)
}
