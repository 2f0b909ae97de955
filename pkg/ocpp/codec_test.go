package ocpp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_CallRoundTrip(t *testing.T) {
	call := &Call{ID: "abc12345", Action: ActionBootNotification, Payload: json.RawMessage(`{"reason":"PowerUp"}`)}

	data, err := Serialize(call)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	got, ok := parsed.(*Call)
	require.True(t, ok)
	assert.Equal(t, call.ID, got.ID)
	assert.Equal(t, call.Action, got.Action)
	assert.JSONEq(t, string(call.Payload), string(got.Payload))
}

func TestCodec_CallResultRoundTrip(t *testing.T) {
	result := &CallResult{ID: "abc12345", Payload: json.RawMessage(`{"status":"Accepted"}`)}

	data, err := Serialize(result)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	got, ok := parsed.(*CallResult)
	require.True(t, ok)
	assert.Equal(t, result.ID, got.ID)
	assert.JSONEq(t, string(result.Payload), string(got.Payload))
}

func TestCodec_CallErrorRoundTrip(t *testing.T) {
	callErr := &CallError{ID: "abc12345", Code: ErrorNotImplemented, Description: "unknown action", Details: json.RawMessage(`{}`)}

	data, err := Serialize(callErr)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	got, ok := parsed.(*CallError)
	require.True(t, ok)
	assert.Equal(t, callErr.ID, got.ID)
	assert.Equal(t, callErr.Code, got.Code)
	assert.Equal(t, callErr.Description, got.Description)
}

func TestCodec_WireForm(t *testing.T) {
	call := &Call{ID: "abc12345", Action: ActionBootNotification, Payload: json.RawMessage(`{"reason":"PowerUp"}`)}
	data, err := Serialize(call)
	require.NoError(t, err)

	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &arr))
	require.Len(t, arr, 4)
	assert.Equal(t, "2", string(arr[0]))
	assert.Equal(t, `"abc12345"`, string(arr[1]))
	assert.Equal(t, `"BootNotification"`, string(arr[2]))
}

func TestParse_NotAnArray(t *testing.T) {
	_, err := Parse([]byte(`{"not":"an array"}`))
	require.Error(t, err)
}

func TestParse_UnknownType(t *testing.T) {
	_, err := Parse([]byte(`[9, "id", {}]`))
	require.Error(t, err)
}

func TestParse_CallWrongArity(t *testing.T) {
	_, err := Parse([]byte(`[2, "id", "Action"]`))
	require.Error(t, err)
}

func TestParse_CallNonStringID(t *testing.T) {
	_, err := Parse([]byte(`[2, 123, "Action", {}]`))
	require.Error(t, err)
}

func TestParse_UnknownActionSucceeds(t *testing.T) {
	parsed, err := Parse([]byte(`[2, "id1", "Foo", {}]`))
	require.NoError(t, err)

	call, ok := parsed.(*Call)
	require.True(t, ok)
	assert.False(t, call.Action.Known())
}

func TestAction_Known(t *testing.T) {
	assert.True(t, ActionBootNotification.Known())
	assert.False(t, Action("Foo").Known())
}
