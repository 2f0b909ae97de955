package echonet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_SerializeDeserializeRoundTrip(t *testing.T) {
	deoj := EOJ{EVChargerClassGroup, EVChargerClass, 0x01}
	f := NewGetFrame(0x1234, deoj, []byte{EPCOperationStatus})

	data := f.Serialize()
	got, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, f.TID, got.TID)
	assert.Equal(t, f.SEOJ, got.SEOJ)
	assert.Equal(t, f.DEOJ, got.DEOJ)
	assert.Equal(t, f.ESV, got.ESV)
	assert.Equal(t, f.Properties, got.Properties)
}

func TestFrame_SetFrameCarriesEDT(t *testing.T) {
	deoj := EOJ{EVChargerClassGroup, EVChargerClass, 0x01}
	f := NewSetFrame(1, deoj, 0x80, []byte{0x30})

	data := f.Serialize()
	got, err := Deserialize(data)
	require.NoError(t, err)

	prop, ok := got.Property(0x80)
	require.True(t, ok)
	assert.Equal(t, []byte{0x30}, prop.EDT)
}

func TestDeserialize_RejectsTooShort(t *testing.T) {
	_, err := Deserialize([]byte{0x10, 0x81})
	assert.Error(t, err)
}

func TestDeserialize_RejectsWrongEHD1(t *testing.T) {
	deoj := EOJ{EVChargerClassGroup, EVChargerClass, 0x01}
	data := NewGetFrame(1, deoj, []byte{0x80}).Serialize()
	data[0] = 0x20
	_, err := Deserialize(data)
	assert.Error(t, err)
}

func TestDeserialize_RejectsTruncatedEDT(t *testing.T) {
	deoj := EOJ{EVChargerClassGroup, EVChargerClass, 0x01}
	data := NewSetFrame(1, deoj, 0x80, []byte{0x01, 0x02, 0x03}).Serialize()
	_, err := Deserialize(data[:len(data)-2])
	assert.Error(t, err)
}

func TestIsErrorResponse(t *testing.T) {
	assert.True(t, IsErrorResponse(ESVSetRequestNotPossible))
	assert.True(t, IsErrorResponse(ESVGetRequestNotPossible))
	assert.True(t, IsErrorResponse(ESVSetGetRequestNotPossible))
	assert.False(t, IsErrorResponse(ESVGetResponse))
}

func TestFrame_GetRoundTrip_MatchesWireExample(t *testing.T) {
	deoj := EOJ{EVChargerClassGroup, EVChargerClass, 0x01}
	req := NewGetFrame(0x1234, deoj, []byte{EPCOperationStatus})

	wantReq := []byte{0x10, 0x81, 0x12, 0x34, 0x05, 0xFF, 0x01, 0x02, 0xA1, 0x01, 0x62, 0x01, 0x80, 0x00}
	assert.Equal(t, wantReq, req.Serialize())

	respBytes := []byte{0x10, 0x81, 0x12, 0x34, 0x02, 0xA1, 0x01, 0x05, 0xFF, 0x01, 0x72, 0x01, 0x80, 0x01, 0x30}
	resp, err := Deserialize(respBytes)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), resp.TID)
	assert.Equal(t, byte(ESVGetResponse), resp.ESV)

	prop, ok := resp.Property(EPCOperationStatus)
	require.True(t, ok)
	assert.Equal(t, []byte{0x30}, prop.EDT)
}

func TestNewDiscoveryFrame_TargetsNodeProfile(t *testing.T) {
	f := NewDiscoveryFrame(7)
	assert.Equal(t, EOJ{NodeProfileClassGroup, NodeProfileClass, NodeProfileInstance}, f.DEOJ)
	assert.Equal(t, byte(ESVGetRequest), f.ESV)
	prop, ok := f.Property(EPCSelfNodeInstanceListS)
	require.True(t, ok)
	assert.Empty(t, prop.EDT)
}
