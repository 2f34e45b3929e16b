package daemon

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	params, err := json.Marshal(&CreateContainerParams{
		PlayerID:    1,
		CommandType: "scout_tour",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"markets":     []string{"X1-A1", "X1-B2"},
		},
		MaxIterations: 10,
	})
	require.NoError(t, err)

	require.NoError(t, writeFrame(&buf, &Request{ID: 42, Method: MethodCreateContainer, Params: params}))

	var decoded Request
	require.NoError(t, readFrame(&buf, &decoded))
	assert.Equal(t, uint64(42), decoded.ID)
	assert.Equal(t, MethodCreateContainer, decoded.Method)

	var p CreateContainerParams
	require.NoError(t, json.Unmarshal(decoded.Params, &p))
	assert.Equal(t, "scout_tour", p.CommandType)
	assert.Equal(t, 10, p.MaxIterations)
	assert.Equal(t, "SCOUT-1", p.Config["ship_symbol"])
}

func TestFrameLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, &Response{ID: 1, OK: true}))

	raw := buf.Bytes()
	require.Greater(t, len(raw), 4)
	size := binary.BigEndian.Uint32(raw[:4])
	assert.Equal(t, int(size), len(raw)-4)
}

func TestReadFrameRejectsOversizedHeader(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], maxFrameSize+1)
	buf.Write(header[:])

	var req Request
	err := readFrame(&buf, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 100)
	buf.Write(header[:])
	buf.WriteString("{\"id\":1}")

	var req Request
	err := readFrame(&buf, &req)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
