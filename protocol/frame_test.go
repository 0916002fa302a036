package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	require := require.New(t)

	t.Run("Response", func(t *testing.T) {
		frame, err := Decode([]byte(`{"type":"response","id":"q1","success":true,"data":{"ok":1}}`))
		require.NoError(err)
		require.Equal(FrameResponse, frame.Type)

		var rsp Response
		require.NoError(json.Unmarshal(frame.Raw, &rsp))
		require.Equal("q1", rsp.ID)
		require.True(rsp.Success)
		require.JSONEq(`{"ok":1}`, string(rsp.Data))
	})

	t.Run("FailedResponse", func(t *testing.T) {
		frame, err := Decode([]byte(`{"type":"response","id":"q2","success":false,"error":"no reader attached"}`))
		require.NoError(err)

		var rsp Response
		require.NoError(json.Unmarshal(frame.Raw, &rsp))
		require.False(rsp.Success)
		require.Equal("no reader attached", rsp.Error)
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		_, err := Decode([]byte(`{"type":`))
		require.ErrorIs(err, ErrMalformedFrame)
	})

	t.Run("MissingDiscriminator", func(t *testing.T) {
		_, err := Decode([]byte(`{"id":"q1"}`))
		require.ErrorIs(err, ErrMalformedFrame)
	})

	t.Run("RawIsDetachedCopy", func(t *testing.T) {
		buf := []byte(`{"type":"pong"}`)
		frame, err := Decode(buf)
		require.NoError(err)

		buf[0] = 'X'
		require.Equal(`{"type":"pong"}`, string(frame.Raw))
	})
}

func TestCommandFrames(t *testing.T) {
	require := require.New(t)

	t.Run("TriggerScan", func(t *testing.T) {
		buf, err := json.Marshal(NewTriggerScan())
		require.NoError(err)
		require.JSONEq(`{"type":"command","command":"trigger_scan"}`, string(buf))
	})

	t.Run("SetSymbologies", func(t *testing.T) {
		buf, err := json.Marshal(NewSetSymbologies([]string{"ean13", "code128"}))
		require.NoError(err)
		require.JSONEq(`{"type":"command","command":"set_symbologies","symbologies":["ean13","code128"]}`, string(buf))
	})

	t.Run("StartRfidInventoryWithOptions", func(t *testing.T) {
		buf, err := json.Marshal(NewStartRfidInventory(json.RawMessage(`{"session":1}`)))
		require.NoError(err)
		require.JSONEq(`{"type":"command","command":"start_rfid_inventory","options":{"session":1}}`, string(buf))
	})

	t.Run("Query", func(t *testing.T) {
		buf, err := json.Marshal(NewQuery("q42", QueryStatus))
		require.NoError(err)
		require.JSONEq(`{"type":"query","id":"q42","query":"status"}`, string(buf))
	})

	t.Run("Ping", func(t *testing.T) {
		buf, err := json.Marshal(NewPing())
		require.NoError(err)
		require.JSONEq(`{"type":"ping"}`, string(buf))
	})
}

func TestServerErrorError(t *testing.T) {
	require := require.New(t)

	e := &ServerError{Type: FrameError, Message: "reader busy"}
	require.Equal("bridge error: reader busy", e.Error())

	e.Code = "E42"
	require.Equal("bridge error E42: reader busy", e.Error())
}
