package signal

import (
	"encoding/json"
	"testing"

	"relaychat/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	frame, err := parseFrame([]byte(`{"event":"answer","data":{"to":"bob","from":"eve","answer":{"sdp":"v=0"}}}`))
	require.NoError(t, err)

	env, err := decodeEnvelope(frame)
	require.NoError(t, err)

	assert.Equal(t, domain.SignalNegotiationAnswer, env.Kind)
	assert.Equal(t, domain.UserID("bob"), env.To)
	assert.Empty(t, env.From)
	assert.NotContains(t, env.Payload, "to")
	assert.NotContains(t, env.Payload, "from")
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(env.Payload["answer"]))
}

func TestDecodeEnvelope_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  error
	}{
		{"null data", `null`, domain.ErrMissingTarget},
		{"empty target", `{"to":""}`, domain.ErrMissingTarget},
		{"numeric target", `{"to":42}`, domain.ErrMissingTarget},
		{"array data", `[]`, errMalformedFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeEnvelope(inboundFrame{Event: "call-end", Data: json.RawMessage(tt.data)})
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := decodeEnvelope(inboundFrame{Event: "hangup", Data: json.RawMessage(`{"to":"bob"}`)})
	assert.ErrorIs(t, err, domain.ErrUnknownSignalKind)
}

func TestParseFrame(t *testing.T) {
	_, err := parseFrame([]byte(`not json`))
	assert.ErrorIs(t, err, errMalformedFrame)

	_, err = parseFrame([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, errMalformedFrame)

	frame, err := parseFrame([]byte(`{"event":"call-end"}`))
	require.NoError(t, err)
	assert.Equal(t, "call-end", frame.Event)
	assert.Empty(t, frame.Data)
}
