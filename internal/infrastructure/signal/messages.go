package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"relaychat/internal/core/domain"
)

// inboundFrame is one client-to-server websocket frame.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

var errMalformedFrame = errors.New("malformed frame")

func parseFrame(raw []byte) (inboundFrame, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return inboundFrame{}, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	if frame.Event == "" {
		return inboundFrame{}, fmt.Errorf("%w: event is required", errMalformedFrame)
	}
	return frame, nil
}

// decodeEnvelope turns a frame into an envelope. "from" is dropped here; the
// router stamps the sender's own identity.
func decodeEnvelope(frame inboundFrame) (domain.Envelope, error) {
	kind, err := domain.ParseSignalKind(frame.Event)
	if err != nil {
		return domain.Envelope{}, err
	}

	fields := map[string]json.RawMessage{}
	data := bytes.TrimSpace(frame.Data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, &fields); err != nil {
			return domain.Envelope{}, fmt.Errorf("%w: data must be an object", errMalformedFrame)
		}
	}

	var to string
	if raw, ok := fields["to"]; ok {
		if err := json.Unmarshal(raw, &to); err != nil {
			return domain.Envelope{}, fmt.Errorf("%w: to must be a string", domain.ErrMissingTarget)
		}
	}
	if to == "" {
		return domain.Envelope{}, domain.ErrMissingTarget
	}

	delete(fields, "to")
	delete(fields, "from")
	return domain.Envelope{
		Kind:    kind,
		To:      domain.UserID(to),
		Payload: fields,
	}, nil
}
