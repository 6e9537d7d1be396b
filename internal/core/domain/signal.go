package domain

import (
	"encoding/json"
	"fmt"
)

// SignalKind is the closed set of call-signaling messages the relay routes.
type SignalKind string

const (
	SignalCallRequest           SignalKind = "call-request"
	SignalCallAccept            SignalKind = "call-accept"
	SignalCallReject            SignalKind = "call-reject"
	SignalCallEnd               SignalKind = "call-end"
	SignalNegotiationOffer      SignalKind = "negotiation-offer"
	SignalNegotiationAnswer     SignalKind = "negotiation-answer"
	SignalConnectivityCandidate SignalKind = "connectivity-candidate"
)

// SignalKinds lists every routable kind.
var SignalKinds = []SignalKind{
	SignalCallRequest,
	SignalCallAccept,
	SignalCallReject,
	SignalCallEnd,
	SignalNegotiationOffer,
	SignalNegotiationAnswer,
	SignalConnectivityCandidate,
}

// event names emitted by the browser client before the kinds were renamed
var signalAliases = map[string]SignalKind{
	"videoCallRequest":  SignalCallRequest,
	"videoCallAccepted": SignalCallAccept,
	"videoCallRejected": SignalCallReject,
	"videoCallEnded":    SignalCallEnd,
	"offer":             SignalNegotiationOffer,
	"answer":            SignalNegotiationAnswer,
	"iceCandidate":      SignalConnectivityCandidate,
}

// ParseSignalKind resolves a wire event name, canonical or legacy alias.
func ParseSignalKind(name string) (SignalKind, error) {
	kind := SignalKind(name)
	if kind.Valid() {
		return kind, nil
	}
	if kind, ok := signalAliases[name]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSignalKind, name)
}

func (k SignalKind) Valid() bool {
	for _, known := range SignalKinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k SignalKind) String() string {
	return string(k)
}

// Envelope is an addressed signaling message. Payload holds every data field
// the client sent except "to" and "from", kept as raw JSON so the relay
// forwards them untouched.
type Envelope struct {
	Kind    SignalKind
	From    UserID
	To      UserID
	Payload map[string]json.RawMessage
}

// Fields returns the forwarded data object: the original payload fields plus
// the routing fields. "from" always reflects Envelope.From.
func (e Envelope) Fields() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(e.Payload)+2)
	for k, v := range e.Payload {
		out[k] = v
	}
	from, _ := json.Marshal(e.From)
	to, _ := json.Marshal(e.To)
	out["from"] = from
	out["to"] = to
	return out
}

// Decode unpacks the payload into one of the typed payload shapes.
func (e Envelope) Decode(v SignalPayload) error {
	if v.Kind() != e.Kind {
		return fmt.Errorf("payload kind %s does not match envelope kind %s", v.Kind(), e.Kind)
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// NewEnvelope builds an envelope addressed to `to` from a typed payload.
func NewEnvelope(to UserID, p SignalPayload) (Envelope, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", p.Kind(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, fmt.Errorf("payload for %s is not an object: %w", p.Kind(), err)
	}
	delete(fields, "to")
	delete(fields, "from")
	return Envelope{Kind: p.Kind(), To: to, Payload: fields}, nil
}

// SignalPayload is implemented by the typed shape of each kind.
type SignalPayload interface {
	Kind() SignalKind
}

type CallRequest struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type CallAccept struct {
	CallID    string `json:"callId"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type CallReject struct {
	CallID    string `json:"callId"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type CallEnd struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

type NegotiationOffer struct {
	Offer json.RawMessage `json:"offer"`
}

type NegotiationAnswer struct {
	Answer json.RawMessage `json:"answer"`
}

type ConnectivityCandidate struct {
	Candidate json.RawMessage `json:"candidate"`
}

func (CallRequest) Kind() SignalKind           { return SignalCallRequest }
func (CallAccept) Kind() SignalKind            { return SignalCallAccept }
func (CallReject) Kind() SignalKind            { return SignalCallReject }
func (CallEnd) Kind() SignalKind               { return SignalCallEnd }
func (NegotiationOffer) Kind() SignalKind      { return SignalNegotiationOffer }
func (NegotiationAnswer) Kind() SignalKind     { return SignalNegotiationAnswer }
func (ConnectivityCandidate) Kind() SignalKind { return SignalConnectivityCandidate }

type RouteOutcome int

const (
	RouteDelivered RouteOutcome = iota
	RouteUnreachable
)

func (o RouteOutcome) String() string {
	switch o {
	case RouteDelivered:
		return "delivered"
	case RouteUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}
