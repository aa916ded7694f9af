package domain

import (
	"encoding/json"
	"fmt"
)

type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice_candidate"
)

// SignalPacket is a negotiation message relayed between exactly two
// participants. The payload is opaque to the server; only the kind tag is
// validated so a malformed shape cannot be forwarded or accepted.
type SignalPacket struct {
	SessionID SessionID       `json:"session_id"`
	From      UserID          `json:"from"`
	To        UserID          `json:"to"`
	Kind      SignalKind      `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

func (p *SignalPacket) Validate() error {
	switch p.Kind {
	case SignalOffer, SignalAnswer, SignalICECandidate:
	default:
		return fmt.Errorf("unknown signal kind: %q", p.Kind)
	}
	if p.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if p.To == "" {
		return fmt.Errorf("target participant is required")
	}
	if len(p.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	return nil
}
