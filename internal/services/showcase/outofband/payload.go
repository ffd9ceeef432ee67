package outofband

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Payload is the typed body of an out-of-band message. The concrete type is
// selected by the message type.
type Payload interface {
	MsgType() MsgType
}

// InvitationPayload carries a connection invitation generated by the
// sender's wallet.
type InvitationPayload struct {
	ConnectionID  string          `json:"connection_id,omitempty"`
	InvitationURL string          `json:"invitation_url,omitempty"`
	Alias         string          `json:"alias,omitempty"`
	Invitation    json.RawMessage `json:"invitation"`
}

// MsgType implements Payload.
func (InvitationPayload) MsgType() MsgType { return TypeInvitation }

// InvitationResponsePayload records the recipient's completed handshake.
type InvitationResponsePayload struct {
	InvitationMessageID uuid.UUID `json:"invitation_msg_id"`
	ConnectionID        string    `json:"connection_id"`
}

// MsgType implements Payload.
func (InvitationResponsePayload) MsgType() MsgType { return TypeInvitationResponse }

// OtherPayload keeps message bodies this service does not interpret.
type OtherPayload struct {
	Raw json.RawMessage
}

// MsgType implements Payload.
func (OtherPayload) MsgType() MsgType { return TypeOther }

// MarshalJSON writes the raw body unchanged.
func (p OtherPayload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return []byte("{}"), nil
	}
	return p.Raw, nil
}

// EncodePayload serializes a payload for storage.
func EncodePayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return nil, fmt.Errorf("payload is required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.MsgType(), err)
	}
	return data, nil
}

// DecodePayload restores the typed payload for msgType. Bodies of unknown
// types are kept verbatim as OtherPayload.
func DecodePayload(msgType MsgType, raw []byte) (Payload, error) {
	switch msgType {
	case TypeInvitation:
		var p InvitationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode invitation payload: %w", err)
		}
		return p, nil
	case TypeInvitationResponse:
		var p InvitationResponsePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode invitation-response payload: %w", err)
		}
		return p, nil
	default:
		if len(raw) > 0 && !json.Valid(raw) {
			return nil, fmt.Errorf("decode payload: invalid json")
		}
		return OtherPayload{Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
