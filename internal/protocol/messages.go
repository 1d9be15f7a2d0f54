package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sahaj-careers/sahaj/internal/profile"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeTextMessage MessageType = "text_message"
	TypeChangeState MessageType = "change_state"

	TypeSessionInit  MessageType = "session_init"
	TypeGreeting     MessageType = "greeting"
	TypeResponse     MessageType = "response"
	TypeStateChanged MessageType = "state_changed"
	TypeError        MessageType = "error"

	// TypeAudio labels binary audio frames in metrics and logs. It never
	// appears on the wire.
	TypeAudio MessageType = "audio"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// Init is the first frame of a connection. Both fields are optional.
type Init struct {
	UserID   string `json:"user_id,omitempty"`
	Language string `json:"language,omitempty"`
}

type TextMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type ChangeState struct {
	Type  MessageType `json:"type"`
	State string      `json:"state"`
}

// Audio is a binary frame carrying one utterance.
type Audio struct {
	Data []byte
}

type SessionInit struct {
	Type      MessageType      `json:"type"`
	UserID    string           `json:"user_id"`
	SessionID string           `json:"session_id"`
	State     string           `json:"state"`
	Profile   profile.Snapshot `json:"profile"`
}

type Greeting struct {
	Type          MessageType `json:"type"`
	ResponseText  string      `json:"response_text"`
	ResponseAudio *string     `json:"response_audio"`
	State         string      `json:"state"`
}

type Response struct {
	Type            MessageType       `json:"type"`
	Transcript      string            `json:"transcript"`
	ResponseText    string            `json:"response_text"`
	ResponseAudio   *string           `json:"response_audio"`
	ProfileUpdate   profile.Updates   `json:"profile_update"`
	Recommendations []json.RawMessage `json:"recommendations"`
	State           string            `json:"state"`
	DiscoveryStep   int               `json:"discovery_step"`
	ProfileComplete bool              `json:"profile_complete"`
}

type StateChanged struct {
	Type  MessageType `json:"type"`
	State string      `json:"state"`
}

type ErrorEvent struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
}

func NewError(code, message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Code: code, Message: message}
}

// EncodeAudio returns base64 audio, or nil when there is none so the field
// serializes as null.
func EncodeAudio(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := base64.StdEncoding.EncodeToString(b)
	return &s
}

// ParseInit decodes the handshake frame. An empty or whitespace-only frame
// is an empty Init.
func ParseInit(raw []byte) (Init, error) {
	var msg Init
	if len(bytes.TrimSpace(raw)) == 0 {
		return msg, nil
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Init{}, fmt.Errorf("invalid init frame: %w", err)
	}
	msg.UserID = strings.TrimSpace(msg.UserID)
	msg.Language = strings.TrimSpace(msg.Language)
	return msg, nil
}

// ParseClientMessage decodes a text frame received after the handshake.
// Frame kinds the server does not handle return ErrUnsupportedType.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeTextMessage:
		var msg TextMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, errors.New("invalid text_message: empty text")
		}
		return msg, nil
	case TypeChangeState:
		var msg ChangeState
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.State) == "" {
			return nil, errors.New("invalid change_state: empty state")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
