// Package syncmsg defines the messages exchanged between two sync endpoints.
//
// Every frame is a Message envelope carrying exactly one payload out of a closed set.
// Outgoing messages are built with the New* constructors; incoming messages come out
// of the wire codec already validated and are consumed through Dispatch, which routes
// each payload to a method of Handler.
package syncmsg

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/framer/codelink/internal/utils"
)

const IdSize = 4

var ErrUnknownMessage = errors.New("unknown message")

type Message struct {
	Id   string      `json:"id"`
	Type MessageType `json:"typ"`
	Data Payload     `json:"dat"`
}

// Payload is implemented only by the message bodies of this package.
type Payload interface {
	MessageType() MessageType
	validate() error
}

// DecodeError is returned for frames that are not a well-formed Message.
type DecodeError struct {
	Type MessageType
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == 0 {
		return fmt.Sprintf("decode message: %v", e.Err)
	}
	return fmt.Sprintf("decode %s message: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Validate checks that the envelope discriminator is known and agrees with the payload.
func (m *Message) Validate() error {
	if m == nil {
		return &DecodeError{Err: errors.New("nil message")}
	}
	if !m.Type.Known() {
		return &DecodeError{Type: m.Type, Err: ErrUnknownMessage}
	}
	if m.Data == nil {
		return &DecodeError{Type: m.Type, Err: errors.New("missing payload")}
	}
	if got := m.Data.MessageType(); got != m.Type {
		return &DecodeError{Type: m.Type, Err: fmt.Errorf("payload is %s", got)}
	}
	if err := m.Data.validate(); err != nil {
		return &DecodeError{Type: m.Type, Err: err}
	}
	return nil
}

// NewPayload returns an empty payload for t, ready to be decoded into.
func NewPayload(t MessageType) (Payload, error) {
	switch t {
	case MsgHello:
		return &Hello{}, nil
	case MsgProjectState:
		return &ProjectState{}, nil
	case MsgFileUpsert:
		return &FileUpsert{}, nil
	case MsgFileDelete:
		return &FileDelete{}, nil
	case MsgDeleteAck:
		return &DeleteAck{}, nil
	case MsgConflict:
		return &Conflict{}, nil
	case MsgError:
		return &Error{}, nil
	default:
		return nil, fmt.Errorf("%w: type %d", ErrUnknownMessage, t)
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface for Message
func (m *Message) UnmarshalJSON(data []byte) error {
	type tempMessage struct {
		Id   string          `json:"id"`
		Type MessageType     `json:"typ"`
		Data json.RawMessage `json:"dat"`
	}

	var temp tempMessage
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	payload, err := NewPayload(temp.Type)
	if err != nil {
		return err
	}
	if len(temp.Data) == 0 || string(temp.Data) == "null" {
		return fmt.Errorf("%s: missing payload", temp.Type)
	}
	if err := json.Unmarshal(temp.Data, payload); err != nil {
		return err
	}

	m.Id = temp.Id
	m.Type = temp.Type
	m.Data = payload
	return nil
}

func newMessage(p Payload) *Message {
	return &Message{Id: generateID(), Type: p.MessageType(), Data: p}
}

func generateID() string {
	return utils.TokenHex(IdSize)
}
