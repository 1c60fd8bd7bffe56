package wsproto

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/coder/websocket"
	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/framer/codelink/internal/syncmsg"
)

// Encoding indicates which wire encoding is used for WebSocket messages.
type Encoding uint8

const (
	EncodingJSON Encoding = iota
	EncodingMsgPack
)

func (e Encoding) String() string {
	switch e {
	case EncodingMsgPack:
		return "msgpack"
	default:
		return "json"
	}
}

const (
	magic0  = byte('C')
	magic1  = byte('L')
	version = byte(1)

	headerSize = 4
)

var errNoEnvelope = errors.New("binary message missing CL envelope")

// ParseEncoding parses a single encoding name.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return EncodingJSON, nil
	case "msgpack":
		return EncodingMsgPack, nil
	default:
		return EncodingJSON, fmt.Errorf("unknown encoding %q", name)
	}
}

// PreferredEncoding parses a comma-separated preference list (e.g. "msgpack,json").
// Returns EncodingJSON if list is empty/unknown.
func PreferredEncoding(list string) Encoding {
	for _, p := range strings.Split(list, ",") {
		if enc, err := ParseEncoding(p); err == nil && strings.TrimSpace(p) != "" {
			return enc
		}
	}
	return EncodingJSON
}

// Marshal encodes a message for WebSocket transport.
// JSON goes out as a text frame holding the bare envelope.
// MsgPack goes out as a binary frame: [magic][version][encoding][payload].
func Marshal(msg *syncmsg.Message, enc Encoding) (websocket.MessageType, []byte, error) {
	if err := msg.Validate(); err != nil {
		return websocket.MessageText, nil, err
	}

	if enc == EncodingJSON {
		data, err := json.Marshal(msg)
		return websocket.MessageText, data, err
	}

	payload, err := marshalMsgpack(msg)
	if err != nil {
		return websocket.MessageBinary, nil, err
	}

	buf := make([]byte, headerSize+len(payload))
	buf[0], buf[1], buf[2], buf[3] = magic0, magic1, version, byte(enc)
	copy(buf[headerSize:], payload)
	return websocket.MessageBinary, buf, nil
}

// Unmarshal decodes a WebSocket frame into a validated message.
// Every failure is a *syncmsg.DecodeError.
func Unmarshal(typ websocket.MessageType, data []byte) (*syncmsg.Message, Encoding, error) {
	msg, enc, err := unmarshal(typ, data)
	if err != nil {
		var derr *syncmsg.DecodeError
		if !errors.As(err, &derr) {
			err = &syncmsg.DecodeError{Err: err}
		}
		return nil, enc, err
	}
	if err := msg.Validate(); err != nil {
		return nil, enc, err
	}
	return msg, enc, nil
}

func unmarshal(typ websocket.MessageType, data []byte) (*syncmsg.Message, Encoding, error) {
	switch typ {
	case websocket.MessageText:
		var msg syncmsg.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, EncodingJSON, err
		}
		return &msg, EncodingJSON, nil

	case websocket.MessageBinary:
		if len(data) < headerSize || data[0] != magic0 || data[1] != magic1 {
			return nil, EncodingMsgPack, errNoEnvelope
		}
		if data[2] != version {
			return nil, EncodingMsgPack, fmt.Errorf("unsupported ws envelope version: %d", data[2])
		}
		enc := Encoding(data[3])
		payload := data[headerSize:]
		switch enc {
		case EncodingMsgPack:
			msg, err := unmarshalMsgpack(payload)
			return msg, enc, err
		case EncodingJSON:
			var msg syncmsg.Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				return nil, enc, err
			}
			return &msg, enc, nil
		default:
			return nil, enc, fmt.Errorf("unknown ws encoding: %d", enc)
		}

	default:
		return nil, EncodingJSON, fmt.Errorf("unsupported websocket message type: %v", typ)
	}
}

type wireMessage struct {
	Id   string              `msgpack:"id"`
	Type syncmsg.MessageType `msgpack:"typ"`
	Data []byte              `msgpack:"dat"`
}

func marshalMsgpack(msg *syncmsg.Message) ([]byte, error) {
	dat, err := msgpack.Marshal(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msg.Type, err)
	}
	return msgpack.Marshal(&wireMessage{Id: msg.Id, Type: msg.Type, Data: dat})
}

func unmarshalMsgpack(payload []byte) (*syncmsg.Message, error) {
	var w wireMessage
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.SetCustomStructTag("msgpack")
	if err := dec.Decode(&w); err != nil {
		return nil, err
	}

	data, err := syncmsg.NewPayload(w.Type)
	if err != nil {
		return nil, &syncmsg.DecodeError{Type: w.Type, Err: err}
	}
	if err := msgpack.Unmarshal(w.Data, data); err != nil {
		return nil, &syncmsg.DecodeError{Type: w.Type, Err: err}
	}
	return &syncmsg.Message{Id: w.Id, Type: w.Type, Data: data}, nil
}
