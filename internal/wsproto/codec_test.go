package wsproto

import (
	"errors"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/framer/codelink/internal/syncmsg"
)

func TestCodec_JSONRoundTrip(t *testing.T) {
	content := []byte("export const X = 1;")
	msg := syncmsg.NewFileUpsert("src/x.tsx", content, "19:a:b", "")

	typ, data, err := Marshal(msg, EncodingJSON)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)

	decoded, enc, err := Unmarshal(typ, data)
	require.NoError(t, err)
	require.Equal(t, EncodingJSON, enc)

	up, ok := decoded.Data.(*syncmsg.FileUpsert)
	require.True(t, ok)
	require.Equal(t, "src/x.tsx", up.Path)
	require.Equal(t, content, up.Content)
	require.Equal(t, msg.Id, decoded.Id)
}

func TestCodec_MsgPackRoundTrip(t *testing.T) {
	content := make([]byte, 1024)
	for i := range content {
		content[i] = byte(i % 251)
	}
	msg := syncmsg.NewFileUpsert("x/y.ts", content, "fp", "base")

	typ, data, err := Marshal(msg, EncodingMsgPack)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageBinary, typ)
	require.True(t, len(data) > headerSize)
	require.Equal(t, byte('C'), data[0])
	require.Equal(t, byte('L'), data[1])
	require.Equal(t, byte(1), data[2])
	require.Equal(t, byte(EncodingMsgPack), data[3])

	decoded, enc, err := Unmarshal(typ, data)
	require.NoError(t, err)
	require.Equal(t, EncodingMsgPack, enc)

	up, ok := decoded.Data.(*syncmsg.FileUpsert)
	require.True(t, ok)
	require.Equal(t, "x/y.ts", up.Path)
	require.Equal(t, "base", up.Base)
	require.Equal(t, content, up.Content)
}

func TestCodec_MsgPackEveryType(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msgs := []*syncmsg.Message{
		syncmsg.NewHello("hash", "short123", "peer", "sess", "0.1.0"),
		syncmsg.NewProjectState("short123", []syncmsg.FileState{{Path: "a.ts", Fingerprint: "1:0:0", Size: 1}}),
		syncmsg.NewFileDelete("a.ts", "1:0:0"),
		syncmsg.NewDeleteAck("orig", "a.ts", false, "diverged"),
		syncmsg.NewConflict("a.ts", "l", "r", "", now),
		syncmsg.NewError(syncmsg.CodeMalformed, "", "bad frame"),
	}
	for _, msg := range msgs {
		t.Run(msg.Type.String(), func(t *testing.T) {
			typ, data, err := Marshal(msg, EncodingMsgPack)
			require.NoError(t, err)
			decoded, _, err := Unmarshal(typ, data)
			require.NoError(t, err)
			require.Equal(t, msg.Type, decoded.Type)
			require.IsType(t, msg.Data, decoded.Data)
		})
	}

	typ, data, err := Marshal(msgs[4], EncodingMsgPack)
	require.NoError(t, err)
	decoded, _, err := Unmarshal(typ, data)
	require.NoError(t, err)
	require.True(t, now.Equal(decoded.Data.(*syncmsg.Conflict).DetectedAt))
}

func TestCodec_BinaryJSONEnvelope(t *testing.T) {
	msg := syncmsg.NewFileDelete("a.ts", "")
	j, err := json.Marshal(msg)
	require.NoError(t, err)

	frame := append([]byte{magic0, magic1, version, byte(EncodingJSON)}, j...)
	decoded, enc, err := Unmarshal(websocket.MessageBinary, frame)
	require.NoError(t, err)
	require.Equal(t, EncodingJSON, enc)
	require.Equal(t, msg.Id, decoded.Id)
}

func TestCodec_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		typ  websocket.MessageType
		data []byte
	}{
		{"binary without envelope", websocket.MessageBinary, []byte{0, 1, 2, 3}},
		{"short binary", websocket.MessageBinary, []byte{'C'}},
		{"bad version", websocket.MessageBinary, []byte{'C', 'L', 9, 1}},
		{"bad encoding", websocket.MessageBinary, []byte{'C', 'L', 1, 7, 0}},
		{"garbage text", websocket.MessageText, []byte("{nope")},
		{"unknown type", websocket.MessageText, []byte(`{"id":"a","typ":77,"dat":{}}`)},
		{"missing path", websocket.MessageText, []byte(`{"id":"a","typ":4,"dat":{"pth":""}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Unmarshal(tt.typ, tt.data)
			require.Error(t, err)
			var derr *syncmsg.DecodeError
			require.True(t, errors.As(err, &derr))
		})
	}
}

func TestCodec_MarshalRejectsInvalid(t *testing.T) {
	_, _, err := Marshal(&syncmsg.Message{Id: "x", Type: syncmsg.MsgHello}, EncodingJSON)
	require.Error(t, err)
}

func TestPreferredEncoding(t *testing.T) {
	require.Equal(t, EncodingMsgPack, PreferredEncoding("msgpack,json"))
	require.Equal(t, EncodingJSON, PreferredEncoding("cbor, json"))
	require.Equal(t, EncodingJSON, PreferredEncoding(""))

	enc, err := ParseEncoding("MsgPack")
	require.NoError(t, err)
	require.Equal(t, EncodingMsgPack, enc)
	_, err = ParseEncoding("xml")
	require.Error(t, err)
}
