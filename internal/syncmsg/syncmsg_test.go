package syncmsg

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []MessageType
	err   error
}

func (r *recorder) HandleHello(*Message, *Hello) error {
	r.calls = append(r.calls, MsgHello)
	return r.err
}

func (r *recorder) HandleProjectState(*Message, *ProjectState) error {
	r.calls = append(r.calls, MsgProjectState)
	return r.err
}

func (r *recorder) HandleFileUpsert(*Message, *FileUpsert) error {
	r.calls = append(r.calls, MsgFileUpsert)
	return r.err
}

func (r *recorder) HandleFileDelete(*Message, *FileDelete) error {
	r.calls = append(r.calls, MsgFileDelete)
	return r.err
}

func (r *recorder) HandleDeleteAck(*Message, *DeleteAck) error {
	r.calls = append(r.calls, MsgDeleteAck)
	return r.err
}

func (r *recorder) HandleConflict(*Message, *Conflict) error {
	r.calls = append(r.calls, MsgConflict)
	return r.err
}

func (r *recorder) HandleError(*Message, *Error) error {
	r.calls = append(r.calls, MsgError)
	return r.err
}

func allMessages() []*Message {
	return []*Message{
		NewHello("fullhash", "shortid1", "peer", "session", "0.1.0"),
		NewProjectState("shortid1", []FileState{{Path: "a.tsx", Fingerprint: "1:0:0", Size: 1}}),
		NewFileUpsert("a.tsx", []byte("x"), "1:0:0", ""),
		NewFileDelete("a.tsx", "1:0:0"),
		NewDeleteAck("abcd", "a.tsx", true, ""),
		NewConflict("a.tsx", "l", "r", "both changed", time.Now()),
		NewError(CodeWriteFailed, "a.tsx", "disk full"),
	}
}

func TestDispatch_RoutesEveryType(t *testing.T) {
	r := &recorder{}
	for _, msg := range allMessages() {
		require.NoError(t, Dispatch(msg, r))
	}
	assert.Equal(t, []MessageType{
		MsgHello, MsgProjectState, MsgFileUpsert, MsgFileDelete, MsgDeleteAck, MsgConflict, MsgError,
	}, r.calls)
}

func TestDispatch_PropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	r := &recorder{err: boom}
	assert.ErrorIs(t, Dispatch(NewFileDelete("a.ts", ""), r), boom)
}

func TestDispatch_RejectsInvalid(t *testing.T) {
	r := &recorder{}

	tests := []struct {
		name string
		msg  *Message
	}{
		{"nil", nil},
		{"unknown type", &Message{Id: "x", Type: 99, Data: &Hello{ShortID: "s"}}},
		{"missing payload", &Message{Id: "x", Type: MsgHello}},
		{"type mismatch", &Message{Id: "x", Type: MsgFileDelete, Data: &Hello{ShortID: "s"}}},
		{"upsert without path", NewFileUpsert("", []byte("x"), "", "")},
		{"hello without identity", NewHello("", "", "p", "s", "v")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Dispatch(tt.msg, r)
			require.Error(t, err)
			var derr *DecodeError
			assert.True(t, errors.As(err, &derr))
		})
	}
	assert.Empty(t, r.calls)
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	for _, msg := range allMessages() {
		t.Run(msg.Type.String(), func(t *testing.T) {
			data, err := json.Marshal(msg)
			require.NoError(t, err)

			var decoded Message
			require.NoError(t, json.Unmarshal(data, &decoded))
			require.NoError(t, decoded.Validate())
			assert.Equal(t, msg.Id, decoded.Id)
			assert.Equal(t, msg.Type, decoded.Type)
			assert.IsType(t, msg.Data, decoded.Data)
		})
	}
}

func TestMessage_UnmarshalJSONRejects(t *testing.T) {
	var msg Message
	assert.Error(t, json.Unmarshal([]byte(`{"id":"a","typ":42,"dat":{}}`), &msg))
	assert.Error(t, json.Unmarshal([]byte(`{"id":"a","typ":3}`), &msg))
	assert.Error(t, json.Unmarshal([]byte(`{"id":"a","typ":3,"dat":"nope"}`), &msg))
}

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "FILE_UPSERT", MsgFileUpsert.String())
	assert.Equal(t, "???(0)", MessageType(0).String())
	assert.False(t, MessageType(0).Known())
	assert.True(t, MsgError.Known())
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	a := NewFileDelete("a", "")
	b := NewFileDelete("a", "")
	assert.Len(t, a.Id, IdSize*2)
	assert.NotEqual(t, a.Id, b.Id)
}
