package syncmsg

import "fmt"

// Handler consumes every message type. Adding a message type adds a method here,
// so every consumer has to handle it before it compiles.
type Handler interface {
	HandleHello(msg *Message, hello *Hello) error
	HandleProjectState(msg *Message, state *ProjectState) error
	HandleFileUpsert(msg *Message, upsert *FileUpsert) error
	HandleFileDelete(msg *Message, del *FileDelete) error
	HandleDeleteAck(msg *Message, ack *DeleteAck) error
	HandleConflict(msg *Message, conflict *Conflict) error
	HandleError(msg *Message, e *Error) error
}

// Dispatch validates msg and routes its payload to h.
func Dispatch(msg *Message, h Handler) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	switch p := msg.Data.(type) {
	case *Hello:
		return h.HandleHello(msg, p)
	case *ProjectState:
		return h.HandleProjectState(msg, p)
	case *FileUpsert:
		return h.HandleFileUpsert(msg, p)
	case *FileDelete:
		return h.HandleFileDelete(msg, p)
	case *DeleteAck:
		return h.HandleDeleteAck(msg, p)
	case *Conflict:
		return h.HandleConflict(msg, p)
	case *Error:
		return h.HandleError(msg, p)
	default:
		return &DecodeError{Type: msg.Type, Err: fmt.Errorf("%w: payload %T", ErrUnknownMessage, msg.Data)}
	}
}
