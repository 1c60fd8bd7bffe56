package syncmsg

import "fmt"

type MessageType uint16

const (
	MsgHello MessageType = iota + 1
	MsgProjectState
	MsgFileUpsert
	MsgFileDelete
	MsgDeleteAck
	MsgConflict
	MsgError
)

func (t MessageType) String() string {
	switch t {
	case MsgHello:
		return "HELLO"
	case MsgProjectState:
		return "PROJECT_STATE"
	case MsgFileUpsert:
		return "FILE_UPSERT"
	case MsgFileDelete:
		return "FILE_DELETE"
	case MsgDeleteAck:
		return "DELETE_ACK"
	case MsgConflict:
		return "CONFLICT"
	case MsgError:
		return "ERROR"
	default:
		return fmt.Sprintf("???(%d)", t)
	}
}

// Known reports whether t is one of the message types defined above.
func (t MessageType) Known() bool {
	return t >= MsgHello && t <= MsgError
}
