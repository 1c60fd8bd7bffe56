package syncmsg

const (
	CodeMalformed    = 400
	CodeMismatch     = 409
	CodeWriteFailed  = 500
	CodeNameRejected = 422
)

type Error struct {
	Code    int    `json:"cod"`
	Path    string `json:"pth,omitempty"`
	Message string `json:"msg"`
}

func (*Error) MessageType() MessageType { return MsgError }

func (*Error) validate() error { return nil }

func NewError(code int, path string, msg string) *Message {
	return newMessage(&Error{
		Code:    code,
		Path:    path,
		Message: msg,
	})
}
