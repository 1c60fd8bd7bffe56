package controlplane

import (
	"github.com/gin-gonic/gin"

	"github.com/framer/codelink/internal/conflict"
	"github.com/framer/codelink/internal/pending"
)

const (
	CodeOk              string = "OK"
	ErrCodeBadRequest   string = "ERR_BAD_REQUEST"
	ErrCodeNotFound     string = "ERR_NOT_FOUND"
	ErrCodeNotPending   string = "ERR_NOT_PENDING"
	ErrCodeNotRemote    string = "ERR_NOT_REMOTE_DELETE"
	ErrCodeNoConflict   string = "ERR_NO_CONFLICT"
	ErrCodeNotConnected string = "ERR_NOT_CONNECTED"
	ErrCodeRateLimited  string = "ERR_RATE_LIMITED"
	ErrCodeUnknownError string = "ERR_UNKNOWN_ERROR"
	ErrCodeNotAllowed   string = "ERR_METHOD_NOT_ALLOWED"
)

type Response struct {
	Code string `json:"code" yaml:"code"`
}

type Error struct {
	ErrorCode string `json:"code" yaml:"code"`
	Error     string `json:"error" yaml:"error"`
}

// PathRequest names one canonical project path.
type PathRequest struct {
	Path string `json:"path" binding:"required"`
}

type ConflictsResponse struct {
	Conflicts []conflict.Summary `json:"conflicts" yaml:"conflicts"`
}

type PendingResponse struct {
	Pending []pending.Delete `json:"pending" yaml:"pending"`
}

// PendingActionResponse echoes the pending delete that was confirmed or rejected.
type PendingActionResponse struct {
	Code   string         `json:"code" yaml:"code"`
	Delete pending.Delete `json:"delete" yaml:"delete"`
}

type DepsResponse struct {
	Packages []string            `json:"packages" yaml:"packages"`
	Files    map[string][]string `json:"files" yaml:"files"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(status, Error{
		ErrorCode: code,
		Error:     err.Error(),
	})
}
