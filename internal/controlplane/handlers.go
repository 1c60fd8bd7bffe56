package controlplane

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gin-gonic/gin"

	"github.com/framer/codelink/internal/bridge"
	"github.com/framer/codelink/internal/conflict"
	"github.com/framer/codelink/internal/pending"
	"github.com/framer/codelink/internal/version"
)

const matchParam = "match"

// Bridge is the consumer surface the control plane exposes.
type Bridge interface {
	Status() bridge.Status
	Conflicts() []conflict.Summary
	Conflict(rel string) (conflict.Summary, bool)
	ResolveConflict(ctx context.Context, rel string) error
	PendingDeletes() []pending.Delete
	ConfirmDelete(ctx context.Context, rel string) (pending.Delete, error)
	RejectDelete(ctx context.Context, rel string) (pending.Delete, error)
	Dependencies() []string
	DependencyFiles() map[string][]string
}

type Handler struct {
	b Bridge
}

func NewHandler(b Bridge) *Handler {
	return &Handler{b: b}
}

func (h *Handler) Index(c *gin.Context) {
	c.PureJSON(http.StatusOK, version.Get())
}

func (h *Handler) Status(c *gin.Context) {
	c.PureJSON(http.StatusOK, h.b.Status())
}

// Conflicts lists every recorded conflict, or the one named by ?path=.
func (h *Handler) Conflicts(c *gin.Context) {
	if p := c.Query("path"); p != "" {
		s, ok := h.b.Conflict(p)
		if !ok {
			AbortWithError(c, http.StatusNotFound, ErrCodeNoConflict, fmt.Errorf("%w: %s", conflict.ErrNoConflict, p))
			return
		}
		c.PureJSON(http.StatusOK, s)
		return
	}

	match, ok := pathFilter(c)
	if !ok {
		return
	}
	list := []conflict.Summary{}
	for _, s := range h.b.Conflicts() {
		if match(s.Path) {
			list = append(list, s)
		}
	}
	c.PureJSON(http.StatusOK, ConflictsResponse{Conflicts: list})
}

func (h *Handler) ResolveConflict(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}
	if err := h.b.ResolveConflict(c.Request.Context(), req.Path); err != nil {
		abortWithBridgeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, Response{Code: CodeOk})
}

func (h *Handler) Pending(c *gin.Context) {
	match, ok := pathFilter(c)
	if !ok {
		return
	}
	list := []pending.Delete{}
	for _, d := range h.b.PendingDeletes() {
		if match(d.Path) {
			list = append(list, d)
		}
	}
	c.PureJSON(http.StatusOK, PendingResponse{Pending: list})
}

func (h *Handler) ConfirmDelete(c *gin.Context) {
	h.pendingAction(c, h.b.ConfirmDelete)
}

func (h *Handler) RejectDelete(c *gin.Context) {
	h.pendingAction(c, h.b.RejectDelete)
}

func (h *Handler) pendingAction(c *gin.Context, action func(context.Context, string) (pending.Delete, error)) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}
	d, err := action(c.Request.Context(), req.Path)
	if err != nil {
		abortWithBridgeError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, PendingActionResponse{Code: CodeOk, Delete: d})
}

// Deps lists the project's packages. With ?match= only the matching files
// and the packages they import are reported.
func (h *Handler) Deps(c *gin.Context) {
	match, ok := pathFilter(c)
	if !ok {
		return
	}

	if c.Query(matchParam) == "" {
		pkgs := h.b.Dependencies()
		if pkgs == nil {
			pkgs = []string{}
		}
		c.PureJSON(http.StatusOK, DepsResponse{Packages: pkgs, Files: h.b.DependencyFiles()})
		return
	}

	files := map[string][]string{}
	seen := map[string]struct{}{}
	for path, pkgs := range h.b.DependencyFiles() {
		if !match(path) {
			continue
		}
		files[path] = pkgs
		for _, p := range pkgs {
			seen[p] = struct{}{}
		}
	}
	pkgs := make([]string, 0, len(seen))
	for p := range seen {
		pkgs = append(pkgs, p)
	}
	slices.Sort(pkgs)
	c.PureJSON(http.StatusOK, DepsResponse{Packages: pkgs, Files: files})
}

// pathFilter reads the optional ?match= glob. On an invalid pattern the
// request is aborted and ok is false.
func pathFilter(c *gin.Context) (match func(string) bool, ok bool) {
	pattern := c.Query(matchParam)
	if pattern == "" {
		return func(string) bool { return true }, true
	}
	if !doublestar.ValidatePattern(pattern) {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("invalid match pattern %q", pattern))
		return nil, false
	}
	return func(path string) bool {
		ok, _ := doublestar.Match(pattern, path)
		return ok
	}, true
}

func abortWithBridgeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pending.ErrNotPending):
		AbortWithError(c, http.StatusNotFound, ErrCodeNotPending, err)
	case errors.Is(err, bridge.ErrNotRemoteDelete):
		AbortWithError(c, http.StatusConflict, ErrCodeNotRemote, err)
	case errors.Is(err, conflict.ErrNoConflict):
		AbortWithError(c, http.StatusNotFound, ErrCodeNoConflict, err)
	case errors.Is(err, bridge.ErrNotConnected):
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeNotConnected, err)
	case errors.Is(err, bridge.ErrRejectedPath):
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
	default:
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
	}
}
