package controlplane

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/imroc/req/v3"

	"github.com/framer/codelink/internal/bridge"
	"github.com/framer/codelink/internal/conflict"
	"github.com/framer/codelink/internal/version"
)

const (
	clientTimeout    = 10 * time.Second
	clientRetryCount = 2
	clientRetryDelay = 250 * time.Millisecond
)

var UserAgent = fmt.Sprintf("codelink/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// APIError is an error response of the control plane.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("control plane: %s (%d): %s", e.Code, e.Status, e.Message)
}

// Client talks to the control plane of a running bridge.
type Client struct {
	client *req.Client
}

// NewClient accepts "host:port" or a full http URL.
func NewClient(addr string) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		client: req.C().
			SetBaseURL(base).
			SetTimeout(clientTimeout).
			SetCommonRetryCount(clientRetryCount).
			SetCommonRetryFixedInterval(clientRetryDelay).
			SetUserAgent(UserAgent).
			SetCommonErrorResult(&APIError{}).
			SetJsonMarshal(jsonMarshal).
			SetJsonUnmarshal(jsonUnmarshal),
	}
}

func (c *Client) Status(ctx context.Context) (*bridge.Status, error) {
	var st bridge.Status
	res, err := c.client.R().SetContext(ctx).SetSuccessResult(&st).Get("/v1/status")
	if err := handleAPIError(res, err, "status"); err != nil {
		return nil, err
	}
	return &st, nil
}

// Conflicts lists conflicts, restricted to paths matching the glob match when it is not empty.
func (c *Client) Conflicts(ctx context.Context, match string) ([]conflict.Summary, error) {
	var resp ConflictsResponse
	res, err := c.list(ctx, match).SetSuccessResult(&resp).Get("/v1/conflicts")
	if err := handleAPIError(res, err, "conflicts"); err != nil {
		return nil, err
	}
	return resp.Conflicts, nil
}

func (c *Client) Conflict(ctx context.Context, path string) (*conflict.Summary, error) {
	var s conflict.Summary
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetSuccessResult(&s).
		Get("/v1/conflicts")
	if err := handleAPIError(res, err, "conflict"); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ResolveConflict(ctx context.Context, path string) error {
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(&PathRequest{Path: path}).
		Post("/v1/conflicts/resolve")
	return handleAPIError(res, err, "resolve conflict")
}

func (c *Client) Pending(ctx context.Context, match string) (*PendingResponse, error) {
	var resp PendingResponse
	res, err := c.list(ctx, match).SetSuccessResult(&resp).Get("/v1/pending")
	if err := handleAPIError(res, err, "pending"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ConfirmDelete(ctx context.Context, path string) (*PendingActionResponse, error) {
	return c.pendingAction(ctx, "/v1/pending/confirm", path)
}

func (c *Client) RejectDelete(ctx context.Context, path string) (*PendingActionResponse, error) {
	return c.pendingAction(ctx, "/v1/pending/reject", path)
}

func (c *Client) pendingAction(ctx context.Context, url, path string) (*PendingActionResponse, error) {
	var resp PendingActionResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(&PathRequest{Path: path}).
		SetSuccessResult(&resp).
		Post(url)
	if err := handleAPIError(res, err, url); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Deps(ctx context.Context, match string) (*DepsResponse, error) {
	var resp DepsResponse
	res, err := c.list(ctx, match).SetSuccessResult(&resp).Get("/v1/deps")
	if err := handleAPIError(res, err, "deps"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) list(ctx context.Context, match string) *req.Request {
	r := c.client.R().SetContext(ctx)
	if match != "" {
		r.SetQueryParam(matchParam, match)
	}
	return r
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("control plane %s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Code != "" {
			apiErr.Status = resp.StatusCode
			return apiErr
		}
		return fmt.Errorf("control plane %s: unexpected status %s", operation, resp.Status)
	}
	return nil
}
