package transport

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/framer/codelink/internal/version"
	"github.com/framer/codelink/internal/wsproto"
)

const (
	DefaultDialTimeout = 10 * time.Second
	reconnectDelay     = 500 * time.Millisecond
	maxReconnectDelay  = 8 * time.Second
)

type DialOptions struct {
	URL     string
	ShortID string
	Conn    ConnOptions
}

// Dial connects to a sync server. The connection lives until ctx is done or it is closed,
// and uses the encoding the server picked.
func Dial(ctx context.Context, opts DialOptions) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, DefaultDialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set(HeaderEncodings, opts.Conn.Encoding.String())
	header.Set(HeaderProject, opts.ShortID)
	header.Set(HeaderVersion, version.Version)

	ws, resp, err := websocket.Dial(dialCtx, opts.URL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, fmt.Errorf("dial %s: %w", opts.URL, ErrProjectMismatch)
		}
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}

	connOpts := opts.Conn
	connOpts.Remote = opts.URL
	if resp != nil {
		if enc := resp.Header.Get(HeaderEncoding); enc != "" {
			connOpts.Encoding = wsproto.PreferredEncoding(enc)
		}
	}

	conn := newConn(ws, connOpts)
	conn.start(ctx)
	slog.Info("sync client connected", "url", opts.URL, "encoding", connOpts.Encoding)
	return conn, nil
}

// Backoff produces growing, jittered reconnect delays.
type Backoff struct {
	delay time.Duration
}

// Next returns the delay to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.delay == 0 {
		b.delay = reconnectDelay
		return b.delay
	}
	b.delay = min(b.delay*2, maxReconnectDelay)
	jitter := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(b.delay) * jitter)
}

func (b *Backoff) Reset() {
	b.delay = 0
}
