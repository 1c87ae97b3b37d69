package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/razy-dev/razy/internal/distributor"
)

// DefaultTimeout bounds one bridge call end to end, retries included.
const DefaultTimeout = 30 * time.Second

// Client issues outbound HTTP bridge calls on behalf of one distributor.
type Client struct {
	caller  distributor.ID
	secret  string
	http    *http.Client
	timeout time.Duration
	path    string
	now     func() time.Time
}

// ClientOption adjusts a Client.
type ClientOption func(*Client)

// WithTimeout overrides the per-call deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithPath overrides the target's bridge endpoint path.
func WithPath(path string) ClientOption {
	return func(c *Client) { c.path = path }
}

// NewClient creates a bridge client identifying as caller, signing with the
// target's shared secret.
func NewClient(caller distributor.ID, secret string, opts ...ClientOption) *Client {
	c := &Client{
		caller:  caller,
		secret:  secret,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		path:    DefaultPath,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call POSTs a signed envelope to the target's bridge endpoint. Transient
// transport failures and 5xx responses are retried with exponential backoff
// until the deadline; a deadline hit yields a TIMEOUT response.
func (c *Client) Call(ctx context.Context, baseURL, moduleCode, command string, args []any) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := Request{
		Caller:    c.caller.String(),
		Module:    moduleCode,
		Command:   command,
		Args:      args,
		Nonce:     uuid.New().String(),
		Timestamp: c.now().Unix(),
	}
	if err := Sign(c.secret, &req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("bridge call: encode: %w", err)
	}
	url := strings.TrimRight(baseURL, "/") + c.path

	var resp *Response
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := c.http.Do(httpReq)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= 500 {
			return fmt.Errorf("bridge call: target returned %d", httpResp.StatusCode)
		}

		var decoded Response
		if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("bridge call: decode: %w", err))
		}
		resp = &decoded
		return nil
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return &Response{
				Success:   false,
				Error:     "bridge call timed out",
				Code:      CodeTimeout,
				Timestamp: c.now().Unix(),
			}, nil
		}
		return nil, err
	}
	return resp, nil
}
