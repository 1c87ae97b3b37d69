package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/razy-dev/razy/internal/distributor"
)

// Endpoint describes how to reach a remote distributor over HTTP.
type Endpoint struct {
	BaseURL string
	Secret  string
	// Path overrides the bridge endpoint path; empty means DefaultPath.
	Path string
}

// Connector is the caller-side bridge façade. It picks the transport per
// target: HTTP when the target has a bound host, subprocess otherwise.
type Connector struct {
	caller  distributor.ID
	binary  string
	timeout time.Duration
	record  func(transport, code string)
	httpOpt []ClientOption

	mu        sync.RWMutex
	endpoints map[distributor.ID]Endpoint
}

// ConnectorOption adjusts a Connector.
type ConnectorOption func(*Connector)

// WithBinary sets the runtime binary spawned for subprocess calls. Empty
// means the current executable.
func WithBinary(binary string) ConnectorOption {
	return func(c *Connector) { c.binary = binary }
}

// WithCallTimeout bounds each outbound call, both transports.
func WithCallTimeout(d time.Duration) ConnectorOption {
	return func(c *Connector) { c.timeout = d }
}

// WithRecorder observes each call's transport and result code.
func WithRecorder(fn func(transport, code string)) ConnectorOption {
	return func(c *Connector) { c.record = fn }
}

// WithClientOptions forwards options to the HTTP clients the connector builds.
func WithClientOptions(opts ...ClientOption) ConnectorOption {
	return func(c *Connector) { c.httpOpt = opts }
}

// NewConnector creates a connector identifying as caller.
func NewConnector(caller distributor.ID, opts ...ConnectorOption) *Connector {
	c := &Connector{
		caller:    caller,
		timeout:   DefaultTimeout,
		endpoints: make(map[distributor.ID]Endpoint),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEndpoint binds a target distributor to an HTTP endpoint. Targets with
// no endpoint, or with an empty base URL, fall back to the subprocess
// transport.
func (c *Connector) SetEndpoint(target distributor.ID, ep Endpoint) {
	c.mu.Lock()
	c.endpoints[target] = ep
	c.mu.Unlock()
}

// Call invokes a command on the target distributor over the selected
// transport. Transport-level failures surface as errors; target-side
// failures come back inside the response envelope.
func (c *Connector) Call(ctx context.Context, target distributor.ID, moduleCode, command string, args []any) (*Response, error) {
	c.mu.RLock()
	ep, bound := c.endpoints[target]
	c.mu.RUnlock()

	if bound && ep.BaseURL != "" {
		resp, err := c.callHTTP(ctx, ep, moduleCode, command, args)
		c.recordCall("http", resp, err)
		return resp, err
	}

	resp, err := NewSubprocess(c.caller, c.binary, c.timeout).Call(ctx, target, moduleCode, command, args)
	c.recordCall("subprocess", resp, err)
	return resp, err
}

func (c *Connector) callHTTP(ctx context.Context, ep Endpoint, moduleCode, command string, args []any) (*Response, error) {
	opts := append([]ClientOption{WithTimeout(c.timeout)}, c.httpOpt...)
	if ep.Path != "" {
		opts = append(opts, WithPath(ep.Path))
	}
	return NewClient(c.caller, ep.Secret, opts...).Call(ctx, ep.BaseURL, moduleCode, command, args)
}

func (c *Connector) recordCall(transport string, resp *Response, err error) {
	if c.record == nil {
		return
	}
	code := CodeInternalError
	if err == nil && resp != nil {
		code = resp.Code
	}
	c.record(transport, code)
}
