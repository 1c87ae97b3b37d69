package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/razy-dev/razy/internal/distributor"
)

// StdinSentinel replaces the args argv slot when the payload moves to stdin.
const StdinSentinel = "-"

// CallerEnv carries the calling distributor's id to the child process.
const CallerEnv = "RAZY_BRIDGE_CALLER"

// maxArgvPayload is the largest args JSON passed on the command line.
// Bigger payloads stream over stdin to stay clear of OS argv limits.
const maxArgvPayload = 32 * 1024

// Subprocess invokes a distributor that has no bound host by spawning the
// runtime binary: `<binary> bridge <target@tag> <module> <command> <args>`.
// The child answers with a single JSON response document on stdout.
type Subprocess struct {
	caller  distributor.ID
	binary  string
	timeout time.Duration
	now     func() time.Time
}

// NewSubprocess creates a subprocess transport identifying as caller. An
// empty binary means the current executable.
func NewSubprocess(caller distributor.ID, binary string, timeout time.Duration) *Subprocess {
	if binary == "" {
		if exe, err := os.Executable(); err == nil {
			binary = exe
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Subprocess{caller: caller, binary: binary, timeout: timeout, now: time.Now}
}

// Call spawns the child and decodes its stdout. The child is killed when the
// deadline passes, yielding a TIMEOUT response.
func (s *Subprocess) Call(ctx context.Context, target distributor.ID, moduleCode, command string, args []any) (*Response, error) {
	if args == nil {
		args = []any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("bridge subprocess: encode args: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	argsArg := string(payload)
	var stdin *bytes.Reader
	if len(payload) > maxArgvPayload {
		argsArg = StdinSentinel
		stdin = bytes.NewReader(payload)
	}

	cmd := exec.CommandContext(ctx, s.binary, "bridge", target.String(), moduleCode, command, argsArg)
	cmd.Env = append(os.Environ(), CallerEnv+"="+s.caller.String())
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &Response{
				Success:   false,
				Source:    target.String(),
				Error:     "bridge subprocess timed out",
				Code:      CodeTimeout,
				Timestamp: s.now().Unix(),
			}, nil
		}
		return nil, fmt.Errorf("bridge subprocess: %w (stderr: %s)", err, stderr.String())
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("bridge subprocess: decode stdout: %w", err)
	}
	return &resp, nil
}

// ReadChildArgs decodes the args argument handed to a bridge child process,
// following the stdin sentinel when present.
func ReadChildArgs(argsArg string, stdin *os.File) ([]any, error) {
	var raw []byte
	if argsArg == StdinSentinel {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(stdin); err != nil {
			return nil, fmt.Errorf("bridge child: read stdin: %w", err)
		}
		raw = buf.Bytes()
	} else {
		raw = []byte(argsArg)
	}

	var args []any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("bridge child: decode args: %w", err)
	}
	return args, nil
}
