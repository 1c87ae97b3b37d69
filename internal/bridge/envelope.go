// Package bridge carries signed cross-distributor command calls over HTTP
// or a subprocess hop.
package bridge

import (
	"errors"

	"github.com/razy-dev/razy/internal/module"
)

// DefaultPath is the reserved HTTP endpoint for bridge calls.
const DefaultPath = "/__internal/bridge"

// Wire error codes.
const (
	CodeModuleNotFound  = "MODULE_NOT_FOUND"
	CodeCommandNotFound = "COMMAND_NOT_FOUND"
	CodeAccessDenied    = "ACCESS_DENIED"
	CodeTimeout         = "TIMEOUT"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Request is the signed call envelope.
type Request struct {
	Caller    string `json:"caller"` // "code@tag"
	Module    string `json:"module"` // "vendor/name"
	Command   string `json:"command"`
	Args      []any  `json:"args"`
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"` // unix seconds
	Signature string `json:"signature"`
}

// Response is the call result envelope.
type Response struct {
	Success   bool   `json:"success"`
	Source    string `json:"source"` // answering distributor "code@tag"
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// CodeFor maps dispatch errors onto wire codes.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, module.ErrModuleNotFound):
		return CodeModuleNotFound
	case errors.Is(err, module.ErrCommandNotFound):
		return CodeCommandNotFound
	case errors.Is(err, module.ErrAccessDenied):
		return CodeAccessDenied
	}
	return CodeInternalError
}
