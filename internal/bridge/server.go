package bridge

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/distributor"
	"github.com/razy-dev/razy/internal/logging"
)

// DefaultMaxSkew bounds how far an envelope timestamp may drift from the
// receiving clock before it is rejected.
const DefaultMaxSkew = 5 * time.Minute

// Handler serves inbound bridge calls for one distributor.
type Handler struct {
	dist    *distributor.Distributor
	maxSkew time.Duration
	now     func() time.Time
	record  func(code string)
}

// NewHandler creates the bridge endpoint handler.
func NewHandler(dist *distributor.Distributor) *Handler {
	return &Handler{dist: dist, maxSkew: DefaultMaxSkew, now: time.Now}
}

// Record observes each served call's result code ("" on success).
func (h *Handler) Record(fn func(code string)) {
	h.record = fn
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respond(w, http.StatusMethodNotAllowed, Response{
			Success: false, Error: "POST required", Code: CodeInternalError,
		})
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, Response{
			Success: false, Error: "malformed envelope", Code: CodeInternalError,
		})
		return
	}

	caller, err := distributor.ParseID(req.Caller)
	if err != nil {
		h.deny(w, req, "invalid caller id")
		return
	}

	if skew := h.now().Unix() - req.Timestamp; skew > int64(h.maxSkew.Seconds()) || -skew > int64(h.maxSkew.Seconds()) {
		h.deny(w, req, "timestamp out of range")
		return
	}

	if !Verify(h.dist.BridgeSecret(), &req) {
		h.deny(w, req, "signature mismatch")
		return
	}

	if !h.dist.Allows(caller) {
		h.deny(w, req, "caller not in allowlist")
		return
	}

	result, err := h.dist.Commands().ExecuteBridge(r.Context(), caller.String(), req.Module, req.Command, req.Args)
	if err != nil {
		logging.Warn("Bridge command failed",
			zap.String("caller", req.Caller),
			zap.String("module", req.Module),
			zap.String("command", req.Command),
			zap.Error(err))
		h.respond(w, http.StatusOK, Response{
			Success: false,
			Source:  h.dist.ID().String(),
			Error:   err.Error(),
			Code:    CodeFor(err),
		})
		return
	}

	h.respond(w, http.StatusOK, Response{
		Success: true,
		Source:  h.dist.ID().String(),
		Result:  result,
	})
}

func (h *Handler) deny(w http.ResponseWriter, req Request, reason string) {
	logging.Warn("Bridge call denied",
		zap.String("caller", req.Caller),
		zap.String("module", req.Module),
		zap.String("command", req.Command),
		zap.String("reason", reason))
	h.respond(w, http.StatusForbidden, Response{
		Success: false,
		Source:  h.dist.ID().String(),
		Error:   reason,
		Code:    CodeAccessDenied,
	})
}

func (h *Handler) respond(w http.ResponseWriter, status int, resp Response) {
	resp.Timestamp = h.now().Unix()
	if h.record != nil {
		h.record(resp.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
