package bridge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// canonicalArgs produces the byte form the signature covers. encoding/json
// sorts map keys, so equal argument values always serialize identically.
func canonicalArgs(args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return json.Marshal(args)
}

// sign computes the hex HMAC-SHA256 of the envelope's identifying fields
// under the shared secret.
func sign(secret string, caller, moduleCode, command string, args []any, nonce string, timestamp int64) (string, error) {
	payload, err := canonicalArgs(args)
	if err != nil {
		return "", fmt.Errorf("bridge signature: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(caller))
	mac.Write([]byte(moduleCode))
	mac.Write([]byte(command))
	mac.Write(payload)
	mac.Write([]byte(nonce))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Sign fills in the request's signature field.
func Sign(secret string, req *Request) error {
	sig, err := sign(secret, req.Caller, req.Module, req.Command, req.Args, req.Nonce, req.Timestamp)
	if err != nil {
		return err
	}
	req.Signature = sig
	return nil
}

// Verify recomputes the signature and compares in constant time.
func Verify(secret string, req *Request) bool {
	want, err := sign(secret, req.Caller, req.Module, req.Command, req.Args, req.Nonce, req.Timestamp)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(req.Signature))
}
