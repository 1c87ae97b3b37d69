// Package csrf issues and validates per-session CSRF tokens.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"github.com/razy-dev/razy/internal/session"
)

// TokenKey is the reserved session attribute holding the token.
const TokenKey = "__csrf_token"

const tokenBytes = 32

// Manager issues, rotates, and validates tokens for one session. If the
// session is not started when queried, the manager starts it transparently.
type Manager struct {
	session *session.Session
}

// NewManager creates a token manager bound to a session.
func NewManager(s *session.Session) *Manager {
	return &Manager{session: s}
}

func generateToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("csrf: token generation: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// Token returns the session's token, generating one on first access.
func (m *Manager) Token() string {
	m.ensureStarted()
	if v, ok := m.session.Get(TokenKey); ok {
		if tok, ok := v.(string); ok && tok != "" {
			return tok
		}
	}
	tok := generateToken()
	m.session.Set(TokenKey, tok)
	return tok
}

// Validate reports whether submitted equals the stored token under a
// constant-time comparator. A missing stored token never validates.
func (m *Manager) Validate(submitted string) bool {
	m.ensureStarted()
	v, ok := m.session.Get(TokenKey)
	if !ok {
		return false
	}
	stored, ok := v.(string)
	if !ok || stored == "" || submitted == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

// Regenerate discards and replaces the token.
func (m *Manager) Regenerate() string {
	m.ensureStarted()
	tok := generateToken()
	m.session.Set(TokenKey, tok)
	return tok
}

func (m *Manager) ensureStarted() {
	if !m.session.Started() {
		m.session.Start()
	}
}
