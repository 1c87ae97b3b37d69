package csrf

import (
	"net/http/httptest"
	"testing"

	"github.com/razy-dev/razy/internal/session"
)

func testSession(t *testing.T) *session.Session {
	t.Helper()
	m := session.NewManager(session.NewMemoryDriver(), session.Config{})
	s, err := m.Start(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("session start: %v", err)
	}
	return s
}

func TestTokenIsStableWithinSession(t *testing.T) {
	m := NewManager(testSession(t))

	tok := m.Token()
	if tok == "" {
		t.Fatal("empty token")
	}
	if m.Token() != tok {
		t.Error("token changed between accesses")
	}
}

func TestValidate(t *testing.T) {
	m := NewManager(testSession(t))
	tok := m.Token()

	if !m.Validate(tok) {
		t.Error("valid token rejected")
	}
	if m.Validate("") {
		t.Error("empty token accepted")
	}
	if m.Validate(tok + "x") {
		t.Error("tampered token accepted")
	}
}

func TestValidateWithoutStoredToken(t *testing.T) {
	m := NewManager(testSession(t))
	if m.Validate("anything") {
		t.Error("validation passed with no stored token")
	}
}

func TestRegenerateInvalidatesOldToken(t *testing.T) {
	m := NewManager(testSession(t))

	old := m.Token()
	fresh := m.Regenerate()

	if fresh == old {
		t.Fatal("regenerate returned the old token")
	}
	if m.Validate(old) {
		t.Error("old token still validates after regenerate")
	}
	if !m.Validate(fresh) {
		t.Error("fresh token does not validate")
	}
}

func TestTokenStartsUnstartedSession(t *testing.T) {
	s := testSession(t)
	s.Save() // back to unstarted

	m := NewManager(s)
	if tok := m.Token(); tok == "" {
		t.Error("no token from transparently started session")
	}
	if !s.Started() {
		t.Error("session not started by token access")
	}
}
