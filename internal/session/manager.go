package session

import (
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/logging"
)

// Config mirrors the session block of the runtime configuration.
type Config struct {
	Name          string        `yaml:"name"`
	Lifetime      time.Duration `yaml:"lifetime"`
	Path          string        `yaml:"path"`
	Domain        string        `yaml:"domain"`
	Secure        bool          `yaml:"secure"`
	HTTPOnly      bool          `yaml:"http_only"`
	SameSite      string        `yaml:"same_site"`
	GCMaxLifetime time.Duration `yaml:"gc_max_lifetime"`
	GCProbability int           `yaml:"gc_probability"`
	GCDivisor     int           `yaml:"gc_divisor"`
}

// withDefaults fills zero fields with the documented defaults.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "RAZY_SESSION"
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.GCMaxLifetime == 0 {
		c.GCMaxLifetime = 24 * time.Hour
	}
	if c.GCProbability == 0 {
		c.GCProbability = 1
	}
	if c.GCDivisor == 0 {
		c.GCDivisor = 100
	}
	return c
}

var validID = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Manager ties sessions to HTTP cookies and runs probabilistic GC.
type Manager struct {
	driver Driver
	cfg    Config
	gcRoll func() bool
}

// NewManager creates a session manager over a driver.
func NewManager(driver Driver, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{driver: driver, cfg: cfg}
	m.gcRoll = func() bool {
		return rand.Intn(m.cfg.GCDivisor) < m.cfg.GCProbability
	}
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// Driver returns the underlying driver.
func (m *Manager) Driver() Driver { return m.driver }

// Start resolves the request's session cookie (minting one if absent or
// invalid), starts the session, and writes the cookie. With probability
// gc_probability/gc_divisor it also collects expired driver records.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request) (*Session, error) {
	id := ""
	if cookie, err := r.Cookie(m.cfg.Name); err == nil && validID.MatchString(cookie.Value) {
		id = cookie.Value
	}

	s := newSession(m.driver, id)
	if err := s.Start(); err != nil {
		return nil, err
	}

	m.WriteCookie(w, s.ID())

	if m.gcRoll() {
		if deleted, err := m.driver.GC(m.cfg.GCMaxLifetime); err != nil {
			logging.Warn("Session GC failed", zap.Error(err))
		} else if deleted > 0 {
			logging.Debug("Session GC", zap.Int("deleted", deleted))
		}
	}

	return s, nil
}

// WriteCookie sets the session cookie for the given id.
func (m *Manager) WriteCookie(w http.ResponseWriter, id string) {
	cookie := &http.Cookie{
		Name:     m.cfg.Name,
		Value:    id,
		Path:     m.cfg.Path,
		Domain:   m.cfg.Domain,
		Secure:   m.cfg.Secure,
		HttpOnly: m.cfg.HTTPOnly,
		SameSite: parseSameSite(m.cfg.SameSite),
	}
	if m.cfg.Lifetime > 0 {
		cookie.MaxAge = int(m.cfg.Lifetime.Seconds())
	}
	http.SetCookie(w, cookie)
}

// ExpireCookie clears the session cookie on the response.
func (m *Manager) ExpireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   m.cfg.Name,
		Value:  "",
		Path:   m.cfg.Path,
		Domain: m.cfg.Domain,
		MaxAge: -1,
	})
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax", "":
		return http.SameSiteLaxMode
	}
	return http.SameSiteLaxMode
}
