package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/logging"
)

// Reserved attribute keys used to persist flash bookkeeping alongside
// ordinary attributes in one driver record.
const (
	keyFlashNew  = "__flash_new"
	keyFlashOld  = "__flash_old"
	keyFlashData = "__flash_data"
)

// Session is one client session. Not safe for sharing across requests.
type Session struct {
	id         string
	attributes map[string]any
	flashNew   map[string]struct{}
	flashOld   map[string]struct{}
	flashData  map[string]any
	started    bool
	fresh      bool
	driver     Driver
}

// newSession creates an unstarted session bound to a driver. An empty id
// means a fresh id is minted on Start.
func newSession(driver Driver, id string) *Session {
	return &Session{
		id:         id,
		attributes: make(map[string]any),
		flashNew:   make(map[string]struct{}),
		flashOld:   make(map[string]struct{}),
		flashData:  make(map[string]any),
		fresh:      id == "",
		driver:     driver,
	}
}

// IsNew reports whether the session was minted for this request rather than
// resumed from a client-presented id.
func (s *Session) IsNew() bool { return s.fresh }

// generateID returns a fresh 160-bit session id in hex.
func generateID() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("session: id generation: %v", err))
	}
	return hex.EncodeToString(buf)
}

// Start loads the session from the driver, minting a fresh id if needed.
// Reentrant Start is a no-op. Driver read errors are soft: the session
// starts empty and the error is logged.
func (s *Session) Start() error {
	if s.started {
		return nil
	}
	if s.id == "" {
		s.id = generateID()
	}

	data, err := s.driver.Read(s.id)
	if err != nil {
		logging.Error("Session read failed, starting empty",
			zap.String("session_id", s.id), zap.Error(err))
		data = nil
	}
	s.load(data)
	s.started = true
	return nil
}

// load splits a raw driver record into attributes and flash state.
func (s *Session) load(data map[string]any) {
	s.attributes = make(map[string]any, len(data))
	s.flashNew = make(map[string]struct{})
	s.flashOld = make(map[string]struct{})
	s.flashData = make(map[string]any)

	for k, v := range data {
		switch k {
		case keyFlashNew:
			for _, key := range toStringSlice(v) {
				s.flashNew[key] = struct{}{}
			}
		case keyFlashOld:
			for _, key := range toStringSlice(v) {
				s.flashOld[key] = struct{}{}
			}
		case keyFlashData:
			if m, ok := v.(map[string]any); ok {
				s.flashData = m
			}
		default:
			s.attributes[k] = v
		}
	}
}

// toStringSlice normalizes a decoded JSON array into []string.
func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Started reports whether the session is live.
func (s *Session) Started() bool { return s.started }

// ID returns the session id. Empty until first Start.
func (s *Session) ID() string { return s.id }

// Set stores an attribute.
func (s *Session) Set(key string, value any) {
	s.attributes[key] = value
}

// Get returns an attribute value.
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.attributes[key]
	return v, ok
}

// Has reports whether an attribute exists.
func (s *Session) Has(key string) bool {
	_, ok := s.attributes[key]
	return ok
}

// Remove deletes an attribute.
func (s *Session) Remove(key string) {
	delete(s.attributes, key)
}

// Attributes returns a copy of the attribute map.
func (s *Session) Attributes() map[string]any {
	out := make(map[string]any, len(s.attributes))
	for k, v := range s.attributes {
		out[k] = v
	}
	return out
}

// Flash stores a value that survives exactly one subsequent request.
func (s *Session) Flash(key string, value any) {
	s.flashNew[key] = struct{}{}
	delete(s.flashOld, key)
	s.flashData[key] = value
}

// GetFlash returns a flashed value.
func (s *Session) GetFlash(key string) (any, bool) {
	v, ok := s.flashData[key]
	return v, ok
}

// Reflash re-keeps all aged flash data for one more request.
func (s *Session) Reflash() {
	for k := range s.flashOld {
		s.flashNew[k] = struct{}{}
		delete(s.flashOld, k)
	}
}

// Keep re-keeps a subset of aged flash keys.
func (s *Session) Keep(keys ...string) {
	for _, k := range keys {
		if _, ok := s.flashOld[k]; ok {
			s.flashNew[k] = struct{}{}
			delete(s.flashOld, k)
		}
	}
}

// ageFlash purges old-generation flash data and promotes the new generation.
// Must run before every persist.
func (s *Session) ageFlash() {
	for k := range s.flashOld {
		delete(s.flashData, k)
	}
	s.flashOld = s.flashNew
	s.flashNew = make(map[string]struct{})
}

// snapshot merges attributes and flash state into one driver record.
func (s *Session) snapshot() map[string]any {
	data := make(map[string]any, len(s.attributes)+3)
	for k, v := range s.attributes {
		data[k] = v
	}
	data[keyFlashNew] = setToSlice(s.flashNew)
	data[keyFlashOld] = setToSlice(s.flashOld)
	data[keyFlashData] = s.flashData
	return data
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// Save ages flash data and persists the session, returning it to the
// unstarted state. Driver write errors are soft: logged, session state kept.
func (s *Session) Save() error {
	if !s.started {
		return nil
	}
	s.ageFlash()
	if err := s.driver.Write(s.id, s.snapshot()); err != nil {
		logging.Error("Session write failed",
			zap.String("session_id", s.id), zap.Error(err))
	}
	s.started = false
	return nil
}

// Destroy purges the driver record and clears the session.
func (s *Session) Destroy() error {
	if s.id != "" {
		if err := s.driver.Destroy(s.id); err != nil {
			logging.Error("Session destroy failed",
				zap.String("session_id", s.id), zap.Error(err))
		}
	}
	s.load(nil)
	s.started = false
	return nil
}

// Regenerate swaps in a fresh cryptographically random id. When destroyOld
// is true the old driver record is deleted before rewriting under the new id.
func (s *Session) Regenerate(destroyOld bool) error {
	old := s.id
	if destroyOld && old != "" {
		if err := s.driver.Destroy(old); err != nil {
			logging.Error("Session regenerate: destroy of old id failed",
				zap.String("session_id", old), zap.Error(err))
		}
	}
	s.id = generateID()
	return nil
}
