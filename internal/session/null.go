package session

import "time"

// NullDriver discards writes and returns empty reads. Used when sessions are
// disabled but middleware still expects a driver.
type NullDriver struct{}

// NewNullDriver creates a discarding session driver.
func NewNullDriver() *NullDriver { return &NullDriver{} }

func (*NullDriver) Open() error  { return nil }
func (*NullDriver) Close() error { return nil }

func (*NullDriver) Read(string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (*NullDriver) Write(string, map[string]any) error { return nil }
func (*NullDriver) Destroy(string) error               { return nil }
func (*NullDriver) GC(time.Duration) (int, error)      { return 0, nil }
