package session

import (
	"sync"
	"time"
)

// MemoryDriver keeps sessions in process memory. Intended for tests and
// single-process development setups.
type MemoryDriver struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	nowFn   func() time.Time
}

type memoryRecord struct {
	data         map[string]any
	lastActivity time.Time
}

// NewMemoryDriver creates an in-memory session driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		records: make(map[string]memoryRecord),
		nowFn:   time.Now,
	}
}

// SetClock overrides the driver's time source. Pass nil to restore time.Now.
func (d *MemoryDriver) SetClock(fn func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fn == nil {
		fn = time.Now
	}
	d.nowFn = fn
}

func (d *MemoryDriver) Open() error  { return nil }
func (d *MemoryDriver) Close() error { return nil }

func (d *MemoryDriver) Read(id string) (map[string]any, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.records[id]
	if !ok {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(rec.data))
	for k, v := range rec.data {
		out[k] = v
	}
	return out, nil
}

func (d *MemoryDriver) Write(id string, data map[string]any) error {
	cp := make(map[string]any, len(data))
	for k, v := range data {
		cp[k] = v
	}

	d.mu.Lock()
	d.records[id] = memoryRecord{data: cp, lastActivity: d.nowFn()}
	d.mu.Unlock()
	return nil
}

func (d *MemoryDriver) Destroy(id string) error {
	d.mu.Lock()
	delete(d.records, id)
	d.mu.Unlock()
	return nil
}

func (d *MemoryDriver) GC(maxLifetime time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.nowFn().Add(-maxLifetime)
	deleted := 0
	for id, rec := range d.records {
		if rec.lastActivity.Before(cutoff) {
			delete(d.records, id)
			deleted++
		}
	}
	return deleted, nil
}
