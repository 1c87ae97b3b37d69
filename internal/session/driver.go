package session

import "time"

// Driver persists session payloads keyed by id. Read for an unknown id
// returns an empty map, not an error. Drivers must be safe for concurrent
// use by requests reading distinct ids; writing the same id concurrently is
// undefined at this level.
type Driver interface {
	Open() error
	Close() error
	Read(id string) (map[string]any, error)
	Write(id string, data map[string]any) error
	Destroy(id string) error
	GC(maxLifetime time.Duration) (int, error)
}
