package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const filePrefix = "sess_"

// FileDriver persists sessions as one JSON file per id. Writes are atomic:
// a temp file in the session directory is renamed over the target, so the
// rename never crosses filesystems and readers observe either the prior or
// the new payload, never a torn one.
type FileDriver struct {
	dir string
}

// NewFileDriver creates a file driver rooted at dir.
func NewFileDriver(dir string) *FileDriver {
	return &FileDriver{dir: dir}
}

func (d *FileDriver) Open() error {
	return os.MkdirAll(d.dir, 0o700)
}

func (d *FileDriver) Close() error { return nil }

// path maps an id to its session file, rejecting ids that could escape dir.
func (d *FileDriver) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\.") {
		return "", fmt.Errorf("session: invalid id %q", id)
	}
	return filepath.Join(d.dir, filePrefix+id), nil
}

func (d *FileDriver) Read(id string) (map[string]any, error) {
	p, err := d.path(id)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return data, nil
}

func (d *FileDriver) Write(id string, data map[string]any) error {
	p, err := d.path(id)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(d.dir, filePrefix+"*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (d *FileDriver) Destroy(id string) error {
	p, err := d.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (d *FileDriver) GC(maxLifetime time.Duration) (int, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxLifetime)
	deleted := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, filePrefix) || strings.HasSuffix(name, ".tmp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(d.dir, name)); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}
