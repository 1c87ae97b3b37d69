package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// DatabaseDriver persists sessions in a SQL table with the schema
// (id PRIMARY KEY, data, last_activity). Writes use the upsert pattern:
// UPDATE first, INSERT when no row was affected. The single-row statement is
// atomic, so concurrent readers observe either the pre- or post-state.
type DatabaseDriver struct {
	db    *sqlx.DB
	table string
}

// NewDatabaseDriver creates a database driver over an open sqlx handle.
// An empty table name defaults to "razy_sessions".
func NewDatabaseDriver(db *sqlx.DB, table string) *DatabaseDriver {
	if table == "" {
		table = "razy_sessions"
	}
	return &DatabaseDriver{db: db, table: table}
}

func (d *DatabaseDriver) Open() error {
	return d.db.Ping()
}

func (d *DatabaseDriver) Close() error {
	return d.db.Close()
}

func (d *DatabaseDriver) Read(id string) (map[string]any, error) {
	var raw []byte
	query := fmt.Sprintf("SELECT data FROM %s WHERE id = $1", d.table)
	if err := d.db.Get(&raw, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func (d *DatabaseDriver) Write(id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", id, err)
	}
	now := time.Now().Unix()

	update := fmt.Sprintf("UPDATE %s SET data = $1, last_activity = $2 WHERE id = $3", d.table)
	res, err := d.db.Exec(update, raw, now, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	insert := fmt.Sprintf("INSERT INTO %s (id, data, last_activity) VALUES ($1, $2, $3)", d.table)
	_, err = d.db.Exec(insert, id, raw, now)
	return err
}

func (d *DatabaseDriver) Destroy(id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", d.table)
	_, err := d.db.Exec(query, id)
	return err
}

func (d *DatabaseDriver) GC(maxLifetime time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxLifetime).Unix()
	query := fmt.Sprintf("DELETE FROM %s WHERE last_activity < $1", d.table)
	res, err := d.db.Exec(query, cutoff)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
