package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func mockDriver(t *testing.T) (*DatabaseDriver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewDatabaseDriver(sqlx.NewDb(db, "postgres"), ""), mock
}

func TestDatabaseDriverWriteUpdatesExistingRow(t *testing.T) {
	d, mock := mockDriver(t)

	mock.ExpectExec("UPDATE razy_sessions SET data").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := d.Write("abc", map[string]any{"k": "v"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDatabaseDriverWriteInsertsWhenNoRowAffected(t *testing.T) {
	d, mock := mockDriver(t)

	mock.ExpectExec("UPDATE razy_sessions SET data").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO razy_sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := d.Write("abc", map[string]any{"k": "v"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDatabaseDriverReadDecodesPayload(t *testing.T) {
	d, mock := mockDriver(t)

	raw, _ := json.Marshal(map[string]any{"user": "carol"})
	mock.ExpectQuery("SELECT data FROM razy_sessions").
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(raw))

	data, err := d.Read("abc")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if data["user"] != "carol" {
		t.Errorf("user = %v, want carol", data["user"])
	}
}

func TestDatabaseDriverReadMissingIsEmpty(t *testing.T) {
	d, mock := mockDriver(t)

	mock.ExpectQuery("SELECT data FROM razy_sessions").
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	data, err := d.Read("abc")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("read of missing id = %v, want empty", data)
	}
}

func TestDatabaseDriverGC(t *testing.T) {
	d, mock := mockDriver(t)

	mock.ExpectExec("DELETE FROM razy_sessions WHERE last_activity").
		WillReturnResult(sqlmock.NewResult(0, 4))

	deleted, err := d.GC(time.Hour)
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	if deleted != 4 {
		t.Errorf("deleted = %d, want 4", deleted)
	}
}
