package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/punchcard/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// initializeFn returns an ApplyFunc that creates a fresh record, or fails
// with CodeAddressAlreadyInUse when one exists.
func initializeFn(addr ir.Address, seq int64, token string) ApplyFunc {
	return func(cur ir.EmployeeRecord, found bool) (ir.EmployeeRecord, ir.Confirmation, error) {
		if found {
			return ir.EmployeeRecord{}, ir.Confirmation{}, ir.NewError(ir.CodeAddressAlreadyInUse, "exists")
		}
		return ir.EmployeeRecord{State: ir.OffShift}, ir.Confirmation{
			Token:   token,
			Address: addr,
			Kind:    ir.KindInitialize,
			Seq:     seq,
		}, nil
	}
}

// setFn returns an ApplyFunc that overwrites the record with next.
func setFn(addr ir.Address, next ir.EmployeeRecord, tr ir.Transition, seq int64, at uint64, token string) ApplyFunc {
	return func(cur ir.EmployeeRecord, found bool) (ir.EmployeeRecord, ir.Confirmation, error) {
		if !found {
			return ir.EmployeeRecord{}, ir.Confirmation{}, ir.NewError(ir.CodeRecordNotFound, "missing")
		}
		return next, ir.Confirmation{
			Token:      token,
			Address:    addr,
			Kind:       ir.KindTransition,
			Transition: tr,
			Seq:        seq,
			AppliedAt:  at,
		}, nil
	}
}

func step(addr ir.Address, nonce string) Step {
	return Step{Address: addr, Signer: ir.Address{0xAA}, Nonce: nonce, PayloadID: "payload-" + nonce}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
