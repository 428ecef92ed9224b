package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"records", "confirmations"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 2")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version 2 is newer than supported version 1")
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestOpenMemory(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count))
	assert.Zero(t, count)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct{ name, want string }{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, s.verifyPragma(tt.name, tt.want))
		})
	}
}

func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)

	assert.ElementsMatch(t,
		[]string{"address", "state", "data", "created_seq", "updated_seq"},
		getTableColumns(t, s.db, "records"))
	assert.ElementsMatch(t,
		[]string{"token", "address", "kind", "transition", "state", "seq", "applied_at", "signer", "nonce", "payload_id"},
		getTableColumns(t, s.db, "confirmations"))
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "confirmations")
	for _, idx := range []string{"idx_confirmations_address_seq", "idx_confirmations_seq"} {
		assert.Contains(t, indexes, idx)
	}
	assert.NotContains(t, indexes, "idx_confirmations_payload")
	assert.Contains(t, getTableIndexes(t, s.db, "records"), "idx_records_created")
}

func TestSchema_RejectsWrongBlobSize(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO records (address, state, data, created_seq, updated_seq) VALUES ('x', 'off-shift', ?, 1, 1)`,
		make([]byte, 10))
	assert.Error(t, err, "CHECK(length(data) = 57)")
}
