package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/punchcard/internal/ir"
)

// Step identifies one signed instruction being applied.
type Step struct {
	Address   ir.Address
	Signer    ir.Address
	Nonce     string
	PayloadID string
}

// ApplyFunc computes the outcome of a step from the current record.
// found is false when no record exists at the address. Returning an error
// aborts the step and nothing is written.
type ApplyFunc func(cur ir.EmployeeRecord, found bool) (next ir.EmployeeRecord, conf ir.Confirmation, err error)

// Entry is one journal row: a confirmation plus the record state it produced.
type Entry struct {
	Confirmation ir.Confirmation `json:"confirmation"`
	State        ir.State        `json:"state"`
}

// Apply runs one read, validate and write step for step.Address inside a
// single transaction. A replayed (signer, nonce) fails with
// CodeInvalidInstruction before fn is called.
func (s *Store) Apply(ctx context.Context, step Step, fn ApplyFunc) (ir.Confirmation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Confirmation{}, fmt.Errorf("apply: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var one int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM confirmations WHERE signer = ? AND nonce = ?
	`, step.Signer.String(), step.Nonce).Scan(&one)
	switch {
	case err == nil:
		return ir.Confirmation{}, ir.Errorf(ir.CodeInvalidInstruction, "duplicate nonce %q", step.Nonce).WithAddress(step.Address)
	case !errors.Is(err, sql.ErrNoRows):
		return ir.Confirmation{}, fmt.Errorf("apply: check nonce: %w", err)
	}

	cur, found, err := readRecord(ctx, tx, step.Address)
	if err != nil {
		return ir.Confirmation{}, fmt.Errorf("apply: %w", err)
	}

	next, conf, err := fn(cur, found)
	if err != nil {
		return ir.Confirmation{}, err
	}

	data := EncodeRecord(next)
	if found {
		_, err = tx.ExecContext(ctx, `
			UPDATE records SET state = ?, data = ?, updated_seq = ? WHERE address = ?
		`, next.State.String(), data, conf.Seq, step.Address.String())
	} else {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `
			INSERT INTO records (address, state, data, created_seq, updated_seq)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(address) DO NOTHING
		`, step.Address.String(), next.State.String(), data, conf.Seq, conf.Seq)
		if err == nil {
			if n, _ := res.RowsAffected(); n == 0 {
				return ir.Confirmation{}, ir.NewError(ir.CodeAddressAlreadyInUse, "a record already exists at this address").WithAddress(step.Address)
			}
		}
	}
	if err != nil {
		return ir.Confirmation{}, fmt.Errorf("apply: write record: %w", err)
	}

	transition := ""
	if conf.Transition != 0 {
		transition = conf.Transition.String()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO confirmations
		(token, address, kind, transition, state, seq, applied_at, signer, nonce, payload_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		conf.Token,
		step.Address.String(),
		string(conf.Kind),
		transition,
		next.State.String(),
		conf.Seq,
		int64(conf.AppliedAt),
		step.Signer.String(),
		step.Nonce,
		step.PayloadID,
	)
	if err != nil {
		return ir.Confirmation{}, fmt.Errorf("apply: append confirmation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ir.Confirmation{}, fmt.Errorf("apply: commit: %w", err)
	}
	return conf, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readRecord(ctx context.Context, q queryer, addr ir.Address) (ir.EmployeeRecord, bool, error) {
	var stateName string
	var data []byte
	err := q.QueryRowContext(ctx, `
		SELECT state, data FROM records WHERE address = ?
	`, addr.String()).Scan(&stateName, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.EmployeeRecord{}, false, nil
	}
	if err != nil {
		return ir.EmployeeRecord{}, false, fmt.Errorf("read record %s: %w", addr, err)
	}

	state, err := ir.ParseState(stateName)
	if err != nil {
		return ir.EmployeeRecord{}, false, fmt.Errorf("read record %s: %w", addr, err)
	}
	rec, err := DecodeRecord(data, state)
	if err != nil {
		return ir.EmployeeRecord{}, false, fmt.Errorf("read record %s: %w", addr, err)
	}
	return rec, true, nil
}

// ReadRecord returns the record at addr, or a CodeRecordNotFound error.
func (s *Store) ReadRecord(ctx context.Context, addr ir.Address) (ir.EmployeeRecord, error) {
	rec, found, err := readRecord(ctx, s.db, addr)
	if err != nil {
		return ir.EmployeeRecord{}, err
	}
	if !found {
		return ir.EmployeeRecord{}, ir.NewError(ir.CodeRecordNotFound, "no record at this address").WithAddress(addr)
	}
	return rec, nil
}

// List returns every record in creation order.
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) List(ctx context.Context) ([]ir.RecordView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, state, data FROM records
		ORDER BY created_seq ASC, address COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	views := []ir.RecordView{}
	for rows.Next() {
		var addrText, stateName string
		var data []byte
		if err := rows.Scan(&addrText, &stateName, &data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		addr, err := ir.ParseAddress(addrText)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		state, err := ir.ParseState(stateName)
		if err != nil {
			return nil, fmt.Errorf("scan record %s: %w", addr, err)
		}
		rec, err := DecodeRecord(data, state)
		if err != nil {
			return nil, fmt.Errorf("scan record %s: %w", addr, err)
		}
		views = append(views, ir.RecordView{Address: addr, Record: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return views, nil
}

// History returns the journal for addr, oldest first. A limit of zero or
// less returns every entry; otherwise only the most recent limit entries.
func (s *Store) History(ctx context.Context, addr ir.Address, limit int) ([]Entry, error) {
	query := `
		SELECT token, kind, transition, state, seq, applied_at FROM (
			SELECT * FROM confirmations WHERE address = ?
			ORDER BY seq DESC, token COLLATE BINARY DESC
			LIMIT ?
		)
		ORDER BY seq ASC, token COLLATE BINARY ASC
	`
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, query, addr.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			kind       string
			transition string
			stateName  string
			appliedAt  int64
		)
		if err := rows.Scan(&e.Confirmation.Token, &kind, &transition, &stateName, &e.Confirmation.Seq, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan confirmation: %w", err)
		}
		e.Confirmation.Address = addr
		e.Confirmation.Kind = ir.InstructionKind(kind)
		e.Confirmation.AppliedAt = uint64(appliedAt)
		if transition != "" {
			if e.Confirmation.Transition, err = ir.ParseTransition(transition); err != nil {
				return nil, fmt.Errorf("scan confirmation: %w", err)
			}
		}
		if e.State, err = ir.ParseState(stateName); err != nil {
			return nil, fmt.Errorf("scan confirmation: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate confirmations: %w", err)
	}
	return entries, nil
}

// LastSeq returns the highest journal seq, or 0 for an empty journal.
// The executor resumes its logical clock from here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM confirmations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}
