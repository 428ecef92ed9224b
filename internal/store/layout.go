package store

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/roach88/punchcard/internal/ir"
)

// RecordSize is the persisted record length: discriminator, active flag and
// six little-endian u64 clocks.
const RecordSize = 8 + 1 + 6*8

// Discriminator marks a blob as an EmployeeData record. It is the first
// eight bytes of SHA256("account:EmployeeData").
var Discriminator = [8]byte{166, 195, 110, 33, 71, 96, 75, 28}

// EncodeRecord serializes rec into the persisted layout. The state tag is
// stored separately; only the Active flag it implies is encoded here.
func EncodeRecord(rec ir.EmployeeRecord) []byte {
	buf := make([]byte, RecordSize)
	copy(buf[0:8], Discriminator[:])
	if rec.Active {
		buf[8] = 1
	}
	for i, c := range rec.Clocks() {
		off := 9 + i*8
		binary.LittleEndian.PutUint64(buf[off:off+8], c)
	}
	return buf
}

// DecodeRecord parses the persisted layout and attaches state.
// It fails if the blob is malformed or if its active flag disagrees with
// state.
func DecodeRecord(data []byte, state ir.State) (ir.EmployeeRecord, error) {
	if len(data) != RecordSize {
		return ir.EmployeeRecord{}, fmt.Errorf("decode record: got %d bytes, want %d", len(data), RecordSize)
	}
	if !bytes.Equal(data[0:8], Discriminator[:]) {
		return ir.EmployeeRecord{}, fmt.Errorf("decode record: discriminator mismatch %v", data[0:8])
	}
	if !state.Valid() {
		return ir.EmployeeRecord{}, fmt.Errorf("decode record: invalid state %d", int(state))
	}

	var active bool
	switch data[8] {
	case 0:
	case 1:
		active = true
	default:
		return ir.EmployeeRecord{}, fmt.Errorf("decode record: active byte %d is not a bool", data[8])
	}
	if active != (state != ir.OffShift) {
		return ir.EmployeeRecord{}, fmt.Errorf("decode record: active=%t contradicts state %s", active, state)
	}

	var c [6]uint64
	for i := range c {
		off := 9 + i*8
		c[i] = binary.LittleEndian.Uint64(data[off : off+8])
	}

	return ir.EmployeeRecord{
		State:                  state,
		Active:                 active,
		ShiftStartClock:        c[0],
		ShiftEndClock:          c[1],
		IntermittentStartClock: c[2],
		IntermittentEndClock:   c[3],
		LunchStartClock:        c[4],
		LunchEndClock:          c[5],
	}, nil
}
