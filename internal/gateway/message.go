package gateway

import (
	"errors"
	"fmt"

	"github.com/roach88/punchcard/internal/ir"
)

var details = map[ir.ErrorCode]string{
	ir.CodeMalformedSeed:       "the seed must be a whole number between -2^127 and 2^127-1",
	ir.CodeAddressAlreadyInUse: "a record already exists for this seed",
	ir.CodeAlreadyClockedIn:    "you are already clocked in",
	ir.CodeNotClockedIn:        "that action needs a different shift state",
	ir.CodeRecordNotFound:      "no record exists here yet; initialize it first",
	ir.CodeChannelUnavailable:  "the ledger could not be reached and nothing was applied",
	ir.CodeIndeterminate:       "the ledger did not answer in time; check the record before retrying",
}

// Message renders err as one line for a person: the class summary followed
// by what happened.
func Message(err error) string {
	if err == nil {
		return ""
	}
	class := ir.Classify(err)

	var e *ir.Error
	if !errors.As(err, &e) {
		return fmt.Sprintf("%s: %v", class.Summary(), err)
	}
	detail, ok := details[e.Code]
	if !ok {
		detail = e.Message
	}
	return fmt.Sprintf("%s: %s", class.Summary(), detail)
}
