package api

import (
	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/store"
)

// Paths served by NewRouter. HTTPChannel builds its URLs from these.
const (
	PathHealth  = "/health"
	PathSubmit  = "/api/v1/submit"
	PathRecords = "/api/v1/records"
)

// RequestIDHeader carries the per-request UUIDv7.
const RequestIDHeader = "X-Request-ID"

// SubmitResponse is the body of a successful POST /api/v1/submit.
type SubmitResponse struct {
	Confirmation ir.Confirmation `json:"confirmation"`
}

// ListResponse is the body of GET /api/v1/records.
type ListResponse struct {
	Records []ir.RecordView `json:"records"`
}

// HistoryResponse is the body of GET /api/v1/records/:address/history.
type HistoryResponse struct {
	Address ir.Address    `json:"address"`
	Entries []store.Entry `json:"entries"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorBody is the code and message of a failed request.
type ErrorBody struct {
	Code    ir.ErrorCode `json:"code"`
	Message string       `json:"message"`
	Address string       `json:"address,omitempty"`
}

// ErrorResponse wraps ErrorBody: {"error": {"code": ..., "message": ...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Err converts the body back into a typed error.
func (b ErrorBody) Err() *ir.Error {
	e := ir.NewError(b.Code, b.Message)
	if addr, err := ir.ParseAddress(b.Address); err == nil {
		e = e.WithAddress(addr)
	}
	return e
}
