// Package api serves the ledger over HTTP with gin. It is the remote end of
// gateway.HTTPChannel.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/store"
)

// Ledger is what the HTTP surface needs from the executor.
// *engine.Engine satisfies it.
type Ledger interface {
	Submit(ctx context.Context, p ir.SignedPayload) (ir.Confirmation, error)
	Fetch(ctx context.Context, addr ir.Address) (ir.EmployeeRecord, error)
	List(ctx context.Context) ([]ir.RecordView, error)
	History(ctx context.Context, addr ir.Address, limit int) ([]store.Entry, error)
}

// Handler holds the route handlers.
type Handler struct {
	ledger Ledger
	logger *slog.Logger
}

// NewHandler creates a Handler. A nil logger means slog.Default().
func NewHandler(ledger Ledger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ledger: ledger, logger: logger}
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(ledger Ledger, logger *slog.Logger) *gin.Engine {
	h := NewHandler(ledger, logger)

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), h.logRequests())

	r.GET(PathHealth, h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/submit", h.Submit)
		v1.GET("/records", h.List)
		v1.GET("/records/:address", h.Get)
		v1.GET("/records/:address/history", h.History)
	}
	return r
}

// RequestID tags each request with the caller's X-Request-ID, or a fresh
// UUIDv7 when absent, and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (h *Handler) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"request_id", c.GetString("request_id"),
			"duration", time.Since(start),
		)
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: ir.EngineVersion})
}

// Submit applies one signed instruction.
func (h *Handler) Submit(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.fail(c, ir.WrapError(ir.CodeInvalidInstruction, "read body", err))
		return
	}
	p, err := ir.DecodeSignedPayload(body)
	if err != nil {
		h.fail(c, err)
		return
	}

	conf, err := h.ledger.Submit(c.Request.Context(), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SubmitResponse{Confirmation: conf})
}

// List returns every record in creation order.
func (h *Handler) List(c *gin.Context) {
	views, err := h.ledger.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Records: views})
}

// Get returns one record.
func (h *Handler) Get(c *gin.Context) {
	addr, ok := h.address(c)
	if !ok {
		return
	}
	rec, err := h.ledger.Fetch(c.Request.Context(), addr)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ir.RecordView{Address: addr, Record: rec})
}

// History returns a record's confirmations, oldest first. ?limit=N keeps
// only the last N.
func (h *Handler) History(c *gin.Context) {
	addr, ok := h.address(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.fail(c, ir.Errorf(ir.CodeInvalidInstruction, "invalid limit %q", raw))
			return
		}
		limit = n
	}

	entries, err := h.ledger.History(c.Request.Context(), addr, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Address: addr, Entries: entries})
}

func (h *Handler) address(c *gin.Context) (ir.Address, bool) {
	addr, err := ir.ParseAddress(c.Param("address"))
	if err != nil {
		h.fail(c, ir.WrapError(ir.CodeInvalidInstruction, "invalid address", err))
		return ir.Address{}, false
	}
	return addr, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	body := ErrorBody{Code: ir.CodeOf(err), Message: err.Error()}

	var e *ir.Error
	if errors.As(err, &e) {
		body.Message = e.Message
		if !e.Address.IsZero() {
			body.Address = e.Address.String()
		}
	} else {
		// Untyped errors are internal; their text stays in the log.
		h.logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
		body.Message = "internal error"
	}

	c.AbortWithStatusJSON(StatusFor(body.Code), ErrorResponse{Error: body})
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code ir.ErrorCode) int {
	switch code {
	case ir.CodeAddressAlreadyInUse, ir.CodeAlreadyClockedIn, ir.CodeNotClockedIn:
		return http.StatusConflict
	case ir.CodeRecordNotFound:
		return http.StatusNotFound
	case ir.CodeInvalidInstruction, ir.CodeMalformedSeed:
		return http.StatusBadRequest
	case ir.CodeChannelUnavailable:
		return http.StatusServiceUnavailable
	case ir.CodeIndeterminate:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
