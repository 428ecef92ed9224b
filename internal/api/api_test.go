package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/punchcard/internal/engine"
	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/pda"
	"github.com/roach88/punchcard/internal/store"
	"github.com/roach88/punchcard/internal/testutil"
	"github.com/roach88/punchcard/internal/wallet"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	t      *testing.T
	router *gin.Engine
	signer *wallet.Keypair
	nonces *testutil.SequentialNonces
}

func newServer(t *testing.T) *server {
	t.Helper()

	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.DiscardHandler)
	eng := engine.New(s,
		engine.WithTimeSource(testutil.NewSteppingTime(testutil.DefaultEpoch, time.Minute)),
		engine.WithLogger(logger),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &server{
		t:      t,
		router: NewRouter(eng, logger),
		signer: wallet.MustFromSeed(bytes.Repeat([]byte{5}, 32)),
		nonces: testutil.NewSequentialNonces("api"),
	}
}

func (s *server) do(method, path string, body []byte) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) payload(in ir.Instruction) []byte {
	s.t.Helper()
	msg, err := in.SigningBytes()
	require.NoError(s.t, err)
	sig, err := s.signer.Sign(msg)
	require.NoError(s.t, err)
	data, err := json.Marshal(ir.SignedPayload{Instruction: in, Signature: sig})
	require.NoError(s.t, err)
	return data
}

func (s *server) initialize(seed int64) ir.Address {
	s.t.Helper()
	addr := pda.MustDerive(ir.SeedFromInt64(seed))
	w := s.do(http.MethodPost, PathSubmit, s.payload(ir.NewInitialize(ir.SeedFromInt64(seed), addr, s.signer.Address(), s.nonces.Generate())))
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return addr
}

func (s *server) transition(addr ir.Address, t ir.Transition) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, PathSubmit, s.payload(ir.NewTransition(addr, t, s.signer.Address(), s.nonces.Generate())))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodGet, PathHealth, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ir.EngineVersion, resp.Version)
}

func TestSubmitAndGet(t *testing.T) {
	s := newServer(t)
	addr := s.initialize(1)

	w := s.transition(addr, ir.ClockIn)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sub SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, ir.ClockIn, sub.Confirmation.Transition)
	assert.Equal(t, addr, sub.Confirmation.Address)

	w = s.do(http.MethodGet, PathRecords+"/"+addr.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view ir.RecordView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, addr, view.Address)
	assert.Equal(t, ir.OnShift, view.Record.State)
	assert.True(t, view.Record.Active)
	assert.Equal(t, sub.Confirmation.AppliedAt, view.Record.ShiftStartClock)
}

func TestSubmitErrors(t *testing.T) {
	s := newServer(t)
	addr := s.initialize(2)

	t.Run("domain rejection is 409", func(t *testing.T) {
		w := s.transition(addr, ir.ClockOut)
		assert.Equal(t, http.StatusConflict, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, ir.CodeNotClockedIn, body.Code)
		assert.Equal(t, addr.String(), body.Address)
	})

	t.Run("initialize twice is 409", func(t *testing.T) {
		w := s.do(http.MethodPost, PathSubmit, s.payload(ir.NewInitialize(ir.SeedFromInt64(2), addr, s.signer.Address(), "again")))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, ir.CodeAddressAlreadyInUse, decodeError(t, w).Code)
	})

	t.Run("missing record is 404", func(t *testing.T) {
		w := s.transition(pda.MustDerive(ir.SeedFromInt64(404)), ir.ClockIn)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, ir.CodeRecordNotFound, decodeError(t, w).Code)
	})

	t.Run("caller timestamp is refused", func(t *testing.T) {
		var doc map[string]any
		require.NoError(t, json.Unmarshal(s.payload(ir.NewTransition(addr, ir.ClockIn, s.signer.Address(), "ts")), &doc))
		doc["instruction"].(map[string]any)["timestamp"] = 1
		data, err := json.Marshal(doc)
		require.NoError(t, err)

		w := s.do(http.MethodPost, PathSubmit, data)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ir.CodeInvalidInstruction, decodeError(t, w).Code)
	})

	t.Run("garbage body is 400", func(t *testing.T) {
		w := s.do(http.MethodPost, PathSubmit, []byte("{"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w := s.do(http.MethodGet, PathRecords+"/"+addr.String(), nil)
	var view ir.RecordView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, ir.OffShift, view.Record.State, "no error path changed the record")
}

func TestGetErrors(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, PathRecords+"/"+pda.MustDerive(ir.SeedFromInt64(9)).String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, PathRecords+"/not-base58!", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ir.CodeInvalidInstruction, decodeError(t, w).Code)
}

func TestListAndHistory(t *testing.T) {
	s := newServer(t)
	a := s.initialize(10)
	b := s.initialize(11)
	for _, tr := range []ir.Transition{ir.ClockIn, ir.LunchIn, ir.LunchOut} {
		require.Equal(t, http.StatusOK, s.transition(a, tr).Code)
	}

	w := s.do(http.MethodGet, PathRecords, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Records, 2)
	assert.Equal(t, a, list.Records[0].Address)
	assert.Equal(t, b, list.Records[1].Address)

	w = s.do(http.MethodGet, PathRecords+"/"+a.String()+"/history?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Entries, 2)
	assert.Equal(t, ir.LunchIn, hist.Entries[0].Confirmation.Transition)
	assert.Equal(t, ir.LunchOut, hist.Entries[1].Confirmation.Transition)
	assert.Equal(t, ir.OnShift, hist.Entries[1].State)

	w = s.do(http.MethodGet, PathRecords+"/"+a.String()+"/history?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEmptyListIsArray(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodGet, PathRecords, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"records":[]}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, PathHealth, nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36, "generated UUID")

	req := httptest.NewRequest(http.MethodGet, PathHealth, nil)
	req.Header.Set(RequestIDHeader, "caller-chosen")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "caller-chosen", w.Header().Get(RequestIDHeader))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code ir.ErrorCode
		want int
	}{
		{ir.CodeAddressAlreadyInUse, http.StatusConflict},
		{ir.CodeAlreadyClockedIn, http.StatusConflict},
		{ir.CodeNotClockedIn, http.StatusConflict},
		{ir.CodeRecordNotFound, http.StatusNotFound},
		{ir.CodeInvalidInstruction, http.StatusBadRequest},
		{ir.CodeMalformedSeed, http.StatusBadRequest},
		{ir.CodeChannelUnavailable, http.StatusServiceUnavailable},
		{ir.CodeIndeterminate, http.StatusGatewayTimeout},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.code), string(tt.code))
	}
}

func TestErrorBodyErr(t *testing.T) {
	addr := pda.MustDerive(ir.SeedFromInt64(1))
	err := ErrorBody{Code: ir.CodeAlreadyClockedIn, Message: "cannot", Address: addr.String()}.Err()
	assert.Equal(t, ir.CodeAlreadyClockedIn, err.Code)
	assert.Equal(t, addr, err.Address)

	err = ErrorBody{Code: ir.CodeNotClockedIn, Message: "x"}.Err()
	assert.True(t, err.Address.IsZero())
}
