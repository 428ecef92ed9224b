package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/punchcard/internal/api"
	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/store"
)

// HTTPChannel talks to a ledger served by internal/api.
type HTTPChannel struct {
	base   string
	client *http.Client
}

// NewHTTPChannel creates a channel for the server at endpoint, e.g.
// "http://localhost:8787". A nil client means a fresh http.Client with no
// timeout of its own; deadlines come from the ctx passed to each call.
func NewHTTPChannel(endpoint string, client *http.Client) (*HTTPChannel, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", endpoint)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPChannel{base: strings.TrimRight(endpoint, "/"), client: client}, nil
}

// Endpoint returns the base URL.
func (c *HTTPChannel) Endpoint() string {
	return c.base
}

// Submit posts p. A failure to connect is CodeChannelUnavailable; any
// failure after the request may have been sent is CodeIndeterminate.
func (c *HTTPChannel) Submit(ctx context.Context, p ir.SignedPayload) (ir.Confirmation, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return ir.Confirmation{}, ir.WrapError(ir.CodeInvalidInstruction, "encode payload", err)
	}

	var resp api.SubmitResponse
	if err := c.do(ctx, http.MethodPost, api.PathSubmit, body, ir.CodeIndeterminate, &resp); err != nil {
		return ir.Confirmation{}, err
	}
	return resp.Confirmation, nil
}

func (c *HTTPChannel) Fetch(ctx context.Context, addr ir.Address) (ir.EmployeeRecord, error) {
	var view ir.RecordView
	if err := c.do(ctx, http.MethodGet, api.PathRecords+"/"+addr.String(), nil, ir.CodeChannelUnavailable, &view); err != nil {
		return ir.EmployeeRecord{}, err
	}
	return view.Record, nil
}

func (c *HTTPChannel) List(ctx context.Context) ([]ir.RecordView, error) {
	var resp api.ListResponse
	if err := c.do(ctx, http.MethodGet, api.PathRecords, nil, ir.CodeChannelUnavailable, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (c *HTTPChannel) History(ctx context.Context, addr ir.Address, limit int) ([]store.Entry, error) {
	path := api.PathRecords + "/" + addr.String() + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp api.HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, ir.CodeChannelUnavailable, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// do performs one request. afterSend is the code reported when the request
// may have reached the server but no usable answer came back.
func (c *HTTPChannel) do(ctx context.Context, method, path string, body []byte, afterSend ir.ErrorCode, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return ir.WrapError(ir.CodeChannelUnavailable, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(api.RequestIDHeader, uuid.Must(uuid.NewV7()).String())

	resp, err := c.client.Do(req)
	if err != nil {
		if notSent(err) {
			return ir.WrapError(ir.CodeChannelUnavailable, "ledger unreachable", err)
		}
		return ir.WrapError(afterSend, "no response from ledger", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ir.WrapError(afterSend, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error.Code != "" {
			return e.Error.Err()
		}
		return ir.Errorf(afterSend, "ledger answered %s", resp.Status)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return ir.WrapError(afterSend, "decode response", err)
	}
	return nil
}

// notSent reports whether err happened while dialing, before any request
// bytes left this process.
func notSent(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}
