package gateway

import (
	"context"

	"github.com/roach88/punchcard/internal/engine"
	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/store"
)

// Channel carries signed payloads to the executor and reads records back.
//
// Implementations should return *ir.Error for outcomes they can classify.
// Submit should use CodeChannelUnavailable only when the payload certainly
// never reached the executor.
type Channel interface {
	Submit(ctx context.Context, p ir.SignedPayload) (ir.Confirmation, error)
	Fetch(ctx context.Context, addr ir.Address) (ir.EmployeeRecord, error)
}

// Browser is implemented by channels that can also enumerate records and
// their journals.
type Browser interface {
	List(ctx context.Context) ([]ir.RecordView, error)
	History(ctx context.Context, addr ir.Address, limit int) ([]store.Entry, error)
}

// LocalChannel submits to an in-process engine.
type LocalChannel struct {
	eng *engine.Engine
}

// NewLocalChannel wraps eng. The caller runs eng.Run.
func NewLocalChannel(eng *engine.Engine) *LocalChannel {
	return &LocalChannel{eng: eng}
}

func (c *LocalChannel) Submit(ctx context.Context, p ir.SignedPayload) (ir.Confirmation, error) {
	return c.eng.Submit(ctx, p)
}

func (c *LocalChannel) Fetch(ctx context.Context, addr ir.Address) (ir.EmployeeRecord, error) {
	return c.eng.Fetch(ctx, addr)
}

func (c *LocalChannel) List(ctx context.Context) ([]ir.RecordView, error) {
	return c.eng.List(ctx)
}

func (c *LocalChannel) History(ctx context.Context, addr ir.Address, limit int) ([]store.Entry, error) {
	return c.eng.History(ctx, addr, limit)
}
