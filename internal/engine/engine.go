package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/pda"
	"github.com/roach88/punchcard/internal/store"
	"github.com/roach88/punchcard/internal/timeclock"
)

// DefaultShards is the number of shard loops when WithShards is not given.
const DefaultShards = 8

// Engine is the authoritative executor.
//
// Every record address maps to exactly one shard, and each shard has one
// loop goroutine that applies its jobs in FIFO order. Two instructions for
// the same record therefore never run concurrently, while records on
// different shards proceed in parallel.
//
// Thread-safety model:
//   - Submit, Fetch, List, History: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Engine struct {
	store   *store.Store
	clock   *Clock
	now     TimeSource
	deriver pda.Deriver
	logger  *slog.Logger
	nshards int
	shards  []*jobQueue
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeSource sets the wall clock used to stamp records.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) {
		e.now = ts
	}
}

// WithShards sets the number of shard loops. Values below 1 mean 1.
func WithShards(n int) Option {
	return func(e *Engine) {
		e.nshards = n
	}
}

// WithProgramID sets the namespace initialize addresses are checked against.
func WithProgramID(id ir.Address) Option {
	return func(e *Engine) {
		e.deriver = pda.New(id)
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock sets the logical clock, e.g. one resumed with NewClockAt.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine over s. Call Run to start applying instructions.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		clock:   NewClock(),
		now:     SystemTime{},
		logger:  slog.Default(),
		nshards: DefaultShards,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.nshards < 1 {
		e.nshards = 1
	}
	e.shards = make([]*jobQueue, e.nshards)
	for i := range e.shards {
		e.shards[i] = newJobQueue()
	}
	return e
}

// Resume creates an Engine whose logical clock continues after the last
// seq already journaled in s.
func Resume(ctx context.Context, s *store.Store, opts ...Option) (*Engine, error) {
	last, err := s.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume engine: %w", err)
	}
	opts = append([]Option{WithClock(NewClockAt(last))}, opts...)
	return New(s, opts...), nil
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Shards returns the number of shard loops.
func (e *Engine) Shards() int {
	return len(e.shards)
}

// ShardFor returns the shard index that owns addr.
func (e *Engine) ShardFor(addr ir.Address) int {
	return int(addr[0]) % len(e.shards)
}

// Run starts one loop per shard and blocks until ctx is cancelled or Stop
// is called. Jobs still queued at that point are answered with
// CodeChannelUnavailable and never applied.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "shards", len(e.shards), "seq", e.clock.Current())

	var wg sync.WaitGroup
	for i, q := range e.shards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.runShard(ctx, i, q)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		e.logger.Info("engine stopping: context cancelled")
		return err
	}
	e.logger.Info("engine stopping: queues closed")
	return nil
}

func (e *Engine) runShard(ctx context.Context, shard int, q *jobQueue) {
	for {
		if j, ok := q.TryDequeue(); ok {
			e.process(ctx, shard, j)
			continue
		}

		select {
		case <-ctx.Done():
			e.abandon(q.Close())
			return
		case _, open := <-q.Wait():
			if !open {
				return
			}
		}
	}
}

// Stop closes every shard queue, causing Run to return.
func (e *Engine) Stop() {
	for _, q := range e.shards {
		e.abandon(q.Close())
	}
}

func (e *Engine) abandon(jobs []job) {
	for _, j := range jobs {
		j.reply <- result{err: ir.NewError(ir.CodeChannelUnavailable, "executor stopped before applying").
			WithAddress(j.payload.Instruction.Address)}
	}
}

// Submit verifies p and hands it to the owning shard, then waits for the
// outcome.
//
// Verification failures return CodeInvalidInstruction without touching
// the store. If ctx ends first, Submit returns CodeIndeterminate; the
// instruction has been accepted and may still be applied.
func (e *Engine) Submit(ctx context.Context, p ir.SignedPayload) (ir.Confirmation, error) {
	in := p.Instruction
	payloadID, err := e.verify(p)
	if err != nil {
		e.logger.Debug("instruction refused", "address", in.Address, "kind", in.Kind, "error", err)
		return ir.Confirmation{}, err
	}

	j := job{payload: p, payloadID: payloadID, reply: make(chan result, 1)}
	if !e.shards[e.ShardFor(in.Address)].Enqueue(j) {
		return ir.Confirmation{}, ir.NewError(ir.CodeChannelUnavailable, "executor is stopped").WithAddress(in.Address)
	}

	select {
	case r := <-j.reply:
		return r.conf, r.err
	case <-ctx.Done():
		return ir.Confirmation{}, ir.WrapError(ir.CodeIndeterminate, "stopped waiting for confirmation", ctx.Err()).
			WithAddress(in.Address)
	}
}

// process applies one job. Called only from the owning shard loop.
func (e *Engine) process(ctx context.Context, shard int, j job) {
	// An accepted job runs to completion even if Run's ctx is cancelled
	// mid-apply, so the transaction never half-commits from our side.
	conf, err := e.apply(context.WithoutCancel(ctx), j)
	in := j.payload.Instruction

	switch {
	case err == nil:
		e.logger.Debug("instruction applied",
			"shard", shard,
			"address", in.Address,
			"kind", in.Kind,
			"transition", in.Transition.String(),
			"seq", conf.Seq,
			"token", conf.Token,
		)
	case ir.Classify(err) == ir.ClassInternal:
		e.logger.Error("instruction failed",
			"shard", shard,
			"address", in.Address,
			"kind", in.Kind,
			"payload_id", j.payloadID,
			"error", err,
		)
	default:
		e.logger.Debug("instruction rejected",
			"shard", shard,
			"address", in.Address,
			"kind", in.Kind,
			"transition", in.Transition.String(),
			"code", ir.CodeOf(err),
		)
	}

	j.reply <- result{conf: conf, err: err}
}

func (e *Engine) apply(ctx context.Context, j job) (ir.Confirmation, error) {
	in := j.payload.Instruction
	seq := e.clock.Next()
	now := unixSeconds(e.now.Now())

	step := store.Step{
		Address:   in.Address,
		Signer:    in.Signer,
		Nonce:     in.Nonce,
		PayloadID: j.payloadID,
	}

	return e.store.Apply(ctx, step, func(cur ir.EmployeeRecord, found bool) (ir.EmployeeRecord, ir.Confirmation, error) {
		var next ir.EmployeeRecord
		switch in.Kind {
		case ir.KindInitialize:
			if found {
				return ir.EmployeeRecord{}, ir.Confirmation{}, ir.NewError(ir.CodeAddressAlreadyInUse,
					"a record already exists at this address").WithAddress(in.Address)
			}
			next = timeclock.NewRecord()
		case ir.KindTransition:
			if !found {
				return ir.EmployeeRecord{}, ir.Confirmation{}, ir.NewError(ir.CodeRecordNotFound,
					"no record at this address").WithAddress(in.Address)
			}
			var err error
			if next, err = timeclock.Apply(cur, in.Transition, now); err != nil {
				return ir.EmployeeRecord{}, ir.Confirmation{}, withAddress(err, in.Address)
			}
		default:
			return ir.EmployeeRecord{}, ir.Confirmation{}, ir.Errorf(ir.CodeInvalidInstruction, "unknown instruction kind %q", in.Kind)
		}

		token, err := ir.ConfirmationToken(in, seq)
		if err != nil {
			return ir.EmployeeRecord{}, ir.Confirmation{}, err
		}
		return next, ir.Confirmation{
			Token:      token,
			Address:    in.Address,
			Kind:       in.Kind,
			Transition: in.Transition,
			Seq:        seq,
			AppliedAt:  now,
		}, nil
	})
}

func withAddress(err error, addr ir.Address) error {
	var e *ir.Error
	if errors.As(err, &e) {
		return e.WithAddress(addr)
	}
	return err
}

// Fetch returns the current record at addr, or CodeRecordNotFound.
func (e *Engine) Fetch(ctx context.Context, addr ir.Address) (ir.EmployeeRecord, error) {
	return e.store.ReadRecord(ctx, addr)
}

// List returns every record in creation order.
func (e *Engine) List(ctx context.Context) ([]ir.RecordView, error) {
	return e.store.List(ctx)
}

// History returns the journal for addr, oldest first; see store.History.
// An unknown address yields CodeRecordNotFound.
func (e *Engine) History(ctx context.Context, addr ir.Address, limit int) ([]store.Entry, error) {
	if _, err := e.store.ReadRecord(ctx, addr); err != nil {
		return nil, err
	}
	return e.store.History(ctx, addr, limit)
}
