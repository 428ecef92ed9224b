// Package gateway is the caller-side boundary to the executor. It resolves
// seeds to addresses, builds and signs instructions, submits them through a
// Channel exactly once, and normalizes every failure into the ir error
// taxonomy.
//
// The gateway never synthesizes record state: after a successful submit the
// caller re-fetches the record to see its new timestamps.
package gateway

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/pda"
	"github.com/roach88/punchcard/internal/store"
)

// DefaultTimeout bounds each submit when WithTimeout is not given.
const DefaultTimeout = 15 * time.Second

// Signer produces signatures for the submitting identity.
// *wallet.Keypair satisfies it.
type Signer interface {
	PublicKey() ed25519.PublicKey
	Sign(msg []byte) ([]byte, error)
}

// Outcome identifies an applied instruction.
type Outcome struct {
	Token   string     `json:"token"`
	Address ir.Address `json:"address"`
}

// Gateway proposes transitions on behalf of one signer.
//
// Thread-safety: safe for concurrent use if the Signer, Channel and
// NonceSource are.
type Gateway struct {
	signer  Signer
	channel Channel
	timeout time.Duration
	deriver pda.Deriver
	nonces  NonceSource
	logger  *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeout bounds each submit and fetch. Zero or negative disables the
// bound; the caller's ctx still applies.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// WithDeriver sets the deriver used to resolve seeds.
func WithDeriver(d pda.Deriver) Option {
	return func(g *Gateway) {
		g.deriver = d
	}
}

// WithNonceSource sets the nonce source. Default: UUIDv7Nonces.
func WithNonceSource(n NonceSource) Option {
	return func(g *Gateway) {
		g.nonces = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// New creates a Gateway that signs with signer and submits through channel.
func New(signer Signer, channel Channel, opts ...Option) *Gateway {
	g := &Gateway{
		signer:  signer,
		channel: channel,
		timeout: DefaultTimeout,
		nonces:  UUIDv7Nonces{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Deriver returns the deriver used to resolve seeds.
func (g *Gateway) Deriver() pda.Deriver {
	return g.deriver
}

// SignerAddress returns the signer's public key as an address.
func (g *Gateway) SignerAddress() ir.Address {
	var a ir.Address
	copy(a[:], g.signer.PublicKey())
	return a
}

// Initialize creates the record for seedText. A malformed seed fails with
// CodeMalformedSeed before anything is sent.
func (g *Gateway) Initialize(ctx context.Context, seedText string) (Outcome, error) {
	seed, err := ir.ParseSeed(seedText)
	if err != nil {
		return Outcome{}, err
	}
	addr, err := g.deriver.Derive(seed)
	if err != nil {
		return Outcome{}, ir.WrapError(ir.CodeMalformedSeed, "seed has no viable address", err)
	}
	return g.submit(ctx, ir.NewInitialize(seed, addr, g.SignerAddress(), g.nonces.Generate()))
}

func (g *Gateway) ClockIn(ctx context.Context, target string) (Outcome, error) {
	return g.Transition(ctx, target, ir.ClockIn)
}

func (g *Gateway) ClockOut(ctx context.Context, target string) (Outcome, error) {
	return g.Transition(ctx, target, ir.ClockOut)
}

func (g *Gateway) IntermittentIn(ctx context.Context, target string) (Outcome, error) {
	return g.Transition(ctx, target, ir.IntermittentIn)
}

func (g *Gateway) IntermittentOut(ctx context.Context, target string) (Outcome, error) {
	return g.Transition(ctx, target, ir.IntermittentOut)
}

func (g *Gateway) LunchIn(ctx context.Context, target string) (Outcome, error) {
	return g.Transition(ctx, target, ir.LunchIn)
}

func (g *Gateway) LunchOut(ctx context.Context, target string) (Outcome, error) {
	return g.Transition(ctx, target, ir.LunchOut)
}

// Transition requests t on the record named by target (seed or address).
func (g *Gateway) Transition(ctx context.Context, target string, t ir.Transition) (Outcome, error) {
	if !t.Valid() {
		return Outcome{}, ir.Errorf(ir.CodeInvalidInstruction, "invalid transition %d", int(t))
	}
	tgt, err := ResolveTarget(target, g.deriver)
	if err != nil {
		return Outcome{}, err
	}
	return g.submit(ctx, ir.NewTransition(tgt.Address, t, g.SignerAddress(), g.nonces.Generate()))
}

// Fetch reads the record named by target.
func (g *Gateway) Fetch(ctx context.Context, target string) (ir.RecordView, error) {
	tgt, err := ResolveTarget(target, g.deriver)
	if err != nil {
		return ir.RecordView{}, err
	}
	ctx, cancel := g.bound(ctx)
	defer cancel()

	rec, err := g.channel.Fetch(ctx, tgt.Address)
	if err != nil {
		return ir.RecordView{}, normalize(err, tgt.Address, ir.CodeChannelUnavailable)
	}
	return ir.RecordView{Address: tgt.Address, Record: rec}, nil
}

// List returns every record, if the channel supports it.
func (g *Gateway) List(ctx context.Context) ([]ir.RecordView, error) {
	b, ok := g.channel.(Browser)
	if !ok {
		return nil, ir.NewError(ir.CodeChannelUnavailable, "channel cannot list records")
	}
	ctx, cancel := g.bound(ctx)
	defer cancel()

	views, err := b.List(ctx)
	if err != nil {
		return nil, normalize(err, ir.Address{}, ir.CodeChannelUnavailable)
	}
	return views, nil
}

// History returns the journal of the record named by target, if the channel
// supports it. limit <= 0 means all entries.
func (g *Gateway) History(ctx context.Context, target string, limit int) ([]store.Entry, error) {
	b, ok := g.channel.(Browser)
	if !ok {
		return nil, ir.NewError(ir.CodeChannelUnavailable, "channel cannot read history")
	}
	tgt, err := ResolveTarget(target, g.deriver)
	if err != nil {
		return nil, err
	}
	ctx, cancel := g.bound(ctx)
	defer cancel()

	entries, err := b.History(ctx, tgt.Address, limit)
	if err != nil {
		return nil, normalize(err, tgt.Address, ir.CodeChannelUnavailable)
	}
	return entries, nil
}

// submit signs in and sends it once. There are no retries: a retried
// transition after an unknown outcome could apply twice.
func (g *Gateway) submit(ctx context.Context, in ir.Instruction) (Outcome, error) {
	msg, err := in.SigningBytes()
	if err != nil {
		return Outcome{}, ir.WrapError(ir.CodeInvalidInstruction, "instruction cannot be signed", err)
	}
	sig, err := g.signer.Sign(msg)
	if err != nil {
		return Outcome{}, ir.WrapError(ir.CodeChannelUnavailable, "signing failed", err).WithAddress(in.Address)
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()

	g.logger.Debug("submitting instruction",
		"address", in.Address,
		"kind", in.Kind,
		"transition", in.Transition.String(),
		"nonce", in.Nonce,
	)

	conf, err := g.channel.Submit(ctx, ir.SignedPayload{Instruction: in, Signature: sig})
	if err != nil {
		err = normalize(err, in.Address, ir.CodeIndeterminate)
		g.logger.Debug("submission failed", "address", in.Address, "code", ir.CodeOf(err), "error", err)
		return Outcome{}, err
	}

	g.logger.Debug("instruction confirmed", "address", in.Address, "seq", conf.Seq, "token", conf.Token)
	return Outcome{Token: conf.Token, Address: conf.Address}, nil
}

func (g *Gateway) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// normalize maps any channel error onto *ir.Error scoped to addr.
// Coded errors pass through; deadlines and everything else become fallback,
// which is CodeIndeterminate for submissions and CodeChannelUnavailable for
// reads.
func normalize(err error, addr ir.Address, fallback ir.ErrorCode) error {
	var e *ir.Error
	switch {
	case errors.As(err, &e):
		if e.Address.IsZero() && !addr.IsZero() {
			return e.WithAddress(addr)
		}
		return e
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ir.WrapError(fallback, "no answer before deadline", err).WithAddress(addr)
	default:
		return ir.WrapError(fallback, "channel failed", err).WithAddress(addr)
	}
}
