package gateway

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/punchcard/internal/engine"
	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/pda"
	"github.com/roach88/punchcard/internal/store"
	"github.com/roach88/punchcard/internal/testutil"
	"github.com/roach88/punchcard/internal/wallet"
)

var quiet = slog.New(slog.DiscardHandler)

func testSigner() *wallet.Keypair {
	return wallet.MustFromSeed(bytes.Repeat([]byte{1}, 32))
}

// newLocal returns a gateway over a running in-memory engine.
func newLocal(t *testing.T, opts ...Option) (*Gateway, *engine.Engine) {
	t.Helper()

	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	eng := engine.New(s,
		engine.WithTimeSource(testutil.NewSteppingTime(testutil.DefaultEpoch, time.Minute)),
		engine.WithLogger(quiet),
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

	base := []Option{WithLogger(quiet), WithNonceSource(testutil.NewSequentialNonces("gw"))}
	return New(testSigner(), NewLocalChannel(eng), append(base, opts...)...), eng
}

// stubChannel answers every call with the configured result.
type stubChannel struct {
	calls   atomic.Int32
	conf    ir.Confirmation
	err     error
	block   bool
	lastCtx context.Context
}

func (c *stubChannel) Submit(ctx context.Context, p ir.SignedPayload) (ir.Confirmation, error) {
	c.calls.Add(1)
	c.lastCtx = ctx
	if c.block {
		<-ctx.Done()
		return ir.Confirmation{}, ctx.Err()
	}
	return c.conf, c.err
}

func (c *stubChannel) Fetch(ctx context.Context, addr ir.Address) (ir.EmployeeRecord, error) {
	c.calls.Add(1)
	if c.block {
		<-ctx.Done()
		return ir.EmployeeRecord{}, ctx.Err()
	}
	return ir.EmployeeRecord{}, c.err
}

func TestGateway_WorkingDay(t *testing.T) {
	g, _ := newLocal(t)
	ctx := context.Background()

	out, err := g.Initialize(ctx, "59222433202251")
	require.NoError(t, err)
	assert.Equal(t, pda.MustDerive(ir.MustParseSeed("59222433202251")), out.Address)
	assert.Len(t, out.Token, 64)

	steps := []func(context.Context, string) (Outcome, error){
		g.ClockIn, g.IntermittentIn, g.IntermittentOut, g.LunchIn, g.LunchOut, g.ClockOut,
	}
	tokens := map[string]bool{out.Token: true}
	for _, step := range steps {
		o, err := step(ctx, "59222433202251")
		require.NoError(t, err)
		assert.Equal(t, out.Address, o.Address)
		assert.False(t, tokens[o.Token], "tokens are unique")
		tokens[o.Token] = true
	}

	view, err := g.Fetch(ctx, out.Address.String())
	require.NoError(t, err)
	assert.Equal(t, ir.OffShift, view.Record.State)
	assert.False(t, view.Record.Active)
	assert.Less(t, view.Record.ShiftStartClock, view.Record.ShiftEndClock)
}

func TestGateway_DomainRejectionsPassThrough(t *testing.T) {
	g, _ := newLocal(t)
	ctx := context.Background()

	_, err := g.ClockIn(ctx, "-7")
	assert.Equal(t, ir.CodeRecordNotFound, ir.CodeOf(err))

	_, err = g.Initialize(ctx, "-7")
	require.NoError(t, err)
	_, err = g.Initialize(ctx, "-7")
	assert.Equal(t, ir.CodeAddressAlreadyInUse, ir.CodeOf(err))

	_, err = g.LunchOut(ctx, "-7")
	assert.Equal(t, ir.CodeNotClockedIn, ir.CodeOf(err))
	assert.True(t, ir.IsDomain(err))

	_, err = g.ClockIn(ctx, "-7")
	require.NoError(t, err)
	_, err = g.ClockIn(ctx, "-7")
	assert.Equal(t, ir.CodeAlreadyClockedIn, ir.CodeOf(err))
}

func TestGateway_MalformedSeedNeverReachesChannel(t *testing.T) {
	ch := &stubChannel{}
	g := New(testSigner(), ch, WithLogger(quiet))

	for _, text := range []string{"", "abc", "1.5", "+3", "170141183460469231731687303715884105728"} {
		_, err := g.Initialize(context.Background(), text)
		assert.Equal(t, ir.CodeMalformedSeed, ir.CodeOf(err), "seed %q", text)

		_, err = g.ClockIn(context.Background(), text)
		assert.Equal(t, ir.CodeMalformedSeed, ir.CodeOf(err), "target %q", text)
	}
	assert.Equal(t, int32(0), ch.calls.Load())
}

func TestGateway_NormalizesChannelFailures(t *testing.T) {
	addr := pda.MustDerive(ir.SeedFromInt64(3))

	tests := []struct {
		name string
		err  error
		want ir.ErrorCode
	}{
		{"deadline", context.DeadlineExceeded, ir.CodeIndeterminate},
		{"wrapped deadline", errors.Join(errors.New("read"), context.DeadlineExceeded), ir.CodeIndeterminate},
		{"untyped after send", errors.New("connection reset"), ir.CodeIndeterminate},
		{"not sent", ir.NewError(ir.CodeChannelUnavailable, "refused"), ir.CodeChannelUnavailable},
		{"domain", ir.NewError(ir.CodeNotClockedIn, "nope"), ir.CodeNotClockedIn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &stubChannel{err: tt.err}
			g := New(testSigner(), ch, WithLogger(quiet))

			_, err := g.ClockOut(context.Background(), addr.String())
			require.Error(t, err)

			var e *ir.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.want, e.Code)
			assert.Equal(t, addr, e.Address)
			assert.Equal(t, int32(1), ch.calls.Load(), "submitted exactly once, never retried")
		})
	}
}

func TestGateway_TimeoutIsIndeterminate(t *testing.T) {
	ch := &stubChannel{block: true}
	g := New(testSigner(), ch, WithLogger(quiet), WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := g.ClockIn(context.Background(), "1")
	assert.Equal(t, ir.CodeIndeterminate, ir.CodeOf(err))
	assert.Equal(t, ir.ClassUnconfirmed, ir.Classify(err))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), ch.calls.Load())
}

func TestGateway_ReadTimeoutIsChannelUnavailable(t *testing.T) {
	ch := &stubChannel{block: true}
	g := New(testSigner(), ch, WithLogger(quiet), WithTimeout(20*time.Millisecond))

	_, err := g.Fetch(context.Background(), "1")
	assert.Equal(t, ir.CodeChannelUnavailable, ir.CodeOf(err))
	var e *ir.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, pda.MustDerive(ir.SeedFromInt64(1)), e.Address)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Fetch(ctx, "1")
	assert.Equal(t, ir.CodeChannelUnavailable, ir.CodeOf(err))
}

func TestGateway_NoTimeout(t *testing.T) {
	ch := &stubChannel{conf: ir.Confirmation{Token: "t"}}
	g := New(testSigner(), ch, WithLogger(quiet), WithTimeout(0))

	out, err := g.ClockIn(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "t", out.Token)
	_, hasDeadline := ch.lastCtx.Deadline()
	assert.False(t, hasDeadline)
}

func TestGateway_SignerFailure(t *testing.T) {
	ch := &stubChannel{}
	g := New(failingSigner{}, ch, WithLogger(quiet))

	_, err := g.ClockIn(context.Background(), "1")
	assert.Equal(t, ir.CodeChannelUnavailable, ir.CodeOf(err))
	assert.Equal(t, int32(0), ch.calls.Load())
}

type failingSigner struct{}

func (failingSigner) PublicKey() ed25519.PublicKey { return make(ed25519.PublicKey, ed25519.PublicKeySize) }
func (failingSigner) Sign(msg []byte) ([]byte, error) { return nil, errors.New("wallet locked") }

func TestGateway_CustomProgramID(t *testing.T) {
	other := pda.New(ir.Address{7})
	ch := &stubChannel{}
	g := New(testSigner(), ch, WithLogger(quiet), WithDeriver(other))

	want, err := other.Derive(ir.SeedFromInt64(5))
	require.NoError(t, err)
	_, err = g.Fetch(context.Background(), "5")
	require.NoError(t, err)

	tgt, err := ResolveTarget("5", g.Deriver())
	require.NoError(t, err)
	assert.Equal(t, want, tgt.Address)
	assert.NotEqual(t, pda.MustDerive(ir.SeedFromInt64(5)), want)
}

func TestGateway_ListAndHistory(t *testing.T) {
	g, _ := newLocal(t)
	ctx := context.Background()

	_, err := g.Initialize(ctx, "1")
	require.NoError(t, err)
	_, err = g.ClockIn(ctx, "1")
	require.NoError(t, err)

	views, err := g.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, ir.OnShift, views[0].Record.State)

	hist, err := g.History(ctx, "1", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, ir.ClockIn, hist[1].Confirmation.Transition)

	bare := New(testSigner(), &stubChannel{}, WithLogger(quiet))
	_, err = bare.List(ctx)
	assert.Equal(t, ir.CodeChannelUnavailable, ir.CodeOf(err))
	_, err = bare.History(ctx, "1", 0)
	assert.Equal(t, ir.CodeChannelUnavailable, ir.CodeOf(err))
}

func TestResolveTarget(t *testing.T) {
	seedAddr := pda.MustDerive(ir.SeedFromInt64(-12))

	tgt, err := ResolveTarget(" -12 ", pda.Deriver{})
	require.NoError(t, err)
	assert.Equal(t, seedAddr, tgt.Address)
	require.NotNil(t, tgt.Seed)
	assert.Equal(t, "-12", tgt.Seed.String())

	tgt, err = ResolveTarget(seedAddr.String(), pda.Deriver{})
	require.NoError(t, err)
	assert.Equal(t, seedAddr, tgt.Address)
	assert.Nil(t, tgt.Seed)

	for _, bad := range []string{"", "hello world", "12a", "--1", "1000000000000000000000000000000000000000000"} {
		_, err := ResolveTarget(bad, pda.Deriver{})
		assert.Equal(t, ir.CodeMalformedSeed, ir.CodeOf(err), "%q", bad)
	}
}

func TestResolveTarget_DigitsOutOfRangeAreNeverAddresses(t *testing.T) {
	for _, n := range []int{43, 44} {
		text := strings.Repeat("9", n)
		_, addrErr := ir.ParseAddress(text)
		require.NoError(t, addrErr, "%d nines also decode as a 32-byte address", n)

		tgt, err := ResolveTarget(text, pda.Deriver{})
		assert.Equal(t, ir.CodeMalformedSeed, ir.CodeOf(err), "%d nines", n)
		assert.True(t, tgt.Address.IsZero())

		_, err = ResolveTarget("-"+text, pda.Deriver{})
		assert.Equal(t, ir.CodeMalformedSeed, ir.CodeOf(err), "-%d nines", n)
	}
}

func TestGateway_OutOfRangeDigitsNeverReachChannel(t *testing.T) {
	ch := &stubChannel{}
	g := New(testSigner(), ch, WithLogger(quiet))

	_, err := g.ClockIn(context.Background(), strings.Repeat("9", 43))
	assert.Equal(t, ir.CodeMalformedSeed, ir.CodeOf(err))
	assert.Zero(t, ch.calls.Load())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t,
		"your action was invalid given current state: you are already clocked in",
		Message(ir.NewError(ir.CodeAlreadyClockedIn, "cannot clock_in while on-shift")))
	assert.Equal(t,
		"we could not confirm your action succeeded: the ledger did not answer in time; check the record before retrying",
		Message(ir.NewError(ir.CodeIndeterminate, "x")))
	assert.Equal(t,
		"your request was not valid: duplicate nonce",
		Message(ir.NewError(ir.CodeInvalidInstruction, "duplicate nonce")))
	assert.Equal(t, "something went wrong: boom", Message(errors.New("boom")))
}

func TestNonces(t *testing.T) {
	a := UUIDv7Nonces{}.Generate()
	b := UUIDv7Nonces{}.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)

	f := NewFixedNonces("n-1")
	assert.Equal(t, "n-1", f.Generate())
	assert.Panics(t, func() { f.Generate() })
}
