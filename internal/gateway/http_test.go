package gateway

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/punchcard/internal/api"
	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/pda"
	"github.com/roach88/punchcard/internal/wallet"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newRemote serves a real engine over HTTP and returns a gateway using
// HTTPChannel against it.
func newRemote(t *testing.T) *Gateway {
	t.Helper()
	_, eng := newLocal(t)

	srv := httptest.NewServer(api.NewRouter(eng, quiet))
	t.Cleanup(srv.Close)

	ch, err := NewHTTPChannel(srv.URL, srv.Client())
	require.NoError(t, err)
	return New(testSigner(), ch, WithLogger(quiet))
}

func TestHTTPChannel_RoundTrip(t *testing.T) {
	g := newRemote(t)
	ctx := context.Background()

	out, err := g.Initialize(ctx, "170141183460469231731687303715884105727")
	require.NoError(t, err)

	_, err = g.ClockIn(ctx, out.Address.String())
	require.NoError(t, err)
	_, err = g.LunchIn(ctx, out.Address.String())
	require.NoError(t, err)

	view, err := g.Fetch(ctx, "170141183460469231731687303715884105727")
	require.NoError(t, err)
	assert.Equal(t, ir.OnLunch, view.Record.State)
	assert.True(t, view.Record.Active)

	hist, err := g.History(ctx, out.Address.String(), 1)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, ir.LunchIn, hist[0].Confirmation.Transition)

	views, err := g.List(ctx)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestHTTPChannel_DecodesDomainErrors(t *testing.T) {
	g := newRemote(t)
	ctx := context.Background()

	_, err := g.ClockIn(ctx, "44")
	assert.Equal(t, ir.CodeRecordNotFound, ir.CodeOf(err))

	_, err = g.Initialize(ctx, "44")
	require.NoError(t, err)
	_, err = g.ClockOut(ctx, "44")
	require.Error(t, err)

	var e *ir.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ir.CodeNotClockedIn, e.Code)
	assert.Equal(t, pda.MustDerive(ir.SeedFromInt64(44)), e.Address)
	assert.Equal(t, ir.ClassRejected, ir.Classify(err))

	_, err = g.Fetch(ctx, "45")
	assert.Equal(t, ir.CodeRecordNotFound, ir.CodeOf(err))
}

func TestHTTPChannel_ForeignSignerRejected(t *testing.T) {
	_, eng := newLocal(t)
	srv := httptest.NewServer(api.NewRouter(eng, quiet))
	t.Cleanup(srv.Close)

	ch, err := NewHTTPChannel(srv.URL, nil)
	require.NoError(t, err)

	// Signed by one key but claiming another signer.
	imposter := wallet.MustFromSeed(bytes.Repeat([]byte{2}, 32))
	seed := ir.SeedFromInt64(1)
	in := ir.NewInitialize(seed, pda.MustDerive(seed), testSigner().Address(), "n")
	msg, err := in.SigningBytes()
	require.NoError(t, err)
	sig, err := imposter.Sign(msg)
	require.NoError(t, err)

	_, err = ch.Submit(context.Background(), ir.SignedPayload{Instruction: in, Signature: sig})
	assert.Equal(t, ir.CodeInvalidInstruction, ir.CodeOf(err))
}

func TestHTTPChannel_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ch, err := NewHTTPChannel(url, nil)
	require.NoError(t, err)
	g := New(testSigner(), ch, WithLogger(quiet))

	_, err = g.ClockIn(context.Background(), "1")
	assert.Equal(t, ir.CodeChannelUnavailable, ir.CodeOf(err))

	_, err = g.Fetch(context.Background(), "1")
	assert.Equal(t, ir.CodeChannelUnavailable, ir.CodeOf(err))
}

func TestHTTPChannel_UnknownFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	ch, err := NewHTTPChannel(srv.URL, nil)
	require.NoError(t, err)
	g := New(testSigner(), ch, WithLogger(quiet))

	_, err = g.ClockIn(context.Background(), "1")
	assert.Equal(t, ir.CodeIndeterminate, ir.CodeOf(err), "submit outcome unknown")

	_, err = g.Fetch(context.Background(), "1")
	assert.Equal(t, ir.CodeChannelUnavailable, ir.CodeOf(err), "reads have no outcome to lose")
}

func TestHTTPChannel_SlowServerIsIndeterminate(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ch, err := NewHTTPChannel(srv.URL, nil)
	require.NoError(t, err)
	g := New(testSigner(), ch, WithLogger(quiet), WithTimeout(50*time.Millisecond))

	_, err = g.ClockIn(context.Background(), "1")
	assert.Equal(t, ir.CodeIndeterminate, ir.CodeOf(err))

	_, err = g.Fetch(context.Background(), "1")
	assert.Equal(t, ir.CodeChannelUnavailable, ir.CodeOf(err))
}

func TestNewHTTPChannel_RejectsBadEndpoint(t *testing.T) {
	for _, bad := range []string{"", "localhost", "://x"} {
		_, err := NewHTTPChannel(bad, nil)
		assert.Error(t, err, bad)
	}

	ch, err := NewHTTPChannel("http://ledger.local:8787/", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://ledger.local:8787", ch.Endpoint())
}
