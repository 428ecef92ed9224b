package harness

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/punchcard/internal/engine"
	"github.com/roach88/punchcard/internal/gateway"
	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/store"
	"github.com/roach88/punchcard/internal/testutil"
	"github.com/roach88/punchcard/internal/wallet"
)

// signerSeed fixes the scenario signing key so payloads, and therefore
// confirmation tokens, repeat exactly across runs.
var signerSeed = bytes.Repeat([]byte{0x5c}, 32)

// Harness executes one scenario against a private executor.
type Harness struct {
	gateway *gateway.Gateway
}

// Run executes a scenario and returns its result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Setup failures and infrastructure errors are returned as errors; failed
// expectations and assertions are reported in the Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	start := testutil.DefaultEpoch
	if scenario.Start != "" {
		t, err := time.Parse(time.RFC3339, scenario.Start)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		start = t
	}
	step := time.Minute
	if scenario.Step != "" {
		d, err := time.ParseDuration(scenario.Step)
		if err != nil {
			return nil, fmt.Errorf("step: %w", err)
		}
		step = d
	}

	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.DiscardHandler)
	opts := []engine.Option{
		engine.WithTimeSource(testutil.NewSteppingTime(start, step)),
		engine.WithLogger(logger),
	}
	if scenario.Shards > 0 {
		opts = append(opts, engine.WithShards(scenario.Shards))
	}
	eng := engine.New(st, opts...)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	h := &Harness{
		gateway: gateway.New(wallet.MustFromSeed(signerSeed), gateway.NewLocalChannel(eng),
			gateway.WithNonceSource(testutil.NewSequentialNonces(scenario.Name)),
			gateway.WithLogger(logger),
			gateway.WithTimeout(0),
		),
	}

	for i, s := range scenario.Setup {
		if err := h.exec(ctx, s); err != nil {
			return nil, fmt.Errorf("setup[%d] %s %s: %w", i, s.Op(), s.TargetText(), err)
		}
	}

	result := NewResult()
	for i, s := range scenario.Flow {
		h.runStep(ctx, i, s, result)
	}

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, h.gateway) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) runStep(ctx context.Context, i int, s Step, result *Result) {
	ev := TraceEvent{Step: i, Op: s.Op(), Target: s.TargetText()}

	if s.Parallel > 1 {
		outcomes := make([]string, s.Parallel)
		var wg sync.WaitGroup
		for n := range outcomes {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcomes[n] = outcomeOf(h.exec(ctx, s))
			}()
		}
		wg.Wait()
		slices.Sort(outcomes)
		ev.Outcomes = outcomes

		if len(s.ExpectCounts) > 0 {
			got := make(map[string]int)
			for _, o := range outcomes {
				got[o]++
			}
			for outcome, want := range s.ExpectCounts {
				if got[outcome] != want {
					result.AddError(fmt.Sprintf("flow[%d]: expected %d x %s, got %v", i, want, outcome, outcomes))
				}
			}
		} else {
			want := expected(s)
			for _, o := range outcomes {
				if o != want {
					result.AddError(fmt.Sprintf("flow[%d]: expected every outcome %s, got %v", i, want, outcomes))
					break
				}
			}
		}
	} else {
		ev.Outcome = outcomeOf(h.exec(ctx, s))
		if want := expected(s); ev.Outcome != want {
			result.AddError(fmt.Sprintf("flow[%d] %s %s: expected %s, got %s", i, ev.Op, ev.Target, want, ev.Outcome))
		}
	}

	// Re-fetch rather than trusting the outcome.
	if view, err := h.gateway.Fetch(ctx, s.TargetText()); err == nil {
		ev.State = view.Record.State.String()
		ev.Active = view.Record.Active
	}
	result.AddEvent(ev)
}

func (h *Harness) exec(ctx context.Context, s Step) error {
	if s.Init != "" {
		_, err := h.gateway.Initialize(ctx, s.Init)
		return err
	}
	t, err := ir.ParseTransition(s.Do)
	if err != nil {
		return err
	}
	_, err = h.gateway.Transition(ctx, s.Target, t)
	return err
}

func expected(s Step) string {
	if s.Expect == "" {
		return OutcomeOK
	}
	return s.Expect
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if code := ir.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR: " + err.Error()
}
