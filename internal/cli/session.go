package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/roach88/punchcard/internal/engine"
	"github.com/roach88/punchcard/internal/gateway"
	"github.com/roach88/punchcard/internal/pda"
	"github.com/roach88/punchcard/internal/store"
	"github.com/roach88/punchcard/internal/wallet"
)

// session is a gateway plus whatever must be torn down after the command.
type session struct {
	gw    *gateway.Gateway
	close func()
}

// signing controls whether a session needs the configured keypair.
type signing bool

const (
	needKeypair signing = true
	readOnly    signing = false
)

// deriver returns the deriver for the configured program id.
func (o *RootOptions) deriver() (pda.Deriver, error) {
	id, err := o.Config.ProgramAddress()
	if err != nil {
		return pda.Deriver{}, WrapExitError(ExitCommandError, "program id", err)
	}
	return pda.New(id), nil
}

// signer loads the keypair. Read-only sessions fall back to a throwaway
// key when the file does not exist, since nothing gets signed.
func (o *RootOptions) signer(mode signing) (*wallet.Keypair, error) {
	kp, err := wallet.LoadKeypair(o.Config.Keypair)
	if err == nil {
		return kp, nil
	}
	if mode == readOnly && errors.Is(err, os.ErrNotExist) {
		return wallet.Generate()
	}
	return nil, WrapExitError(ExitCommandError,
		fmt.Sprintf("keypair %s (create one with 'punchcard keygen')", o.Config.Keypair), err)
}

// openSession connects a gateway to the configured endpoint, or to an
// engine embedded over the local database.
func (o *RootOptions) openSession(ctx context.Context, mode signing) (*session, error) {
	d, err := o.deriver()
	if err != nil {
		return nil, err
	}
	kp, err := o.signer(mode)
	if err != nil {
		return nil, err
	}
	gwOpts := []gateway.Option{
		gateway.WithDeriver(d),
		gateway.WithTimeout(o.Config.Timeout),
		gateway.WithLogger(o.Logger),
	}

	if o.Config.Endpoint != "" {
		ch, err := gateway.NewHTTPChannel(o.Config.Endpoint, &http.Client{})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "endpoint", err)
		}
		o.Logger.Debug("remote session", "endpoint", ch.Endpoint())
		return &session{gw: gateway.New(kp, ch, gwOpts...), close: func() {}}, nil
	}

	eng, st, err := o.openEngine(ctx)
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Run(runCtx)
	}()

	o.Logger.Debug("local session", "db", o.Config.DB)
	return &session{
		gw: gateway.New(kp, gateway.NewLocalChannel(eng), gwOpts...),
		close: func() {
			cancel()
			<-done
			if err := st.Close(); err != nil {
				o.Logger.Warn("close store", "error", err)
			}
		},
	}, nil
}

// openEngine opens the configured database and an engine that resumes its
// logical clock. The caller runs the engine and closes the store.
func (o *RootOptions) openEngine(ctx context.Context) (*engine.Engine, *store.Store, error) {
	id, err := o.Config.ProgramAddress()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "program id", err)
	}
	st, err := store.Open(o.Config.DB)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "open database", err)
	}
	eng, err := engine.Resume(ctx, st,
		engine.WithProgramID(id),
		engine.WithShards(o.Config.Shards),
		engine.WithLogger(o.Logger),
	)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "open database", err)
	}
	return eng, st, nil
}
