package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/punchcard/internal/api"
)

// shutdownGrace bounds how long in-flight requests may finish on shutdown.
const shutdownGrace = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string

	// ready, if set, receives the bound address once the server accepts
	// connections.
	ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the executor and serve it over HTTP",
		Long: `Run the authoritative executor over the local database and serve it over
HTTP for clients started with --endpoint.

Routes:
  GET  /health
  POST /api/v1/submit
  GET  /api/v1/records
  GET  /api/v1/records/:address
  GET  /api/v1/records/:address/history

Stops on SIGINT or SIGTERM. Instructions still queued at that point are
answered with CHANNEL_UNAVAILABLE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "address to listen on (default: configured listen)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	listen := opts.Listen
	if listen == "" {
		listen = opts.Config.Listen
	}

	eng, st, err := opts.openEngine(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "listen", err)
	}

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Handler:           api.NewRouter(eng, opts.Logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(ctx)
	}()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(ln)
	}()

	opts.Logger.Info("serving", "addr", ln.Addr().String(), "db", opts.Config.DB, "program_id", opts.Config.ProgramID)
	if opts.ready != nil {
		opts.ready(ln.Addr().String())
	}

	select {
	case <-ctx.Done():
	case err = <-serveDone:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		opts.Logger.Warn("http shutdown", "error", shutdownErr)
	}
	eng.Stop()
	<-engineDone
	opts.Logger.Info("stopped")

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitCommandError, "serve", err)
	}
	return nil
}
