package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pushset/internal/server"
	"github.com/leapstack-labs/pushset/internal/state"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve model checks over HTTP",
		Long: `Start an HTTP service for CI pipelines and other tools.

Endpoints:
  GET  /healthz       liveness
  POST /v1/check      body: .bim document, returns the unsupported objects
  POST /v1/generate   body: .bim document, returns the reduced document
  GET  /v1/runs       recorded runs from the state database (?limit=N)`,
		Example: `  pushset serve --addr :8088
  curl --data-binary @model.bim localhost:8088/v1/check`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from server.addr, :8088)")

	return cmd
}

func runServe(cmd *cobra.Command, addr string) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg

	if addr == "" && cfg.Server != nil {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvCfg := server.Config{Addr: addr, Logger: cmdCtx.Logger}

	st, err := state.OpenMigrated(cfg.StatePath, cmdCtx.Logger)
	if err != nil {
		cmdCtx.Logger.Warn("run history endpoint disabled", "state", cfg.StatePath, "error", err)
	} else {
		defer func() { _ = st.Close() }()
		srvCfg.Runs = st
	}

	cmdCtx.Renderer.Success("listening on " + addr)
	return server.New(srvCfg).Serve(ctx)
}
