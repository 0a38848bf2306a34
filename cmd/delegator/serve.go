package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/armatrix/agent-delegation-go/catalog"
	"github.com/armatrix/agent-delegation-go/server"
)

// DefaultAddr is the admin API address when settings name none.
const DefaultAddr = "127.0.0.1:8420"

var (
	serveAddr  string
	serveDirs  []string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine and its admin API",
	Long: `Loads the worker catalog, starts health supervision and serves the admin
API until interrupted. With --watch, catalog edits are applied live.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, s, err := loadSettings()
		if err != nil {
			return err
		}
		logger := newLogger(cmd.ErrOrStderr(), s.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e, err := newEngine(paths, logger)
		if err != nil {
			return err
		}

		dirs := catalogDirs(serveDirs, s)
		if serveWatch || s.Watch {
			w := catalog.NewWatcher(e, dirs, catalog.WithWatcherLogger(logger))
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("failed to watch catalog: %w", err)
			}
			defer w.Stop()
		} else {
			n, err := registerCatalog(ctx, e, dirs)
			if err != nil {
				return err
			}
			logger.Info("catalog loaded", "workers", n, "dirs", dirs)
		}

		e.Start(ctx)
		defer e.Stop()

		addr := serveAddr
		if addr == "" {
			addr = s.Server.Addr
		}
		if addr == "" {
			addr = DefaultAddr
		}

		gin.SetMode(gin.ReleaseMode)
		return server.New(e, server.WithLogger(logger)).Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default "+DefaultAddr+")")
	serveCmd.Flags().StringSliceVar(&serveDirs, "catalog", nil, "catalog directories (default: catalog_dirs setting)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "reload catalog files as they change")
}
