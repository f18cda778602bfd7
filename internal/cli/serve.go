package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"codequest/internal/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer teardown(a)

		router, limiter, err := a.Router()
		if err != nil {
			return err
		}
		defer limiter.Stop()

		cfg := a.Config.Server
		server := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router.Handler(),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		}

		g, ctx := errgroup.WithContext(cmd.Context())

		g.Go(func() error {
			a.Log.Info("server starting", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			a.Log.Info("server shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if a.Config.Jobs.Enabled {
			g.Go(func() error {
				return a.Scheduler().Run(ctx)
			})
		}

		g.Go(func() error {
			return a.Bus.Subscribe(ctx, func(n events.Notification) {
				a.Log.Debug("progress notification", "kind", n.Kind, "user_id", n.UserID, "mission_id", n.MissionID)
			})
		})

		return g.Wait()
	},
}
