package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	handler "tmdb-tg-bot/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Telegram webhook and status endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		srv := handler.NewServer(a.bot, a.catalog, a.ledger, a.pause, handler.Options{
			Secret:   a.cfg.WebhookSecret,
			Timeout:  a.cfg.HTTPTimeout,
			ImageURL: a.tmdb.ImageURL,
		}, a.log)
		server := &http.Server{
			Addr:         ":" + a.cfg.Port,
			Handler:      srv.Routes(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: a.cfg.HTTPTimeout + 5*time.Second,
		}

		wg := a.background(ctx, !flagNoBroadcast)
		errc := make(chan error, 1)
		go func() {
			a.log.Info("server listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case <-ctx.Done():
		case err := <-errc:
			if err != nil {
				stop()
				wg.Wait()
				return err
			}
		}

		a.log.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(sctx)
		stop()
		wg.Wait()
		a.log.Info("server stopped")
		return nil
	},
}
