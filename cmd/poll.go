package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Receive updates by long polling (drops any configured webhook)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		wg := a.background(ctx, !flagNoBroadcast)
		err = a.tg.Poll(ctx, a.log, a.bot.HandleUpdate)
		stop()
		wg.Wait()
		if errors.Is(err, context.Canceled) {
			a.log.Info("polling stopped")
			return nil
		}
		return err
	},
}
