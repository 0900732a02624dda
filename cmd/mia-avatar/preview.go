package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fulopkrisztian-prog/Mia/internal/bus"
	"github.com/fulopkrisztian-prog/Mia/internal/preview"
)

func previewCmd() *cobra.Command {
	var fps int

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the controller live in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eventBus := bus.NewEventBus()
			defer eventBus.Wait()

			ctrl, err := newController(eventBus.Sync())
			if err != nil {
				return err
			}
			if err := ctrl.Mount(); err != nil {
				return err
			}
			defer ctrl.Unmount()

			var logs preview.LogSource
			if log != nil {
				logs = log
			}
			return preview.Run(ctx, ctrl, logs, fps)
		},
	}

	cmd.Flags().IntVar(&fps, "fps", 30, "preview refresh rate")
	return cmd
}
