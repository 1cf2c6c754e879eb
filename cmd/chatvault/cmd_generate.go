package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/site"
	"github.com/chatvault/chatvault/internal/store"
)

func newGenerateCmd() *cobra.Command {
	var flagOut string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render the archive as a static HTML site",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			outDir := flagOut
			if outDir == "" {
				outDir = app.cfg.SiteDir
			}

			chats := store.NewChatStore(store.Base{Pool: app.pool, Log: app.log})

			gen, err := site.New(chats, app.log)
			if err != nil {
				return err
			}

			return gen.Generate(ctx, outDir)
		},
	}

	cmd.Flags().StringVar(&flagOut, "out", "", "Output directory (defaults to SITE_DIR)")

	return cmd
}
