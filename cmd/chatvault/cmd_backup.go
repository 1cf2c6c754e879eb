package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/backup"
)

func newBackupCmd() *cobra.Command {
	var flagDir string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Dump the database and zip the static site",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			dir := flagDir
			if dir == "" {
				dir = app.cfg.BackupDir
			}

			runner := backup.New(app.cfg.DatabaseURL.Value(), app.log)

			res, err := runner.Run(ctx, dir, app.cfg.SiteDir)
			if err != nil {
				return err
			}

			fmt.Printf("Backup written to %s\n", res.Dir)

			return nil
		},
	}

	cmd.Flags().StringVar(&flagDir, "dir", "", "Backup directory (defaults to BACKUP_DIR)")

	return cmd
}
