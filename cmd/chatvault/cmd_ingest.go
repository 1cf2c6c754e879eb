package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chatvault/chatvault/internal/ingest"
	"github.com/chatvault/chatvault/internal/normalize"
	"github.com/chatvault/chatvault/internal/store"
)

// ingestRules is the optional YAML rules file controlling message retention.
type ingestRules struct {
	Roles         []string `yaml:"roles"`
	IncludeSystem bool     `yaml:"include_system"`
}

func loadIngestRules(path string) (*ingestRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var rules ingestRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	return &rules, nil
}

func newIngestCmd() *cobra.Command {
	var (
		flagWorkers       int
		flagIncludeSystem bool
		flagRules         string
	)

	cmd := &cobra.Command{
		Use:   "ingest <container>",
		Short: "Ingest a conversation export container",
		Long: "Ingest a conversation export (.zip bundle, extracted directory, or\n" +
			"bare conversations.json) into the archive. Re-running on the same\n" +
			"export is a no-op; changed conversations are replaced whole.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			workers := flagWorkers
			if !cmd.Flags().Changed("workers") {
				workers = app.cfg.IngestWorkers
			}

			normCfg := normalize.Config{
				IncludeSystem: flagIncludeSystem || app.cfg.IncludeSystemMessages,
			}

			if flagRules != "" {
				rules, err := loadIngestRules(flagRules)
				if err != nil {
					return err
				}

				normCfg.Roles = rules.Roles
				normCfg.IncludeSystem = normCfg.IncludeSystem || rules.IncludeSystem
			}

			coordinator := ingest.New(
				store.NewChatStore(store.Base{Pool: app.pool, Log: app.log}),
				ingest.Config{
					Workers:    workers,
					Normalizer: normCfg,
				},
				app.log,
			)

			summary, runErr := coordinator.Run(ctx, args[0])

			out, _ := json.MarshalIndent(summary, "", "  ") //nolint:errcheck // plain struct.
			fmt.Println(string(out))

			if runErr != nil {
				return fmt.Errorf("ingestion run failed: %w", runErr)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&flagWorkers, "workers", 1, "Ingestion parallelism (overrides INGEST_WORKERS)")
	cmd.Flags().BoolVar(&flagIncludeSystem, "include-system", false, "Retain system messages")
	cmd.Flags().StringVar(&flagRules, "rules", "", "YAML rules file (roles allow-list, include_system)")

	return cmd
}
