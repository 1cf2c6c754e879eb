package main

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chatvault/chatvault/internal/config"
	"github.com/chatvault/chatvault/internal/dbpool"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and connectivity",
		Long:  "Run diagnostic checks against config, database, and backup tooling",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor()
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

func runDoctor() error {
	fmt.Println("\nchatvault Doctor")
	fmt.Println("================")

	var results []checkResult

	// 1. Configuration.
	_ = godotenv.Load()

	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		results = append(results, checkResult{
			Name: "Configuration", Passed: false,
			Detail: cfgErr.Error(),
			Hint:   "Set DATABASE_URL and friends in the environment or a .env file",
		})
	} else {
		results = append(results, checkResult{
			Name: "Configuration", Passed: true, Detail: "valid",
		})
	}

	// 2. Database reachable.
	if cfg != nil {
		if err := doctorCheckDatabase(cfg); err != nil {
			results = append(results, checkResult{
				Name: "Database reachable", Passed: false,
				Hint: fmt.Sprintf("Is PostgreSQL running? Error: %v", err),
			})
		} else {
			results = append(results, checkResult{
				Name: "Database reachable", Passed: true, Detail: "connected",
			})
		}
	}

	// 3. pg_dump available (needed by the backup command).
	if path, err := exec.LookPath("pg_dump"); err != nil {
		results = append(results, checkResult{
			Name: "pg_dump", Passed: false,
			Hint: "Install postgresql client tools to enable 'chatvault backup'",
		})
	} else {
		results = append(results, checkResult{
			Name: "pg_dump", Passed: true, Detail: path,
		})
	}

	// Print results.
	fmt.Println()
	allPassed := true
	for _, r := range results {
		if r.Passed {
			if r.Detail != "" {
				fmt.Printf("✅ %s: %s\n", r.Name, r.Detail)
			} else {
				fmt.Printf("✅ %s\n", r.Name)
			}
		} else {
			allPassed = false
			if r.Detail != "" {
				fmt.Printf("❌ %s: %s\n", r.Name, r.Detail)
			} else {
				fmt.Printf("❌ %s\n", r.Name)
			}
			if r.Hint != "" {
				fmt.Printf("   Hint: %s\n", r.Hint)
			}
		}
	}

	fmt.Println()
	if allPassed {
		fmt.Println("✅ All checks passed!")
	} else {
		fmt.Println("❌ Some checks failed.")
		return fmt.Errorf("doctor found issues")
	}

	return nil
}

func doctorCheckDatabase(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value())
	if err != nil {
		return err
	}
	defer pool.Close()

	return pool.HealthCheck(ctx)
}
