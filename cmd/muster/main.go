// Package main is the entry point for the Muster CLI
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloud-shuttle/muster/internal/config"
	"github.com/cloud-shuttle/muster/internal/db"
	"github.com/spf13/cobra"
)

var cfg *config.Config

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "muster",
		Short: "Keep sheet-tracked tasks honest with sync, nudges and peer pressure",
		Long: `Muster mirrors tasks from externally edited Google Sheets into a local
store, reconciles the two on a schedule, and notifies owners about new,
due and overdue work. Tasks that stay overdue past the threshold get
escalated to the rest of the project.`,
		Version: "0.1.0",
	}

	rootCmd.AddCommand(
		initCmd(),
		sheetCmd(),
		syncCmd(),
		sweepCmd(),
		serveCmd(),
		statusCmd(),
		searchCmd(),
		actionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// findProjectDir locates the muster project root by searching upward
func findProjectDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ".muster")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a muster project (or any parent up to root)")
		}
		dir = parent
	}
}

// requireProject ensures we're in a muster project directory
func requireProject() (string, *db.Store, error) {
	dir, err := findProjectDir()
	if err != nil {
		return "", nil, err
	}

	store, err := db.Open(filepath.Join(dir, ".muster", "muster.db"))
	if err != nil {
		return "", nil, fmt.Errorf("opening database: %w", err)
	}

	return dir, store, nil
}
