package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tasktrack/tasktrack-go/internal/crypto"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:          "api",
		Short:        "Multi-user task tracking API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "optional YAML config file (env CONFIG_FILE)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), configPath)
		},
	}

	var length int
	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Print a random value suitable for JWT_SECRET_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := crypto.GenerateSecret(length)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
	secretCmd.Flags().IntVar(&length, "length", crypto.DefaultSecretLength, "secret length in characters")

	root.AddCommand(serveCmd, migrateCmd, secretCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
