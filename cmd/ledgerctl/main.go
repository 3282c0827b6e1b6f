package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vcard-ledger/internal/config"
	"github.com/vcard-ledger/internal/data"
	"github.com/vcard-ledger/internal/logger"
	"github.com/vcard-ledger/internal/reconciliation"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operational checks for the card ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "ledgerctl", "Base name of the .env config file")

	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(sweepIdempotencyCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openBackend loads the config named by --config and connects its storage backend
func openBackend(cmd *cobra.Command) (*data.Backend, *slog.Logger, error) {
	name, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(name)
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewLogger(cfg)

	backend, err := data.Open(cmd.Context(), log, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return backend, log, nil
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-sum ledger entries and report unbalanced transactions",
		Long: `Scan every ledger posting and report transactions whose debits and credits
differ or that do not have exactly one DEBIT and one CREDIT entry.
Exits with status 2 when anomalies are found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			backend, log, err := openBackend(cmd)
			if err != nil {
				return err
			}
			defer backend.Close()

			report, err := reconciliation.NewVerifier(backend.Ledger, log).Verify(cmd.Context(), limit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Clean() {
				backend.Close()
				os.Exit(2)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 1000, "Maximum anomalies reported per check")
	return cmd
}

func sweepIdempotencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-idempotency",
		Short: "Delete idempotency records past their TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, log, err := openBackend(cmd)
			if err != nil {
				return err
			}
			defer backend.Close()

			deleted, err := reconciliation.NewSweeper(backend.Idempotency, log).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired idempotency records\n", deleted)
			return nil
		},
	}
}
