package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezoom-ai/promptgate/internal/core/config"
	"github.com/rezoom-ai/promptgate/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored prompt templates and their current versions",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.QueryContext(ctx, `
		SELECT scenario, language, COALESCE(provider, ''), version, is_active
		FROM prompt_templates
		ORDER BY scenario, language, provider`)
	if err != nil {
		slog.Error("Failed to query templates", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SCENARIO\tLANGUAGE\tPROVIDER\tVERSION\tACTIVE")

	for rows.Next() {
		var scenario, language, provider string
		var version int
		var active bool
		if err := rows.Scan(&scenario, &language, &provider, &version, &active); err != nil {
			continue
		}
		if provider == "" {
			provider = "generic"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", scenario, language, provider, version, active)
	}
	_ = w.Flush()
}
