package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"sage/internal/app"
	"sage/pkg/logger"
)

// withApp loads configuration, connects and runs fn with the wired services.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(logger.WithLogger(ctx, log), a)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sagectl",
		Short:         "Operator tasks for the sage schema and homologation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newMaterializeCmd(),
		newSyncCmd(),
		newMatchCmd(),
		newReportCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending metadata migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Migrate(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", n)
				return nil
			})
		},
	}
}

func newMaterializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "materialize PRODUCT_ID",
		Short: "Create the storage table of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Services.Materializer.Materialize(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync PRODUCT_ID",
		Short: "Add columns for fields defined after the table was created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Services.Materializer.Sync(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newMatchCmd() *cobra.Command {
	var product int64
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match pending products against the official catalog",
		Long: "Without --product, runs auto-matching over every pending product and " +
			"persists the results. With --product, prints the candidates for one product.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if product > 0 {
					matches, err := a.Services.Homologation.FindMatches(ctx, product)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), matches)
				}
				reports, err := a.Services.Homologation.AutoMatch(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), reports)
			})
		},
	}
	cmd.Flags().Int64Var(&product, "product", 0, "only list candidates for this product")
	return cmd
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Send the homologation report if its period elapsed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				sent, err := a.Services.Homologation.SendReportIfDue(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "report sent: %t\n", sent)
				return nil
			})
		},
	}
}

func parseProductID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", s)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
