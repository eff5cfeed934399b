package main

import (
	"fmt"

	"family-tree-go/internal/app"
	"family-tree-go/internal/config"
	"family-tree-go/pkg/logger"
	"github.com/spf13/cobra"
)

func newRootCmd(log logger.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "family-tree",
		Short:         "Family tree profile service",
		Long:          "family-tree stores family profiles, keeps parent, child and spouse links consistent and builds display trees.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), log)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), log)
			},
		},
		newMigrateCmd(log),
		newTreeCmd(log),
	)
	return root
}

func newMigrateCmd(log logger.Logger) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the postgres profile store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(log)
			if err != nil {
				return err
			}
			if !statusOnly {
				return app.Migrate(cfg, log)
			}

			pending, err := app.PendingMigrations(cfg, log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "schema is up to date")
				return nil
			}
			for _, name := range pending {
				fmt.Fprintln(out, "pending", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "list pending migrations without applying them")
	return cmd
}
