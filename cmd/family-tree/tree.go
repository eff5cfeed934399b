package main

import (
	"encoding/json"
	"fmt"

	"family-tree-go/internal/app"
	"family-tree-go/internal/config"
	treedomain "family-tree-go/internal/domain/tree"
	"family-tree-go/pkg/logger"
	"github.com/spf13/cobra"
)

func newTreeCmd(log logger.Logger) *cobra.Command {
	var (
		fromSelf bool
		asJSON   bool
		stats    bool
	)

	cmd := &cobra.Command{
		Use:   "tree <profile-id>",
		Short: "Print the family tree around a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(log)
			if err != nil {
				return err
			}
			application, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer application.Close()

			var root *treedomain.Node
			if fromSelf {
				root, err = application.Trees().BuildFrom(cmd.Context(), args[0])
			} else {
				root, err = application.Trees().Build(cmd.Context(), args[0])
			}
			if err != nil {
				return fmt.Errorf("build tree for %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(root)
			}
			if err := treedomain.Render(out, root); err != nil {
				return err
			}
			if stats {
				s := treedomain.Summarize(root)
				_, err = fmt.Fprintf(out, "\nmembers=%d male=%d female=%d other=%d marriages=%d generations=%d\n",
					s.Members, s.Male, s.Female, s.Other, s.Marriages, s.Generations)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&fromSelf, "from-self", false, "start at the profile instead of its highest known ancestor")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tree as JSON")
	cmd.Flags().BoolVar(&stats, "stats", false, "print member statistics after the tree")
	return cmd
}
