package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"taskboard/internal/models"
)

func materializeCmd() *cobra.Command {
	var (
		asOf   string
		taskID string
	)

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Create the due occurrences of recurring tasks and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now()
			if asOf != "" {
				parsed, err := parseAsOf(asOf)
				if err != nil {
					return err
				}
				at = parsed
			}

			a, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := context.Background()
			if taskID != "" {
				created, err := a.tasks.MaterializeDue(ctx, taskID, at)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d occurrences of %s\n", len(created), taskID)
				return nil
			}

			created, err := a.tasks.MaterializeAll(ctx, at)
			fmt.Fprintf(cmd.OutOrStdout(), "created %d occurrences\n", len(created))
			return err
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "Materialize up to this date (YYYY-MM-DD or RFC 3339, default now)")
	cmd.Flags().StringVar(&taskID, "task", "", "Only materialize this recurring task")
	return cmd
}

func parseAsOf(raw string) (time.Time, error) {
	t, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--as-of: %w", err)
	}
	return t, nil
}
