package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/store"
)

func inconsistenciesCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "inconsistencies",
		Short: "Detect contradictions between alibi versions and the timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return caseRead(cmd, "inconsistencies", func(ctx context.Context, st store.GraphStore, id string, logger *slog.Logger) error {
				rep, err := newReviewer(st, logger).Run(ctx, id)
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(rep.Inconsistencies)
				}
				if len(rep.Inconsistencies) == 0 {
					fmt.Println("No inconsistencies found.")
					return nil
				}
				names, err := entityNames(ctx, st, id)
				if err != nil {
					return err
				}
				for _, inc := range rep.Inconsistencies {
					subject := names[inc.SubjectEntityID]
					if subject == "" {
						subject = "-"
					}
					versions := ""
					if inc.Version2 > 0 {
						versions = fmt.Sprintf("v%d->v%d", inc.Version1, inc.Version2)
					}
					fmt.Printf("%-14s  %-20s  %-8s  %s\n", inc.Kind, truncate(subject, 20), versions, inc.Detail)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}

func reviewCmd() *cobra.Command {
	var (
		outputJSON bool
		severity   string
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Show the review queue, most severe first",
		RunE: func(cmd *cobra.Command, args []string) error {
			sev := models.Severity(severity)
			switch sev {
			case "", models.SeverityHigh, models.SeverityMedium, models.SeverityLow:
			default:
				return fmt.Errorf("review: invalid --severity %q", severity)
			}
			return caseRead(cmd, "review", func(ctx context.Context, st store.GraphStore, id string, logger *slog.Logger) error {
				rep, err := newReviewer(st, logger).Run(ctx, id)
				if err != nil {
					return err
				}
				items := rep.Items
				if sev != "" {
					items = items[:0:0]
					for _, item := range rep.Items {
						if item.Severity == sev {
							items = append(items, item)
						}
					}
				}
				if outputJSON {
					return printJSON(items)
				}
				if len(items) == 0 {
					fmt.Println("Review queue is empty.")
					return nil
				}
				for _, item := range items {
					fmt.Printf("%-6s  %-20s  %-36s  %s\n", item.Severity, item.Kind, item.ArtifactID, item.Summary)
				}
				fmt.Printf("\n%s\n", rep.Summary())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().StringVar(&severity, "severity", "", "only show items of this severity (high, medium, low)")
	return cmd
}
