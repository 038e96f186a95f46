package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/store"
)

// caseExport is the JSON export of a whole case graph.
type caseExport struct {
	CaseID          string                  `json:"case_id"`
	ExportedAt      time.Time               `json:"exported_at"`
	Entities        []models.Entity         `json:"entities"`
	Events          []models.TimelineEvent  `json:"events"`
	Connections     []models.Connection     `json:"connections"`
	Alibis          []models.AlibiStatement `json:"alibis"`
	Inconsistencies []models.Inconsistency  `json:"inconsistencies"`
}

func exportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the case graph as JSON or the timeline as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "csv" {
				return fmt.Errorf("export: unsupported format %q (use json or csv)", format)
			}
			return caseRead(cmd, "export", func(ctx context.Context, st store.GraphStore, id string, logger *slog.Logger) error {
				exp, err := collectExport(ctx, st, id, logger)
				if err != nil {
					return err
				}

				var w io.Writer = os.Stdout
				if output != "" && output != "-" {
					f, createErr := os.Create(output)
					if createErr != nil {
						return fmt.Errorf("creating output file: %w", createErr)
					}
					defer func() { _ = f.Close() }()
					w = f
				}

				if format == "json" {
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					if encErr := enc.Encode(exp); encErr != nil {
						return fmt.Errorf("encoding JSON: %w", encErr)
					}
				} else if csvErr := writeTimelineCSV(w, exp); csvErr != nil {
					return csvErr
				}

				if output != "" && output != "-" {
					fmt.Fprintf(os.Stderr, "Exported case %s (%d entities, %d events) to %s\n",
						id, len(exp.Entities), len(exp.Events), output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format: json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file path (- for stdout)")
	return cmd
}

func collectExport(ctx context.Context, st store.GraphStore, id string, logger *slog.Logger) (*caseExport, error) {
	exp := &caseExport{CaseID: id, ExportedAt: time.Now().UTC()}
	var err error
	if exp.Entities, err = st.ListEntities(ctx, id, ""); err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	if exp.Events, err = st.ListTimelineEvents(ctx, id); err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	if exp.Connections, err = st.ListConnections(ctx, id); err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	if exp.Alibis, err = st.ListAlibis(ctx, id); err != nil {
		return nil, fmt.Errorf("listing alibis: %w", err)
	}
	rep, err := newReviewer(st, logger).Run(ctx, id)
	if err != nil {
		return nil, err
	}
	exp.Inconsistencies = rep.Inconsistencies
	return exp, nil
}

func writeTimelineCSV(w io.Writer, exp *caseExport) error {
	names := make(map[string]string, len(exp.Entities))
	for i := range exp.Entities {
		names[exp.Entities[i].ID] = exp.Entities[i].Name
	}

	cw := csv.NewWriter(w)
	headers := []string{"id", "event_time", "time_precision", "type", "title", "location", "participants", "confidence", "verification_status", "source_document_id"}
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i := range exp.Events {
		ev := &exp.Events[i]
		when := ""
		if ev.EventTime != nil {
			when = ev.EventTime.UTC().Format(time.RFC3339)
		}
		participants := make([]string, 0, len(ev.ParticipantIDs))
		for _, pid := range ev.ParticipantIDs {
			participants = append(participants, names[pid])
		}
		row := []string{
			ev.ID,
			when,
			string(ev.TimePrecision),
			string(ev.Type),
			ev.Title,
			ev.Location,
			strings.Join(participants, "; "),
			strconv.Itoa(ev.Confidence),
			string(ev.VerificationStatus),
			ev.SourceDocumentID,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
