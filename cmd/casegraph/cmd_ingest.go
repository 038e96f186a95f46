package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/casegraph/internal/classifier"
	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/normalize"
	"github.com/ajitpratap0/casegraph/internal/pipeline"
)

func ingestCmd() *cobra.Command {
	var (
		manifestPath string
		docType      string
		outputJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Extract and persist case artifacts from document files",
		Long: `Runs every document through normalization, classification, extraction,
entity resolution, persistence and review. Re-ingesting a document never
duplicates artifacts.

Documents come from file arguments or a YAML manifest (--manifest). A manifest
may set case_id, which --case overrides.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			var docs []models.Document
			id := caseID
			if manifestPath != "" {
				m, mdocs, err := loadManifest(manifestPath)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				if id == "" {
					id = m.CaseID
				}
				docs = append(docs, mdocs...)
			}
			for _, path := range args {
				doc, err := readDocument(path)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				docs = append(docs, doc)
			}
			if len(docs) == 0 {
				return fmt.Errorf("ingest: no documents given")
			}
			if id == "" {
				return fmt.Errorf("ingest: --case is required")
			}
			if docType != "" {
				t := models.DocumentType(docType)
				if !t.IsValid() {
					return fmt.Errorf("ingest: invalid --type %q", docType)
				}
				for i := range docs {
					if docs[i].DocumentType == "" {
						docs[i].DocumentType = t
					}
				}
			}

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("ingest: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			p, err := newPipeline(st, logger)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			report, err := p.Run(ctx, id, docs)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if outputJSON {
				out, marshalErr := json.MarshalIndent(report, "", "  ")
				if marshalErr != nil {
					return fmt.Errorf("ingest: marshaling JSON: %w", marshalErr)
				}
				fmt.Println(string(out))
				return nil
			}
			printReport(report)
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "YAML manifest listing the documents")
	cmd.Flags().StringVar(&docType, "type", "", "document type for documents that do not set one")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}

func printReport(r *pipeline.Report) {
	for _, d := range r.Documents {
		status := "ok"
		if len(d.Errors) > 0 {
			status = fmt.Sprintf("%d errors", len(d.Errors))
		}
		fmt.Printf("%-36s  %-22s  chunks=%d candidates=%d  %s\n",
			d.DocumentID, d.DocumentType, d.Chunks, d.Candidates, status)
	}
	fmt.Printf("Entities:    %d created, %d reused\n", r.EntitiesCreated, r.EntitiesReused)
	fmt.Printf("Events:      %d created, %d already present\n", r.EventsCreated, r.EventsSkipped)
	fmt.Printf("Connections: %d created, %d already present\n", r.ConnectionsCreated, r.ConnectionsSkipped)
	fmt.Printf("Alibis:      %d created, %d already present\n", r.AlibisCreated, r.AlibisSkipped)
	if r.Unresolved > 0 {
		fmt.Printf("Unresolved references: %d\n", r.Unresolved)
	}
	if r.EnrichFallbacks > 0 {
		fmt.Printf("Enrichment fallbacks: %d\n", r.EnrichFallbacks)
	}
	if r.Review != nil {
		fmt.Printf("Review queue: %s\n", r.Review.Summary())
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>...",
		Short: "Print the document type assigned to each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := classifier.NewClassifier(newLogger())
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("classify: %w", err)
				}
				fmt.Printf("%-22s  %s\n", c.Classify(normalize.Text(string(data)), path), path)
			}
			return nil
		},
	}
}
