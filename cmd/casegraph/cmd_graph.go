package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/store"
)

// caseRead opens the store and runs fn against the --case case.
func caseRead(cmd *cobra.Command, name string, fn func(ctx context.Context, st store.GraphStore, caseID string, logger *slog.Logger) error) error {
	id, err := requireCase(name)
	if err != nil {
		return err
	}
	logger := newLogger()
	ctx := cmd.Context()
	st, err := newStore(ctx, logger)
	if err != nil {
		return fmt.Errorf("%s: connecting to store: %w", name, err)
	}
	defer func() { _ = st.Close() }()

	if err := fn(ctx, st, id, logger); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func timelineCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print the case timeline in chronological order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return caseRead(cmd, "timeline", func(ctx context.Context, st store.GraphStore, id string, _ *slog.Logger) error {
				events, err := st.ListTimelineEvents(ctx, id)
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(events)
				}
				if len(events) == 0 {
					fmt.Println("No events found.")
					return nil
				}
				for i := range events {
					ev := &events[i]
					fmt.Printf("%-16s  %-11s  %-16s  %3d  %s\n",
						formatTime(ev.EventTime), ev.TimePrecision, ev.Type, ev.Confidence, truncate(ev.Title, 60))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}

func connectionsCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "connections",
		Short: "List the relationships between case entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return caseRead(cmd, "connections", func(ctx context.Context, st store.GraphStore, id string, _ *slog.Logger) error {
				conns, err := st.ListConnections(ctx, id)
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(conns)
				}
				if len(conns) == 0 {
					fmt.Println("No connections found.")
					return nil
				}
				names, err := entityNames(ctx, st, id)
				if err != nil {
					return err
				}
				for i := range conns {
					c := &conns[i]
					fmt.Printf("%-24s  -[%s]->  %-24s  %s\n",
						truncate(names[c.FromEntityID], 24), c.ConnectionType, truncate(names[c.ToEntityID], 24), c.Confidence)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}

func alibisCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "alibis",
		Short: "List alibi statements per subject and version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return caseRead(cmd, "alibis", func(ctx context.Context, st store.GraphStore, id string, _ *slog.Logger) error {
				alibis, err := st.ListAlibis(ctx, id)
				if err != nil {
					return err
				}
				if outputJSON {
					return printJSON(alibis)
				}
				if len(alibis) == 0 {
					fmt.Println("No alibi statements found.")
					return nil
				}
				names, err := entityNames(ctx, st, id)
				if err != nil {
					return err
				}
				for i := range alibis {
					a := &alibis[i]
					fmt.Printf("%-24s  v%-2d  %s - %s  %-24s  %s\n",
						truncate(names[a.SubjectEntityID], 24), a.VersionNumber,
						formatTime(a.AlibiStart), formatTime(a.AlibiEnd),
						truncate(a.LocationClaimed, 24), truncate(a.ActivityClaimed, 30))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}

func entityNames(ctx context.Context, st store.GraphStore, caseID string) (map[string]string, error) {
	entities, err := st.ListEntities(ctx, caseID, "")
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(entities))
	for i := range entities {
		names[entities[i].ID] = entities[i].Name
	}
	return names, nil
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show artifact counts for the case",
		RunE: func(cmd *cobra.Command, args []string) error {
			return caseRead(cmd, "stats", func(ctx context.Context, st store.GraphStore, id string, _ *slog.Logger) error {
				stats, err := st.Stats(ctx, id)
				if err != nil {
					return err
				}
				fmt.Printf("Case:        %s\n", stats.CaseID)
				fmt.Printf("Entities:    %d\n", stats.Entities)
				for _, t := range models.ValidEntityTypes {
					if n := stats.EntitiesByType[string(t)]; n > 0 {
						fmt.Printf("  %-13s %d\n", t, n)
					}
				}
				fmt.Printf("Events:      %d\n", stats.Events)
				for _, t := range models.ValidEventTypes {
					if n := stats.EventsByType[string(t)]; n > 0 {
						fmt.Printf("  %-17s %d\n", t, n)
					}
				}
				fmt.Printf("Connections: %d\n", stats.Connections)
				fmt.Printf("Alibis:      %d\n", stats.Alibis)
				return nil
			})
		},
	}
}
