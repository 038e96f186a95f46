package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/casegraph/internal/models"
	"github.com/ajitpratap0/casegraph/internal/store"
)

func entitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Inspect the case's resolved entities",
	}

	cmd.AddCommand(
		entitiesListCmd(),
		entitiesGetCmd(),
		entitiesSearchCmd(),
	)

	return cmd
}

func printEntities(entities []models.Entity, outputJSON bool) error {
	if outputJSON {
		return printJSON(entities)
	}
	if len(entities) == 0 {
		fmt.Println("No entities found.")
		return nil
	}
	for i := range entities {
		e := &entities[i]
		fmt.Printf("%-36s  %-12s  %3d  %-28s  %s\n", e.ID, e.Type, e.Confidence, e.Name, truncate(e.Role, 30))
	}
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func entitiesListCmd() *cobra.Command {
	var (
		outputJSON bool
		entityType string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities, optionally of one type",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireCase("entities list")
			if err != nil {
				return err
			}
			t := models.EntityType(entityType)
			if t != "" && !t.IsValid() {
				return fmt.Errorf("entities list: invalid --type %q", entityType)
			}

			logger := newLogger()
			ctx := cmd.Context()
			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("entities list: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			entities, err := st.ListEntities(ctx, id, t)
			if err != nil {
				return fmt.Errorf("entities list: %w", err)
			}
			return printEntities(entities, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().StringVar(&entityType, "type", "", "entity type filter")
	return cmd
}

func entitiesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <entity-id>",
		Short: "Retrieve a single entity by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireCase("entities get")
			if err != nil {
				return err
			}

			logger := newLogger()
			ctx := cmd.Context()
			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("entities get: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			e, err := st.GetEntity(ctx, id, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("entities get: no entity %q in case %q", args[0], id)
			}
			if err != nil {
				return fmt.Errorf("entities get: %w", err)
			}
			return printJSON(e)
		},
	}
}

func entitiesSearchCmd() *cobra.Command {
	var (
		outputJSON bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search <name>",
		Short: "Find entities whose name contains the query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireCase("entities search")
			if err != nil {
				return err
			}

			logger := newLogger()
			ctx := cmd.Context()
			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("entities search: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			entities, err := st.SearchEntities(ctx, id, args[0], limit)
			if err != nil {
				return fmt.Errorf("entities search: %w", err)
			}
			return printEntities(entities, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of results")
	return cmd
}
