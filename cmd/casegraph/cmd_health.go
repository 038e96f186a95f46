package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to the configured services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			allOK := true

			st, err := newStore(ctx, logger)
			if err != nil {
				fmt.Printf("Store (%s): FAIL (%v)\n", cfg.Store.Backend, err)
				allOK = false
			} else {
				defer func() { _ = st.Close() }()
				if err := st.Ping(ctx); err != nil {
					fmt.Printf("Store (%s): FAIL (%v)\n", cfg.Store.Backend, err)
					allOK = false
				} else {
					fmt.Printf("Store (%s): OK\n", cfg.Store.Backend)
				}
			}

			switch {
			case cfg.Enrich.Provider == "":
				fmt.Println("Enrichment: disabled (pattern extraction only)")
			case cfg.Enrich.APIKey == "":
				fmt.Printf("Enrichment (%s): FAIL (no API key configured)\n", cfg.Enrich.Provider)
				allOK = false
			default:
				if _, err := newEnricher(logger); err != nil {
					fmt.Printf("Enrichment (%s): FAIL (%v)\n", cfg.Enrich.Provider, err)
					allOK = false
				} else {
					fmt.Printf("Enrichment (%s): OK\n", cfg.Enrich.Provider)
				}
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
