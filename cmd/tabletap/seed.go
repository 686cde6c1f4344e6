package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tabletap/tabletap/pkg/order/pgstore"
	"github.com/tabletap/tabletap/pkg/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the database schema and seed tables and menu items",
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	if cfg.PG.ConnString == "" {
		return fmt.Errorf("seed requires pg.connString (or TABLETAP_PG_CONNSTRING)")
	}

	ctx := context.Background()
	pg, err := pgstore.New(ctx, cfg.PG.ConnString, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	if err := pg.Seed(ctx, seed.Tables(), seed.MenuItems()); err != nil {
		return fmt.Errorf("failed to seed: %w", err)
	}

	fmt.Println("database seeded")
	return nil
}
