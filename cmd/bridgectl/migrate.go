package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"aibridge.io/internal/migrate"
)

func newMigrateCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect schema migrations",
	}
	run := func(action string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := commandContext(cmd, flags)
			defer cancel()

			mgr := migrate.NewManager(store.DB(), migrate.Migrations(), migrate.WithSeeds(migrate.Seeds()))
			out := cmd.OutOrStdout()
			switch action {
			case "up":
				applied, err := mgr.Up(ctx)
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(out, "schema up to date")
				}
				for _, name := range applied {
					fmt.Fprintln(out, "applied", name)
				}
			case "down":
				name, err := mgr.Down(ctx)
				if errors.Is(err, migrate.ErrNoMigrations) {
					fmt.Fprintln(out, "nothing to roll back")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "rolled back", name)
			case "seed":
				applied, err := mgr.Seed(ctx)
				if err != nil {
					return err
				}
				for _, name := range applied {
					fmt.Fprintln(out, "seeded", name)
				}
			case "status":
				history, err := mgr.Status(ctx)
				if err != nil {
					return err
				}
				for _, name := range history {
					fmt.Fprintln(out, name)
				}
			}
			return nil
		}
	}
	for _, action := range []struct{ use, short string }{
		{"up", "Apply pending migrations"},
		{"down", "Roll back the latest migration"},
		{"seed", "Load seed data"},
		{"status", "List applied migrations"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   action.use,
			Short: action.short,
			Args:  cobra.NoArgs,
			RunE:  run(action.use),
		})
	}
	return cmd
}
