package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := migratorFor(cmd)
				if err != nil {
					return err
				}
				if err := m.Up(); err != nil {
					return err
				}
				return printStatus(cmd, m)
			},
		},
		newMigrateDownCmd(),
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := migratorFor(cmd)
				if err != nil {
					return err
				}
				return printStatus(cmd, m)
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations (clears the dirty flag)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				m, err := migratorFor(cmd)
				if err != nil {
					return err
				}
				if err := m.Force(version); err != nil {
					return err
				}
				return printStatus(cmd, m)
			},
		},
	)
	return cmd
}

func newMigrateDownCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("steps must be at least 1, got %d", steps)
			}
			m, err := migratorFor(cmd)
			if err != nil {
				return err
			}
			if err := m.Down(steps); err != nil {
				return err
			}
			return printStatus(cmd, m)
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func migratorFor(cmd *cobra.Command) (MigrationService, error) {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return nil, err
	}
	return cc.Migrations()
}

func printStatus(cmd *cobra.Command, m MigrationService) error {
	st, err := m.Status()
	if err != nil {
		return err
	}
	dirty := ""
	if st.Dirty {
		dirty = " (dirty)"
	}
	PrintSuccess(cmd, fmt.Sprintf("schema version %d%s", st.Version, dirty))
	return nil
}
