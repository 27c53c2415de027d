package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/punch-kiosk/internal/config"
	"github.com/kozaktomas/punch-kiosk/internal/database"
	_ "github.com/kozaktomas/punch-kiosk/internal/database/mariadb"
	_ "github.com/kozaktomas/punch-kiosk/internal/database/postgres"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the identity and attendance tables",
	RunE:  runDBMigrate,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}

// openBackend connects to the configured database.
func openBackend(ctx context.Context, cfg *config.Config) (database.Backend, error) {
	fmt.Printf("Connecting to %s database...\n", cfg.Database.Driver)
	backend, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	return backend, nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	fmt.Println("Schema is up to date")
	return nil
}
