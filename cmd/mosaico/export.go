package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/lewtec/mosaico/annotation"
	"github.com/lewtec/mosaico/internal/repository"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export config.yaml",
	Short: "Copy the labels of a session into a SQLite database",
	Long: `Copy every patch of the session and its patch and context labels into a
SQLite database, so the work of many annotators can be queried together.

Example:
  mosaico export config.yaml -u alice -d annotations.db`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadSessionConfig(cmd, args[0])
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		session, err := openSession(cmd, config)
		if err != nil {
			return fmt.Errorf("failed to open session: %w", err)
		}

		databaseFile, _ := cmd.Flags().GetString("database")
		log.Printf("Database: %s", databaseFile)
		db, err := repository.Open(databaseFile)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		result, err := annotation.ExportSession(cmd.Context(), session, db)
		if err != nil {
			return fmt.Errorf("failed to export session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d patches and %d annotations\n", result.Patches, result.Annotations)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	addSessionFlags(exportCmd)
	exportCmd.Flags().StringP("database", "d", "annotations.db", "Database file to write")
}
