package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/mosaico/internal/repository"
)

func PrintQuery(ctx context.Context, w io.Writer, db *sql.Tx, query string, args ...interface{}) error {
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	result, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return err
	}
	defer result.Close()
	columns, err := result.Columns()
	if err != nil {
		return err
	}
	if len(columns) > 1 {
		fmt.Fprintln(w, strings.Join(columns, "\t"))
	}
	pointers := make([]interface{}, len(columns))
	container := make([]string, len(columns))
	for i := 0; i < len(columns); i++ {
		pointers[i] = &container[i]
	}
	for result.Next() {
		if err := result.Scan(pointers...); err != nil {
			return err
		}
		fmt.Fprintln(w, strings.Join(container, "\t"))
	}
	return result.Err()
}

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query [flags] database [task] [label] [patch]",
	Short: "Queries an exported annotation database",
	Long: `Query annotations exported with 'mosaico export'.

Examples:
  # List all tasks and annotation modes
  mosaico query annotations.db

  # List all labels given for a task
  mosaico query annotations.db railspace

  # List patches labelled "rail" for a task
  mosaico query annotations.db railspace rail

  # Who labelled one patch as "rail"
  mosaico query annotations.db railspace rail patch-0-0-100-100-#map.png#.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		showIDs, err := cmd.Flags().GetBool("show-ids")
		if err != nil {
			return err
		}
		mode, err := cmd.Flags().GetString("mode")
		if err != nil {
			return err
		}
		if len(args) < 1 {
			return cmd.Help()
		}
		db, err := repository.Open(args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		tx, err := db.BeginTx(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		ctx, out := cmd.Context(), cmd.OutOrStdout()

		if len(args) < 2 {
			return PrintQuery(ctx, out, tx, "SELECT DISTINCT task, mode FROM annotations ORDER BY task, mode")
		}

		if len(args) < 3 {
			return PrintQuery(ctx, out, tx, "SELECT DISTINCT label FROM annotations WHERE task = ? AND mode = ? ORDER BY label", args[1], mode)
		}

		queryArgs := []interface{}{}
		query := ""
		if len(args) >= 4 {
			query += "SELECT annotations.username "
		} else if showIDs {
			query += "SELECT patches.id "
		} else {
			query += "SELECT patches.image_path "
		}
		query += "FROM annotations "
		query += "JOIN patches ON annotations.patch_id = patches.id "
		query += "WHERE annotations.task = ? AND annotations.mode = ? AND annotations.label = ? "
		queryArgs = append(queryArgs, args[1], mode, args[2])

		if len(args) >= 4 {
			query += "AND (patches.id = ? OR patches.image_path = ?) "
			queryArgs = append(queryArgs, args[3], args[3])
		}
		query += "ORDER BY 1"

		return PrintQuery(ctx, out, tx, query, queryArgs...)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().BoolP("show-ids", "i", false, "Show patch ids instead of paths")
	queryCmd.Flags().StringP("mode", "m", "patch", "Annotation mode: patch or context")
}
