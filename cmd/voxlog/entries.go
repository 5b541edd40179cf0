package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/voxlog-ai/voxlog/pkg/blob"
	pkgdb "github.com/voxlog-ai/voxlog/pkg/db"
	"github.com/voxlog-ai/voxlog/pkg/diary"
	"github.com/voxlog-ai/voxlog/pkg/query"
	"github.com/voxlog-ai/voxlog/pkg/utils"
)

var uploadDir string

// openQueryService resolves the database path, opens the connection and
// wraps it in the read/delete service. The caller owns the returned DB.
func openQueryService() (*sql.DB, *query.Service, error) {
	resolvedPath, err := utils.ResolveAndEnsureDBPath(dbPath)
	if err != nil {
		return nil, nil, err
	}

	dbConn, err := pkgdb.OpenDBConnection(resolvedPath, true, "NORMAL")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pkgdb.UpgradeDB(dbConn, resolvedPath, pkgdb.TargetSchemaVersion); err != nil {
		dbConn.Close()
		return nil, nil, err
	}

	return dbConn, query.NewService(dbConn, blob.NewStore(uploadDir), nil), nil
}

func printIndented(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Println(string(output))
	return nil
}

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Manage diary entries",
	Long:  `Provides commands for listing, searching, getting, and deleting diary entries.`,
}

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List diary entries, newest first",
	Long:  `Lists diary entries in reverse chronological order with pagination.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		dbConn, queries, err := openQueryService()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		result, err := queries.List(context.Background(), page, limit)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if result.Total == 0 {
			fmt.Println("No entries found.")
			return nil
		}
		return printIndented(result)
	},
}

var entrySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over diary entries",
	Long:  `Searches entry titles, bodies and transcripts using SQLite FTS5. Returns up to 50 matches in relevance order.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbConn, queries, err := openQueryService()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		result, err := queries.Search(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to search entries: %w", err)
		}

		if result.Total == 0 {
			fmt.Println("No entries found matching the query.")
			return nil
		}
		return printIndented(result)
	},
}

var entryGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get a specific diary entry by its ID",
	Long:  `Retrieves and displays the full diary entry, including its transcript, using its UUID.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entryID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid entry ID format: %w", err)
		}

		dbConn, queries, err := openQueryService()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		entry, err := queries.Get(context.Background(), entryID)
		if err != nil {
			if errors.Is(err, diary.ErrEntryNotFound) {
				fmt.Printf("Entry with ID %s not found.\n", args[0])
				return nil
			}
			return fmt.Errorf("failed to get entry: %w", err)
		}

		return printIndented(entry)
	},
}

var entryDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a diary entry by its ID",
	Long:  `Deletes a specific diary entry and its stored audio file using its UUID.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entryID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid entry ID format: %w", err)
		}

		dbConn, queries, err := openQueryService()
		if err != nil {
			return err
		}
		defer dbConn.Close()

		deleted, err := queries.Delete(context.Background(), entryID)
		if err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		if !deleted {
			fmt.Printf("Entry with ID %s not found.\n", args[0])
			return nil
		}

		fmt.Printf("Entry with ID %s and its audio file deleted successfully.\n", args[0])
		return nil
	},
}

func init() {
	entriesCmd.PersistentFlags().StringVar(&uploadDir, "uploads", "uploads", "Directory holding stored audio files")

	entryListCmd.Flags().Int("page", 1, "Page number, starting at 1")
	entryListCmd.Flags().Int("limit", 0, "Entries per page, 1-100 (0 uses the default)")
}
