package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxlog-ai/voxlog/pkg/mcp"
)

var mcpUploadDir string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Voxlog MCP server (stdio)",
	Long: `Start a Model Context Protocol (MCP) server that exposes the diary
listing, search, retrieval and deletion functionality as MCP tools via STDIO.

The --dbpath flag is optional. If not provided, a system-specific default location will be used:
- Windows: %USERPROFILE%\AppData\Roaming\voxlog\diary.db
- macOS: ~/Library/Application Support/voxlog/diary.db
- Linux: ~/.local/share/voxlog/diary.db

Example:

  voxlog mcp --dbpath diary.db | tee server.log

  # Or simply use the default location:
  voxlog mcp`,
	RunE: func(cmd *cobra.Command, args []string) error {

		// Create server wrapper.
		srv, err := mcp.NewVoxlogMCPServer(dbPath, mcpUploadDir)
		if err != nil {
			return err
		}
		defer srv.Close()

		// Register all tools.
		s := srv.MCPRawServer()
		queries := srv.Queries()

		mcp.RegisterPingTool(s)
		mcp.RegisterListEntriesTool(s, queries)
		mcp.RegisterSearchEntriesTool(s, queries)
		mcp.RegisterGetEntryTool(s, queries)
		mcp.RegisterDeleteEntryTool(s, queries)

		// Log to stderr so we don't contaminate the JSON-RPC stream on stdout.
		fmt.Fprintf(os.Stderr, "Voxlog MCP server started. DB: %s\n", srv.DBPath)
		fmt.Fprintln(os.Stderr, "Available tools: ping, list_entries, search_entries, get_entry, delete_entry")
		fmt.Fprintln(os.Stderr, "Listening for MCP JSON-RPC on STDIN/STDOUT ... (Ctrl+C to quit)")

		// Run the server (blocks until stdio closes).
		return srv.Start()
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpUploadDir, "uploads", "uploads", "Directory holding stored audio files")
}
