package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/voxlog-ai/voxlog/pkg/diary"
	"github.com/voxlog-ai/voxlog/pkg/query"
)

// RegisterPingTool registers the simple ping tool.
func RegisterPingTool(s *server.MCPServer) {
	pingTool := mcp.NewTool("ping",
		mcp.WithDescription("Responds with 'pong' to check if the Voxlog MCP server is alive."),
	)
	s.AddTool(pingTool, pingHandler)
}

func pingHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("pong_voxlog"), nil
}

// RegisterListEntriesTool registers the list_entries tool.
func RegisterListEntriesTool(s *server.MCPServer, queries *query.Service) {
	listEntriesTool := mcp.NewTool("list_entries",
		mcp.WithDescription("Lists diary entries, newest first, with pagination."),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1. Defaults to 1.")),
		mcp.WithNumber("limit", mcp.Description("Entries per page, 1-100. Defaults to 20.")),
	)
	s.AddTool(listEntriesTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		page := 1
		if p, ok := request.Params.Arguments["page"].(float64); ok {
			page = int(p)
		}
		limit := 0
		if l, ok := request.Params.Arguments["limit"].(float64); ok {
			limit = int(l)
		}

		result, err := queries.List(ctx, page, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list entries: %v", err)), nil
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize entries to JSON: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

// RegisterSearchEntriesTool registers the search_entries tool.
func RegisterSearchEntriesTool(s *server.MCPServer, queries *query.Service) {
	searchEntriesTool := mcp.NewTool("search_entries",
		mcp.WithDescription("Full-text search over diary titles, bodies and transcripts. Returns up to 50 matches in relevance order."),
		mcp.WithString("query", mcp.Required(), mcp.Description("FTS5 query string.")),
	)
	s.AddTool(searchEntriesTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, qOk := request.Params.Arguments["query"].(string)
		if !qOk || q == "" {
			return mcp.NewToolResultError("'query' parameter is required and must be a non-empty string."), nil
		}

		result, err := queries.Search(ctx, q)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to search entries: %v", err)), nil
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize search result to JSON: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

// RegisterGetEntryTool registers the get_entry tool.
func RegisterGetEntryTool(s *server.MCPServer, queries *query.Service) {
	getEntryTool := mcp.NewTool("get_entry",
		mcp.WithDescription("Retrieves a full diary entry (including transcript) by its id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("The entry id (UUID).")),
	)
	s.AddTool(getEntryTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := parseIDArgument(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		entry, err := queries.Get(ctx, id)
		if err != nil {
			if errors.Is(err, diary.ErrEntryNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("Diary entry '%s' not found.", id)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("Error retrieving entry '%s': %v", id, err)), nil
		}

		jsonResult, err := json.Marshal(entry)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize entry to JSON: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

// RegisterDeleteEntryTool registers the delete_entry tool.
func RegisterDeleteEntryTool(s *server.MCPServer, queries *query.Service) {
	deleteEntryTool := mcp.NewTool("delete_entry",
		mcp.WithDescription("Deletes a diary entry and its stored audio file."),
		mcp.WithString("id", mcp.Required(), mcp.Description("The entry id (UUID).")),
	)
	s.AddTool(deleteEntryTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := parseIDArgument(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		deleted, err := queries.Delete(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to delete entry '%s': %v", id, err)), nil
		}
		if !deleted {
			return mcp.NewToolResultError(fmt.Sprintf("Diary entry '%s' not found.", id)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf(`{"ok": true, "deleted": "%s"}`, id)), nil
	})
}

func parseIDArgument(request mcp.CallToolRequest) (uuid.UUID, error) {
	idStr, ok := request.Params.Arguments["id"].(string)
	if !ok || idStr == "" {
		return uuid.Nil, errors.New("'id' parameter is required and must be a non-empty string.")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid entry id '%s': %w", idStr, err)
	}
	return id, nil
}
