package mcp

import (
	"database/sql"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	voxlog "github.com/voxlog-ai/voxlog/pkg"
	"github.com/voxlog-ai/voxlog/pkg/blob"
	pkgdb "github.com/voxlog-ai/voxlog/pkg/db"
	"github.com/voxlog-ai/voxlog/pkg/query"
	"github.com/voxlog-ai/voxlog/pkg/utils"
)

// VoxlogMCPServer exposes the diary read/delete surface over MCP stdio.
// Ingestion stays HTTP-only: raw audio bytes do not fit a stdio tool call.
type VoxlogMCPServer struct {
	mcpServer *server.MCPServer
	db        *sql.DB
	queries   *query.Service
	DBPath    string
}

// NewVoxlogMCPServer spins up an MCP server backed by the SQLite database
// at dbPath, with audio blobs under uploadDir.
func NewVoxlogMCPServer(dbPath, uploadDir string) (*VoxlogMCPServer, error) {
	resolvedPath, err := utils.ResolveAndEnsureDBPath(dbPath)
	if err != nil {
		return nil, err
	}

	s := server.NewMCPServer(
		"Voxlog MCP Server",
		voxlog.Version,
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
		server.WithRecovery(),
	)

	dbConn, err := pkgdb.OpenDBConnection(resolvedPath, true, "FULL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Automatically initialize or migrate the database schema.
	if err := pkgdb.UpgradeDB(dbConn, resolvedPath, pkgdb.TargetSchemaVersion); err != nil {
		dbConn.Close()
		return nil, fmt.Errorf("failed to initialize/upgrade database schema for '%s': %w", resolvedPath, err)
	}

	return &VoxlogMCPServer{
		mcpServer: s,
		db:        dbConn,
		queries:   query.NewService(dbConn, blob.NewStore(uploadDir), nil),
		DBPath:    resolvedPath,
	}, nil
}

// Start runs the stdio event loop. Make sure to register tools beforehand.
func (s *VoxlogMCPServer) Start() error {
	return server.ServeStdio(s.mcpServer)
}

// DB returns the underlying *sql.DB.
func (s *VoxlogMCPServer) DB() *sql.DB {
	return s.db
}

// Queries returns the read/delete service backing the tools.
func (s *VoxlogMCPServer) Queries() *query.Service {
	return s.queries
}

// MCPRawServer exposes the wrapped MCP server for tool registration.
func (s *VoxlogMCPServer) MCPRawServer() *server.MCPServer {
	return s.mcpServer
}

// Close releases the database connection.
func (s *VoxlogMCPServer) Close() error {
	return s.db.Close()
}
