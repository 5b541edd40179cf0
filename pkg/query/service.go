// Package query is the read/delete façade over the entry store. It owns
// the pagination and search-input bounds and the audio cascade on delete;
// it never talks to the transcription or structuring services.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/voxlog-ai/voxlog/pkg/blob"
	"github.com/voxlog-ai/voxlog/pkg/diary"
)

const (
	maxPageLimit     = 100
	defaultPageLimit = 20
)

var (
	ErrInvalidPage  = errors.New("page must be >= 1")
	ErrInvalidLimit = fmt.Errorf("limit must be between 1 and %d", maxPageLimit)
	ErrEmptyQuery   = errors.New("search query must not be empty")
)

// ListResult is one page of entries plus paging metadata.
type ListResult struct {
	Items []diary.ListItem `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// SearchResult holds full-text matches for a query.
type SearchResult struct {
	Items []diary.ListItem `json:"items"`
	Query string           `json:"query"`
	Total int              `json:"total"`
}

// Service reads and deletes entries.
type Service struct {
	db     *sql.DB
	blobs  *blob.Store
	logger *slog.Logger
}

// NewService wires the service. A nil logger falls back to slog.Default().
func NewService(db *sql.DB, blobs *blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, blobs: blobs, logger: logger}
}

// DefaultLimit is the page size used when the caller passes limit 0.
func (s *Service) DefaultLimit() int {
	return defaultPageLimit
}

// List returns one page of entries, newest first.
func (s *Service) List(ctx context.Context, page, limit int) (ListResult, error) {
	if limit == 0 {
		limit = defaultPageLimit
	}
	if page < 1 {
		return ListResult{}, ErrInvalidPage
	}
	if limit < 1 || limit > maxPageLimit {
		return ListResult{}, ErrInvalidLimit
	}

	items, total, err := diary.ListEntries(ctx, s.db, page, limit)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Search runs a full-text query over the entry projections.
func (s *Service) Search(ctx context.Context, query string) (SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return SearchResult{}, ErrEmptyQuery
	}

	items, err := diary.SearchEntries(ctx, s.db, query)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Items: items, Query: query, Total: len(items)}, nil
}

// Get fetches a single entry. Returns diary.ErrEntryNotFound when absent.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (diary.Entry, error) {
	return diary.GetEntry(ctx, s.db, id)
}

// Delete removes the entry's row and search projection, then its audio
// blob. A missing blob file is not an error. Returns whether a row existed.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	audioPath, existed, err := diary.DeleteEntry(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}

	if err := s.blobs.Remove(audioPath); err != nil {
		// The row is already gone; an undeletable blob is logged, not escalated.
		s.logger.Warn("audio blob removal failed", "entry_id", id, "path", audioPath, "error", err)
	}
	return true, nil
}
