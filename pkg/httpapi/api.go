// Package httpapi exposes the diary operations over HTTP. The shapes
// mirror the service contract: create, list, search, get, delete, plus a
// health probe and an optional static front-end directory.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	voxlog "github.com/voxlog-ai/voxlog/pkg"
	"github.com/voxlog-ai/voxlog/pkg/diary"
	"github.com/voxlog-ai/voxlog/pkg/ingest"
	"github.com/voxlog-ai/voxlog/pkg/query"
)

// Ingestor runs one audio submission through the ingestion pipeline.
type Ingestor interface {
	CreateEntry(ctx context.Context, audio []byte, declaredContentType, filename string) (diary.Entry, error)
}

// API bundles the handlers and their collaborators.
type API struct {
	ingestor       Ingestor
	queries        *query.Service
	maxUploadBytes int64
	logger         *slog.Logger
}

// New wires the API. A nil logger falls back to slog.Default().
func New(ingestor Ingestor, queries *query.Service, maxUploadBytes int64, logger *slog.Logger) *API {
	if maxUploadBytes <= 0 {
		maxUploadBytes = ingest.DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &API{ingestor: ingestor, queries: queries, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Routes returns a mux with all endpoints registered. staticDir, when
// non-empty, is served at the root for the recorder front-end build.
func (a *API) Routes(staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/diary/create", a.handleCreate)
	mux.HandleFunc("GET /api/diary/list", a.handleList)
	mux.HandleFunc("GET /api/diary/search", a.handleSearch)
	mux.HandleFunc("GET /api/diary/{id}", a.handleGet)
	mux.HandleFunc("DELETE /api/diary/{id}", a.handleDelete)
	mux.HandleFunc("GET /health", a.handleHealth)

	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}

	return mux
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	// Slack above the pipeline ceiling so multipart overhead doesn't
	// produce a confusing transport-level failure.
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes+1<<20)

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'audio' file field")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "failed to read audio upload")
		return
	}

	entry, err := a.ingestor.CreateEntry(r.Context(), audio, header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		a.writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	limit, err := queryInt(r, "limit", a.queries.DefaultLimit())
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}

	result, err := a.queries.List(r.Context(), page, limit)
	if err != nil {
		if errors.Is(err, query.ErrInvalidPage) || errors.Is(err, query.ErrInvalidLimit) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	result, err := a.queries.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	entry, err := a.queries.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, diary.ErrEntryNotFound) {
			writeError(w, http.StatusNotFound, "diary entry not found")
			return
		}
		a.writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	deleted, err := a.queries.Delete(r.Context(), id)
	if err != nil {
		a.writeInternalError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "diary entry not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": id.String()})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": voxlog.Version})
}

// writeIngestError maps the pipeline's error taxonomy onto status codes.
// The three input-level kinds keep their identity; everything else is a
// generic processing failure.
func (a *API) writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ingest.ErrInvalidContentKind):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ingest.ErrNoSpeechDetected):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		a.logger.Error("ingestion failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *API) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
