// Package ingest orchestrates one audio submission through transcription,
// structuring and persistence. The pipeline owns the failure and cleanup
// policy for the whole chain.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/voxlog-ai/voxlog/pkg/blob"
	"github.com/voxlog-ai/voxlog/pkg/diary"
	"github.com/voxlog-ai/voxlog/pkg/structure"
	"github.com/voxlog-ai/voxlog/pkg/transcribe"
)

// Input-level failures the caller can surface to the user as-is. Everything
// else wraps into *ProcessingError.
var (
	ErrPayloadTooLarge    = errors.New("audio payload too large")
	ErrInvalidContentKind = errors.New("invalid content type")
	ErrNoSpeechDetected   = errors.New("no speech detected in audio")
)

// ProcessingError is the generic failure reported when transcription,
// structuring or persistence broke. Callers are not expected to tell those
// apart, only to show the cause.
type ProcessingError struct {
	Cause error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed: %v", e.Cause)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Transcriber converts a stored audio blob to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (transcribe.Result, error)
}

// Structurer converts a transcript to a structured diary record.
type Structurer interface {
	Structure(ctx context.Context, transcript string) (structure.Entry, error)
}

// DefaultMaxUploadBytes mirrors the 25 MB ceiling of the original service.
const DefaultMaxUploadBytes int64 = 25 << 20

// DefaultAllowedContentPrefixes is the lenient accept list for declared
// upload content types. A product policy choice, not a validation gap.
var DefaultAllowedContentPrefixes = []string{"audio/", "video/webm", "application/octet-stream"}

// Options tune the pipeline's input policy.
type Options struct {
	// MaxUploadBytes caps the accepted payload size. Zero means
	// DefaultMaxUploadBytes.
	MaxUploadBytes int64
	// AllowedContentPrefixes lists accepted declared-content-type prefixes.
	// Nil means DefaultAllowedContentPrefixes.
	AllowedContentPrefixes []string
	// Logger receives cleanup warnings. Nil means slog.Default().
	Logger *slog.Logger
}

// Pipeline runs raw audio bytes through to a persisted diary entry. Safe
// for concurrent use: each run works on a freshly generated id and shares
// only the database.
type Pipeline struct {
	db              *sql.DB
	blobs           *blob.Store
	transcriber     Transcriber
	structurer      Structurer
	maxUploadBytes  int64
	allowedPrefixes []string
	logger          *slog.Logger
}

// NewPipeline wires the pipeline's collaborators.
func NewPipeline(db *sql.DB, blobs *blob.Store, transcriber Transcriber, structurer Structurer, opts Options) *Pipeline {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.AllowedContentPrefixes == nil {
		opts.AllowedContentPrefixes = DefaultAllowedContentPrefixes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		db:              db,
		blobs:           blobs,
		transcriber:     transcriber,
		structurer:      structurer,
		maxUploadBytes:  opts.MaxUploadBytes,
		allowedPrefixes: opts.AllowedContentPrefixes,
		logger:          opts.Logger,
	}
}

// CreateEntry ingests one audio submission: validate, store the blob,
// transcribe, structure, persist. On any failure after the blob write the
// blob is discarded (best-effort) before the error is reported, so a
// failed create never leaves an orphaned file or a partial row.
func (p *Pipeline) CreateEntry(ctx context.Context, audio []byte, declaredContentType, filename string) (diary.Entry, error) {
	// Fail fast before any I/O or external call.
	if int64(len(audio)) > p.maxUploadBytes {
		return diary.Entry{}, fmt.Errorf("%w: %.1fMB (max %dMB)",
			ErrPayloadTooLarge, float64(len(audio))/(1<<20), p.maxUploadBytes>>20)
	}
	if err := p.checkContentKind(declaredContentType, audio); err != nil {
		return diary.Entry{}, err
	}

	entryID := uuid.New()
	staged, err := p.blobs.Stage(entryID.String(), filename, audio)
	if err != nil {
		return diary.Entry{}, &ProcessingError{Cause: err}
	}
	// The blob write acquires a release obligation: Promote on the success
	// path settles it, otherwise this discards the file.
	defer func() {
		if err := staged.Discard(); err != nil {
			p.logger.Warn("audio blob cleanup failed", "entry_id", entryID, "error", err)
		}
	}()

	result, err := p.transcriber.Transcribe(ctx, staged.Path())
	if err != nil {
		return diary.Entry{}, &ProcessingError{Cause: err}
	}
	if strings.TrimSpace(result.Text) == "" {
		return diary.Entry{}, ErrNoSpeechDetected
	}

	structured, err := p.structurer.Structure(ctx, result.Text)
	if err != nil {
		return diary.Entry{}, &ProcessingError{Cause: err}
	}

	entry, err := diary.InsertEntry(ctx, p.db, diary.Entry{
		ID:          entryID,
		Title:       structured.Title,
		Content:     structured.Content,
		Transcript:  result.Text,
		Mood:        structured.Mood,
		KeyEvents:   structured.KeyEvents,
		Todos:       structured.Todos,
		Tags:        structured.Tags,
		AudioPath:   staged.Path(),
		DurationSec: result.DurationSec,
	})
	if err != nil {
		return diary.Entry{}, &ProcessingError{Cause: err}
	}

	staged.Promote()
	p.logger.Info("diary entry ingested", "entry_id", entry.ID, "duration_sec", entry.DurationSec)
	return entry, nil
}

// checkContentKind accepts any declared type matching the allow-list of
// prefixes. When no type is declared the payload's magic bytes decide:
// audio and video kinds pass.
func (p *Pipeline) checkContentKind(declaredContentType string, audio []byte) error {
	if declaredContentType == "" {
		if filetype.IsAudio(audio) || filetype.IsVideo(audio) {
			return nil
		}
		return fmt.Errorf("%w: no content type declared and payload is not recognizable audio", ErrInvalidContentKind)
	}

	for _, prefix := range p.allowedPrefixes {
		if strings.HasPrefix(declaredContentType, prefix) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidContentKind, declaredContentType)
}
