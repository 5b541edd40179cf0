package ingest

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlog-ai/voxlog/pkg/blob"
	"github.com/voxlog-ai/voxlog/pkg/db"
	"github.com/voxlog-ai/voxlog/pkg/diary"
	"github.com/voxlog-ai/voxlog/pkg/structure"
	"github.com/voxlog-ai/voxlog/pkg/transcribe"
)

type fakeTranscriber struct {
	result transcribe.Result
	err    error
	called bool
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (transcribe.Result, error) {
	f.called = true
	return f.result, f.err
}

type fakeStructurer struct {
	entry  structure.Entry
	err    error
	called bool
}

func (f *fakeStructurer) Structure(ctx context.Context, transcript string) (structure.Entry, error) {
	f.called = true
	return f.entry, f.err
}

func setupPipelineTest(t *testing.T, tr Transcriber, st Structurer) (*Pipeline, *sql.DB, *blob.Store) {
	t.Helper()

	testDB, err := db.OpenDBConnection(filepath.Join(t.TempDir(), "ingest_test.db"), true, "NORMAL")
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })
	require.NoError(t, db.InitializeSchema(testDB, db.TargetSchemaVersion))

	blobs := blob.NewStore(filepath.Join(t.TempDir(), "uploads"))
	return NewPipeline(testDB, blobs, tr, st, Options{}), testDB, blobs
}

func blobCount(t *testing.T, blobs *blob.Store) int {
	t.Helper()
	entries, err := os.ReadDir(blobs.Dir())
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func rowCount(t *testing.T, testDB *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, testDB.QueryRow("SELECT COUNT(*) FROM diaries").Scan(&n))
	return n
}

func goodStructured() structure.Entry {
	return structure.Entry{
		Title:     "Rainy afternoon",
		Content:   "It rained all afternoon and I stayed inside reading.",
		Mood:      diary.MoodNeutral,
		KeyEvents: []string{"rain"},
		Todos:     []string{},
		Tags:      []string{"weather"},
	}
}

func TestCreateEntrySuccess(t *testing.T) {
	tr := &fakeTranscriber{result: transcribe.Result{Text: "it rained all afternoon", DurationSec: 31.2}}
	st := &fakeStructurer{entry: goodStructured()}
	pipeline, testDB, blobs := setupPipelineTest(t, tr, st)

	entry, err := pipeline.CreateEntry(context.Background(), []byte("audio"), "audio/webm", "memo.webm")
	require.NoError(t, err)

	assert.Equal(t, "Rainy afternoon", entry.Title)
	assert.Equal(t, "it rained all afternoon", entry.Transcript)
	assert.Equal(t, 31.2, entry.DurationSec)
	assert.Equal(t, filepath.Join(blobs.Dir(), entry.ID.String()+".webm"), entry.AudioPath)

	// Blob promoted, row persisted.
	_, statErr := os.Stat(entry.AudioPath)
	assert.NoError(t, statErr)
	assert.Equal(t, 1, rowCount(t, testDB))

	stored, err := diary.GetEntry(context.Background(), testDB, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Title, stored.Title)
}

func TestCreateEntryPayloadTooLargeFailsBeforeAnyCall(t *testing.T) {
	tr := &fakeTranscriber{}
	st := &fakeStructurer{}
	pipeline, testDB, blobs := setupPipelineTest(t, tr, st)
	pipeline.maxUploadBytes = 8

	_, err := pipeline.CreateEntry(context.Background(), []byte("way too many bytes"), "audio/webm", "memo.webm")
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	assert.False(t, tr.called, "transcriber must not be called for oversized input")
	assert.Equal(t, 0, blobCount(t, blobs))
	assert.Equal(t, 0, rowCount(t, testDB))
}

func TestCreateEntryRejectsUnknownContentKind(t *testing.T) {
	pipeline, _, blobs := setupPipelineTest(t, &fakeTranscriber{}, &fakeStructurer{})

	_, err := pipeline.CreateEntry(context.Background(), []byte("audio"), "text/plain", "memo.txt")
	assert.ErrorIs(t, err, ErrInvalidContentKind)
	assert.Equal(t, 0, blobCount(t, blobs))
}

func TestCreateEntryAcceptsLenientContentPrefixes(t *testing.T) {
	for _, contentType := range []string{"audio/ogg", "video/webm", "application/octet-stream"} {
		tr := &fakeTranscriber{result: transcribe.Result{Text: "hello", DurationSec: 1}}
		st := &fakeStructurer{entry: goodStructured()}
		pipeline, _, _ := setupPipelineTest(t, tr, st)

		_, err := pipeline.CreateEntry(context.Background(), []byte("audio"), contentType, "memo.webm")
		assert.NoError(t, err, "content type %s should be accepted", contentType)
	}
}

func TestCreateEntrySniffsUndeclaredContentType(t *testing.T) {
	tr := &fakeTranscriber{result: transcribe.Result{Text: "hello", DurationSec: 1}}
	st := &fakeStructurer{entry: goodStructured()}
	pipeline, _, _ := setupPipelineTest(t, tr, st)

	// A minimal RIFF/WAVE header is recognizable audio.
	wav := append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 32)...)
	_, err := pipeline.CreateEntry(context.Background(), wav, "", "memo.wav")
	assert.NoError(t, err)

	_, err = pipeline.CreateEntry(context.Background(), []byte("definitely not audio"), "", "memo.bin")
	assert.ErrorIs(t, err, ErrInvalidContentKind)
}

func TestCreateEntryEmptyTranscriptLeavesNothingBehind(t *testing.T) {
	tr := &fakeTranscriber{result: transcribe.Result{Text: "   \n\t ", DurationSec: 4}}
	st := &fakeStructurer{}
	pipeline, testDB, blobs := setupPipelineTest(t, tr, st)

	_, err := pipeline.CreateEntry(context.Background(), []byte("audio"), "audio/webm", "memo.webm")
	assert.ErrorIs(t, err, ErrNoSpeechDetected)

	assert.False(t, st.called, "structurer must not run on a blank transcript")
	assert.Equal(t, 0, blobCount(t, blobs), "blob must be cleaned up")
	assert.Equal(t, 0, rowCount(t, testDB))
}

func TestCreateEntryStructuringFailureCleansUpBlob(t *testing.T) {
	tr := &fakeTranscriber{result: transcribe.Result{Text: "some words", DurationSec: 5}}
	st := &fakeStructurer{err: errors.New("schema mismatch")}
	pipeline, testDB, blobs := setupPipelineTest(t, tr, st)

	_, err := pipeline.CreateEntry(context.Background(), []byte("audio"), "audio/webm", "memo.webm")

	var procErr *ProcessingError
	require.True(t, errors.As(err, &procErr))
	assert.Contains(t, procErr.Error(), "schema mismatch")

	assert.Equal(t, 0, blobCount(t, blobs), "blob must be cleaned up after structuring failure")
	assert.Equal(t, 0, rowCount(t, testDB))
}

func TestCreateEntryTranscriptionFailureWrapsCause(t *testing.T) {
	tr := &fakeTranscriber{err: &transcribe.RequestError{Status: 503, Body: "down"}}
	pipeline, _, blobs := setupPipelineTest(t, tr, &fakeStructurer{})

	_, err := pipeline.CreateEntry(context.Background(), []byte("audio"), "audio/webm", "memo.webm")

	var procErr *ProcessingError
	require.True(t, errors.As(err, &procErr))
	var reqErr *transcribe.RequestError
	assert.True(t, errors.As(err, &reqErr), "cause should stay reachable through Unwrap")
	assert.Equal(t, 0, blobCount(t, blobs))
}

func TestCreateEntryPersistsCoercedMood(t *testing.T) {
	structured := goodStructured()
	structured.Mood = diary.Mood("furious") // bypasses the client-side coercion
	tr := &fakeTranscriber{result: transcribe.Result{Text: "words", DurationSec: 2}}
	st := &fakeStructurer{entry: structured}
	pipeline, _, _ := setupPipelineTest(t, tr, st)

	entry, err := pipeline.CreateEntry(context.Background(), []byte("audio"), "audio/webm", "memo.webm")
	require.NoError(t, err)
	assert.Equal(t, diary.MoodNeutral, entry.Mood)
}
