package query

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlog-ai/voxlog/pkg/blob"
	"github.com/voxlog-ai/voxlog/pkg/db"
	"github.com/voxlog-ai/voxlog/pkg/diary"
)

func setupService(t *testing.T) (*Service, *sql.DB, *blob.Store) {
	t.Helper()

	testDB, err := db.OpenDBConnection(filepath.Join(t.TempDir(), "query_test.db"), true, "NORMAL")
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })
	require.NoError(t, db.InitializeSchema(testDB, db.TargetSchemaVersion))

	blobs := blob.NewStore(filepath.Join(t.TempDir(), "uploads"))
	return NewService(testDB, blobs, nil), testDB, blobs
}

func insertTestEntry(t *testing.T, testDB *sql.DB, title string, createdAt time.Time, audioPath string) diary.Entry {
	t.Helper()
	entry, err := diary.InsertEntry(context.Background(), testDB, diary.Entry{
		ID:         uuid.New(),
		Title:      title,
		Content:    "content of " + title,
		Transcript: "transcript of " + title,
		Mood:       diary.MoodNeutral,
		AudioPath:  audioPath,
		CreatedAt:  createdAt,
	})
	require.NoError(t, err)
	return entry
}

func TestListBounds(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = svc.List(ctx, 1, -3)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = svc.List(ctx, 1, 101)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	// Zero limit falls back to the default page size.
	res, err := svc.List(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, svc.DefaultLimit(), res.Limit)
}

func TestListPagination(t *testing.T) {
	svc, testDB, _ := setupService(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	a := insertTestEntry(t, testDB, "first entry", base, "")
	b := insertTestEntry(t, testDB, "second entry", base.Add(time.Minute), "")
	c := insertTestEntry(t, testDB, "third entry", base.Add(2*time.Minute), "")

	res, err := svc.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, c.ID, res.Items[0].ID)
	assert.Equal(t, b.ID, res.Items[1].ID)

	res, err = svc.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, a.ID, res.Items[0].ID)
}

func TestSearchRequiresQuery(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Search(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchReturnsMatches(t *testing.T) {
	svc, testDB, _ := setupService(t)
	ctx := context.Background()

	entry := insertTestEntry(t, testDB, "hiking trip", time.Time{}, "")
	insertTestEntry(t, testDB, "grocery run", time.Time{}, "")

	res, err := svc.Search(ctx, "hiking")
	require.NoError(t, err)
	assert.Equal(t, "hiking", res.Query)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, entry.ID, res.Items[0].ID)
}

func TestGetNotFound(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, diary.ErrEntryNotFound)
}

func TestDeleteCascadesToAudioBlob(t *testing.T) {
	svc, testDB, blobs := setupService(t)
	ctx := context.Background()

	staged, err := blobs.Stage("cascade-test", "memo.webm", []byte("audio"))
	require.NoError(t, err)
	staged.Promote()

	entry := insertTestEntry(t, testDB, "with audio", time.Time{}, staged.Path())

	deleted, err := svc.Delete(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, statErr := os.Stat(staged.Path())
	assert.True(t, os.IsNotExist(statErr), "audio blob should be removed with the entry")

	_, err = svc.Get(ctx, entry.ID)
	assert.ErrorIs(t, err, diary.ErrEntryNotFound)

	// Second delete reports not-found and is a no-op.
	deleted, err = svc.Delete(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteMissingBlobIsNotAnError(t *testing.T) {
	svc, testDB, blobs := setupService(t)
	ctx := context.Background()

	entry := insertTestEntry(t, testDB, "phantom audio", time.Time{}, filepath.Join(blobs.Dir(), "never-written.webm"))

	deleted, err := svc.Delete(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}
