package diary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEntryNotFound = errors.New("diary entry not found")
)

// searchLimit caps the number of full-text search results.
const searchLimit = 50

const (
	insertEntryStatement = `
	INSERT INTO diaries (id, title, content, transcript, mood, key_events, todos, tags, audio_path, duration_sec, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	insertProjectionStatement = `
	INSERT INTO diaries_fts (rowid, title, content, transcript)
	VALUES (?, ?, ?, ?)
	`

	getEntryStatement = `
	SELECT id, title, content, transcript, mood, key_events, todos, tags, audio_path, duration_sec, created_at
	FROM diaries
	WHERE id = ?
	`

	countEntriesStatement = `
	SELECT COUNT(*) FROM diaries
	`

	listEntriesStatement = `
	SELECT id, title, mood, tags, duration_sec, created_at
	FROM diaries
	ORDER BY created_at DESC, rowid DESC
	LIMIT ? OFFSET ?
	`

	searchEntriesStatement = `
	SELECT d.id, d.title, d.mood, d.tags, d.duration_sec, d.created_at
	FROM diaries_fts f
	JOIN diaries d ON d.rowid = f.rowid
	WHERE diaries_fts MATCH ?
	ORDER BY rank
	LIMIT ?
	`

	getEntryRowStatement = `
	SELECT rowid, title, content, transcript, audio_path
	FROM diaries
	WHERE id = ?
	`

	deleteProjectionStatement = `
	INSERT INTO diaries_fts (diaries_fts, rowid, title, content, transcript)
	VALUES ('delete', ?, ?, ?, ?)
	`

	deleteEntryStatement = `
	DELETE FROM diaries
	WHERE id = ?
	`
)

// InsertEntry writes a fully-formed entry and its full-text projection in a
// single transaction. Either both land or neither does; a duplicate id or
// any I/O failure rolls the whole write back. The stored entry is returned.
func InsertEntry(ctx context.Context, db *sql.DB, entry Entry) (Entry, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Mood = NormalizeMood(string(entry.Mood))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		insertEntryStatement,
		entry.ID.String(),
		entry.Title,
		entry.Content,
		entry.Transcript,
		string(entry.Mood),
		marshalStrings(entry.KeyEvents),
		marshalStrings(entry.Todos),
		marshalStrings(entry.Tags),
		nullString(entry.AudioPath),
		entry.DurationSec,
		timeToUnix(entry.CreatedAt),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert entry %s: %w", entry.ID, err)
	}

	rowid, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("resolve rowid for entry %s: %w", entry.ID, err)
	}

	_, err = tx.ExecContext(ctx, insertProjectionStatement, rowid, entry.Title, entry.Content, entry.Transcript)
	if err != nil {
		return Entry{}, fmt.Errorf("insert search projection for entry %s: %w", entry.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit entry %s: %w", entry.ID, err)
	}

	return GetEntry(ctx, db, entry.ID)
}

// GetEntry retrieves an entry by id.
func GetEntry(ctx context.Context, db *sql.DB, id uuid.UUID) (Entry, error) {
	var (
		entry       Entry
		idStr       string
		mood        string
		keyEvents   string
		todos       string
		tags        string
		audioPath   sql.NullString
		durationSec sql.NullFloat64
		createdAt   float64
	)

	err := db.QueryRowContext(ctx, getEntryStatement, id.String()).Scan(
		&idStr,
		&entry.Title,
		&entry.Content,
		&entry.Transcript,
		&mood,
		&keyEvents,
		&todos,
		&tags,
		&audioPath,
		&durationSec,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, fmt.Errorf("get entry %s: %w", id, err)
	}

	entry.ID, err = uuid.Parse(idStr)
	if err != nil {
		return Entry{}, fmt.Errorf("parse entry id '%s': %w", idStr, err)
	}
	entry.Mood = Mood(mood)
	if entry.KeyEvents, err = unmarshalStrings(keyEvents); err != nil {
		return Entry{}, fmt.Errorf("decode key_events for entry %s: %w", id, err)
	}
	if entry.Todos, err = unmarshalStrings(todos); err != nil {
		return Entry{}, fmt.Errorf("decode todos for entry %s: %w", id, err)
	}
	if entry.Tags, err = unmarshalStrings(tags); err != nil {
		return Entry{}, fmt.Errorf("decode tags for entry %s: %w", id, err)
	}
	entry.AudioPath = audioPath.String
	entry.DurationSec = durationSec.Float64
	entry.CreatedAt = timeFromUnix(createdAt)

	return entry, nil
}

// ListEntries returns one page of list items ordered by creation time
// descending, plus the total entry count. Bounds on page and limit are the
// caller's responsibility.
func ListEntries(ctx context.Context, db *sql.DB, page, limit int) ([]ListItem, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, countEntriesStatement).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := db.QueryContext(ctx, listEntriesStatement, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	items, err := scanListItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SearchEntries runs a full-text match against the (title, content,
// transcript) projection and returns up to 50 items in relevance order.
// The query passes to FTS5 verbatim.
func SearchEntries(ctx context.Context, db *sql.DB, query string) ([]ListItem, error) {
	rows, err := db.QueryContext(ctx, searchEntriesStatement, query, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	defer rows.Close()

	return scanListItems(rows)
}

// DeleteEntry removes the row and its search projection in one transaction.
// It returns the stored audio path (empty if none) and whether a row
// existed. Deleting a missing entry is not an error.
func DeleteEntry(ctx context.Context, db *sql.DB, id uuid.UUID) (string, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		rowid      int64
		title      string
		content    string
		transcript string
		audioPath  sql.NullString
	)
	err = tx.QueryRowContext(ctx, getEntryRowStatement, id.String()).Scan(&rowid, &title, &content, &transcript, &audioPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load entry %s for delete: %w", id, err)
	}

	// External-content FTS5 tables drop a projection via the special
	// 'delete' command, which needs the old column values.
	_, err = tx.ExecContext(ctx, deleteProjectionStatement, rowid, title, content, transcript)
	if err != nil {
		return "", false, fmt.Errorf("delete search projection for entry %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, deleteEntryStatement, id.String())
	if err != nil {
		return "", false, fmt.Errorf("delete entry %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit delete of entry %s: %w", id, err)
	}

	return audioPath.String, true, nil
}

func scanListItems(rows *sql.Rows) ([]ListItem, error) {
	items := []ListItem{}
	for rows.Next() {
		var (
			item        ListItem
			idStr       string
			mood        string
			tags        string
			durationSec sql.NullFloat64
			createdAt   float64
		)
		if err := rows.Scan(&idStr, &item.Title, &mood, &tags, &durationSec, &createdAt); err != nil {
			return nil, fmt.Errorf("scan list item: %w", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse entry id '%s': %w", idStr, err)
		}
		item.ID = id
		item.Mood = Mood(mood)
		if item.Tags, err = unmarshalStrings(tags); err != nil {
			return nil, fmt.Errorf("decode tags for entry %s: %w", id, err)
		}
		item.DurationSec = durationSec.Float64
		item.CreatedAt = timeFromUnix(createdAt)

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list rows: %w", err)
	}

	return items, nil
}

// marshalStrings encodes a string slice as a JSON array, treating nil as empty.
func marshalStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, err := json.Marshal(values)
	if err != nil {
		// A []string cannot fail to marshal.
		return "[]"
	}
	return string(b)
}

func unmarshalStrings(raw string) ([]string, error) {
	values := []string{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Timestamps are stored as REAL unix seconds. Fractional seconds survive to
// roughly microsecond precision, enough to keep list ordering stable.
func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
