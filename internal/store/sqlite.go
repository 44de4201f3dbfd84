package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/inboxd/inboxd/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/inboxd.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/inboxd.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		message_id  TEXT PRIMARY KEY,
		from_msisdn TEXT NOT NULL,
		to_msisdn   TEXT NOT NULL,
		ts          INTEGER NOT NULL,
		text        TEXT NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts, message_id);
	CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_msisdn);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertMessage inserts a message, resolving duplicates atomically via
// the message_id primary key. Timestamps are stored as Unix
// milliseconds so the (ts, message_id) index orders chronologically.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *models.Message) (InsertOutcome, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (message_id, from_msisdn, to_msisdn, ts, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO NOTHING
	`, msg.MessageID, msg.From, msg.To, msg.Timestamp.UnixMilli(), msg.Text, msg.CreatedAt.UnixMilli())
	if err != nil {
		return "", err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return OutcomeDuplicate, nil
	}
	return OutcomeCreated, nil
}

// ListMessages retrieves messages matching the filter with pagination.
func (s *SQLiteStore) ListMessages(ctx context.Context, f ListFilter) ([]models.Message, int, error) {
	where, args := buildSQLiteFilter(f)

	// Count and page read inside one transaction so both reflect the
	// same state of the store.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback()

	if f.Query != "" {
		return listWithTextFilter(ctx, tx, f, where, args)
	}

	var total int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT message_id, from_msisdn, to_msisdn, ts, text
		FROM messages `+where+`
		ORDER BY ts ASC, message_id ASC
		LIMIT ? OFFSET ?
	`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0, f.Limit)
	for rows.Next() {
		var msg models.Message
		var ts int64
		if err := rows.Scan(&msg.MessageID, &msg.From, &msg.To, &ts, &msg.Text); err != nil {
			return nil, 0, err
		}
		msg.Timestamp = time.UnixMilli(ts).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Cursor must be closed before the transaction can commit.
	rows.Close()

	return messages, total, tx.Commit()
}

// listWithTextFilter applies the q substring filter after the SQL
// filters. SQLite lower() and LIKE only fold ASCII; q must be
// case-insensitive across all of Unicode, so the match runs in Go.
func listWithTextFilter(ctx context.Context, tx *sql.Tx, f ListFilter, where string, args []interface{}) ([]models.Message, int, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT message_id, from_msisdn, to_msisdn, ts, text
		FROM messages `+where+`
		ORDER BY ts ASC, message_id ASC
	`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	needle := strings.ToLower(f.Query)

	matched := make([]models.Message, 0, f.Limit)
	for rows.Next() {
		var msg models.Message
		var ts int64
		if err := rows.Scan(&msg.MessageID, &msg.From, &msg.To, &ts, &msg.Text); err != nil {
			return nil, 0, err
		}
		if !strings.Contains(strings.ToLower(msg.Text), needle) {
			continue
		}
		msg.Timestamp = time.UnixMilli(ts).UTC()
		matched = append(matched, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	total := len(matched)
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}

	return matched[start:end], total, tx.Commit()
}

// buildSQLiteFilter renders the WHERE clause for the SQL-side filters.
// The q filter is applied in Go, see listWithTextFilter.
func buildSQLiteFilter(f ListFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.From != "" {
		conds = append(conds, "from_msisdn = ?")
		args = append(args, f.From)
	}
	if f.Since != nil {
		conds = append(conds, "ts >= ?")
		args = append(args, sinceMillis(*f.Since))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// sinceMillis converts an inclusive lower bound to the store's
// millisecond resolution. The bound rounds up: flooring would admit
// rows up to 1ms earlier than the requested instant.
func sinceMillis(since time.Time) int64 {
	ms := since.UnixMilli()
	if since.After(time.UnixMilli(ms)) {
		ms++
	}
	return ms
}

// Stats computes aggregates over the whole store in one transaction.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.StatsSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	snap := &models.StatsSnapshot{
		MessagesPerSender: make([]models.SenderCount, 0, 10),
	}

	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT from_msisdn) FROM messages
	`).Scan(&snap.TotalMessages, &snap.SendersCount)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT from_msisdn, COUNT(*) AS c
		FROM messages
		GROUP BY from_msisdn
		ORDER BY c DESC, from_msisdn ASC
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sc models.SenderCount
		if err := rows.Scan(&sc.From, &sc.Count); err != nil {
			return nil, err
		}
		snap.MessagesPerSender = append(snap.MessagesPerSender, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Cursor must be closed before the transaction runs another query.
	rows.Close()

	var first, last sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT MIN(ts), MAX(ts) FROM messages`).Scan(&first, &last)
	if err != nil {
		return nil, err
	}
	if first.Valid {
		t := time.UnixMilli(first.Int64).UTC()
		snap.FirstMessageTS = &t
	}
	if last.Valid {
		t := time.UnixMilli(last.Int64).UTC()
		snap.LastMessageTS = &t
	}

	return snap, tx.Commit()
}
