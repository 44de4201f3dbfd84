package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inboxd/inboxd/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			message_id  TEXT PRIMARY KEY,
			from_msisdn TEXT NOT NULL,
			to_msisdn   TEXT NOT NULL,
			ts          TIMESTAMPTZ NOT NULL,
			text        TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts, message_id);
		CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_msisdn);
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InsertMessage inserts a message; the primary key resolves duplicate
// deliveries in a single atomic statement.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *models.Message) (InsertOutcome, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO messages (message_id, from_msisdn, to_msisdn, ts, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO NOTHING
	`, msg.MessageID, msg.From, msg.To, msg.Timestamp.UTC(), msg.Text, msg.CreatedAt.UTC())
	if err != nil {
		return "", err
	}

	if tag.RowsAffected() == 0 {
		return OutcomeDuplicate, nil
	}
	return OutcomeCreated, nil
}

// ListMessages retrieves messages matching the filter with pagination.
func (s *PostgresStore) ListMessages(ctx context.Context, f ListFilter) ([]models.Message, int, error) {
	where, args := buildPostgresFilter(f)

	// Repeatable read pins one snapshot for the whole transaction, so
	// count and page agree even under concurrent inserts. Postgres
	// default read committed re-snapshots per statement.
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx)

	var total int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM messages `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT message_id, from_msisdn, to_msisdn, ts, text
		FROM messages %s
		ORDER BY ts ASC, message_id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	rows, err := tx.Query(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0, f.Limit)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.MessageID, &msg.From, &msg.To, &msg.Timestamp, &msg.Text); err != nil {
			return nil, 0, err
		}
		msg.Timestamp = msg.Timestamp.UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Cursor must be closed before the transaction can commit.
	rows.Close()

	return messages, total, tx.Commit(ctx)
}

// buildPostgresFilter renders the WHERE clause for a ListFilter.
func buildPostgresFilter(f ListFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.From != "" {
		args = append(args, f.From)
		conds = append(conds, fmt.Sprintf("from_msisdn = $%d", len(args)))
	}
	if f.Since != nil {
		args = append(args, f.Since.UTC())
		conds = append(conds, fmt.Sprintf("ts >= $%d", len(args)))
	}
	if f.Query != "" {
		args = append(args, likePattern(f.Query))
		conds = append(conds, fmt.Sprintf(`text ILIKE $%d ESCAPE '\'`, len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Stats computes aggregates over the whole store in one transaction.
// Repeatable read keeps the aggregate queries on one snapshot.
func (s *PostgresStore) Stats(ctx context.Context) (*models.StatsSnapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	snap := &models.StatsSnapshot{
		MessagesPerSender: make([]models.SenderCount, 0, 10),
	}

	err = tx.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT from_msisdn) FROM messages
	`).Scan(&snap.TotalMessages, &snap.SendersCount)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
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

	var first, last *time.Time
	err = tx.QueryRow(ctx, `SELECT MIN(ts), MAX(ts) FROM messages`).Scan(&first, &last)
	if err != nil {
		return nil, err
	}
	if first != nil {
		t := first.UTC()
		snap.FirstMessageTS = &t
	}
	if last != nil {
		t := last.UTC()
		snap.LastMessageTS = &t
	}

	return snap, tx.Commit(ctx)
}
