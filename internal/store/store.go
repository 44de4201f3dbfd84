package store

import (
	"context"
	"strings"
	"time"

	"github.com/inboxd/inboxd/internal/models"
)

// InsertOutcome reports how the store resolved an insert. Duplicate is
// a normal outcome, never an error: redelivered webhooks are expected.
type InsertOutcome string

const (
	OutcomeCreated   InsertOutcome = "created"
	OutcomeDuplicate InsertOutcome = "duplicate"
)

// ListFilter describes a filtered, paginated message listing.
// Filters combine with AND semantics; zero values mean "no filter".
type ListFilter struct {
	From   string     // exact match on sender
	Since  *time.Time // inclusive lower bound on message timestamp
	Query  string     // case-insensitive substring match on text
	Limit  int
	Offset int
}

// MessageStore defines the interface for message persistence.
// Both PostgresStore and SQLiteStore implement this interface.
type MessageStore interface {
	Close()
	Ping(ctx context.Context) error

	// InsertMessage persists a message exactly once per MessageID.
	// A re-insert with an existing MessageID leaves the stored row
	// untouched and returns OutcomeDuplicate. The check-and-write is
	// a single atomic statement: under a concurrent race on one key
	// exactly one caller observes OutcomeCreated.
	InsertMessage(ctx context.Context, msg *models.Message) (InsertOutcome, error)

	// ListMessages returns the page [Offset, Offset+Limit) of messages
	// matching the filter, ordered by (ts ASC, message_id ASC), plus
	// the total number of matching rows before pagination. Count and
	// page are read within one transaction.
	ListMessages(ctx context.Context, f ListFilter) ([]models.Message, int, error)

	// Stats computes aggregates over the entire store.
	Stats(ctx context.Context) (*models.StatsSnapshot, error)
}

// likePattern builds a LIKE pattern matching q as a literal substring,
// escaping LIKE metacharacters with backslash.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
