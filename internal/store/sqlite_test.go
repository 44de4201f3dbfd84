package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/inboxd/inboxd/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func testMessage(id, from string, ts time.Time, text string) *models.Message {
	return &models.Message{
		MessageID: id,
		From:      from,
		To:        "+14155550100",
		Timestamp: ts,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

func mustInsert(t *testing.T, s *SQLiteStore, msg *models.Message) {
	t.Helper()
	outcome, err := s.InsertMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("insert %s: %v", msg.MessageID, err)
	}
	if outcome != OutcomeCreated {
		t.Fatalf("insert %s: expected created, got %s", msg.MessageID, outcome)
	}
}

var baseTS = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func TestInsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := testMessage("m1", "+919876543210", baseTS, "Hello")
	outcome, err := s.InsertMessage(ctx, msg)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if outcome != OutcomeCreated {
		t.Fatalf("expected created, got %s", outcome)
	}

	// Re-insert with the same key but different text: still a
	// duplicate, and the stored row must not change.
	again := testMessage("m1", "+919876543210", baseTS, "Changed")
	outcome, err = s.InsertMessage(ctx, again)
	if err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", outcome)
	}

	items, total, err := s.ListMessages(ctx, ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected exactly one stored row, got total=%d len=%d", total, len(items))
	}
	if items[0].Text != "Hello" {
		t.Fatalf("duplicate insert altered the record: %q", items[0].Text)
	}
}

func TestConcurrentInsertSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 20
	outcomes := make([]InsertOutcome, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = s.InsertMessage(ctx, testMessage("race", "+15550000001", baseTS, "racing"))
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("insert %d: %v", i, errs[i])
		}
		if outcomes[i] == OutcomeCreated {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one created, got %d", created)
	}

	_, total, err := s.ListMessages(ctx, ListFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one stored row, got %d", total)
	}
}

func TestListOrderingDeterministic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Colliding timestamps: message_id breaks the tie.
	mustInsert(t, s, testMessage("b", "+15550000001", baseTS, "second by id"))
	mustInsert(t, s, testMessage("a", "+15550000002", baseTS, "first by id"))
	mustInsert(t, s, testMessage("c", "+15550000003", baseTS.Add(-time.Second), "earliest"))

	want := []string{"c", "a", "b"}
	for run := 0; run < 3; run++ {
		items, total, err := s.ListMessages(ctx, ListFilter{Limit: 10})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total != 3 {
			t.Fatalf("expected total 3, got %d", total)
		}
		for i, id := range want {
			if items[i].MessageID != id {
				t.Fatalf("run %d: position %d: expected %s, got %s", run, i, id, items[i].MessageID)
			}
		}
	}
}

func TestListPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("m%d", i)
		mustInsert(t, s, testMessage(id, "+15550000001", baseTS.Add(time.Duration(i)*time.Second), "msg"))
	}

	items, total, err := s.ListMessages(ctx, ListFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Fatalf("total must be independent of pagination: got %d", total)
	}
	if len(items) != 2 || items[0].MessageID != "m2" || items[1].MessageID != "m3" {
		t.Fatalf("unexpected page: %+v", items)
	}

	// Offset beyond the matching count: empty page, same total.
	items, total, err = s.ListMessages(ctx, ListFilter{Limit: 2, Offset: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(items) != 0 {
		t.Fatalf("expected empty page with total 5, got total=%d len=%d", total, len(items))
	}
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, testMessage("m1", "+911111111111", baseTS, "Hello world"))
	mustInsert(t, s, testMessage("m2", "+922222222222", baseTS.Add(time.Minute), "goodbye WORLD"))
	mustInsert(t, s, testMessage("m3", "+911111111111", baseTS.Add(2*time.Minute), "unrelated"))

	// Exact sender match
	items, total, err := s.ListMessages(ctx, ListFilter{From: "+911111111111", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("from filter: expected 2, got total=%d", total)
	}

	// Inclusive since bound
	since := baseTS.Add(time.Minute)
	_, total, err = s.ListMessages(ctx, ListFilter{Since: &since, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("since must be inclusive: expected 2, got %d", total)
	}

	// Case-insensitive substring
	items, total, err = s.ListMessages(ctx, ListFilter{Query: "world", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("q filter: expected 2, got %d", total)
	}

	// Conjunctive filters
	_, total, err = s.ListMessages(ctx, ListFilter{From: "+911111111111", Query: "world", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("combined filters: expected 1, got %d", total)
	}
}

func TestListQueryEscapesLikeMetacharacters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, testMessage("m1", "+15550000001", baseTS, "100% done"))
	mustInsert(t, s, testMessage("m2", "+15550000001", baseTS.Add(time.Second), "100 percent done"))

	_, total, err := s.ListMessages(ctx, ListFilter{Query: "100%", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("%% must match literally: expected 1, got %d", total)
	}
}

func TestListQueryUnicodeCaseFolding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, testMessage("m1", "+15550000001", baseTS, "ÜNITED we stand"))
	mustInsert(t, s, testMessage("m2", "+15550000001", baseTS.Add(time.Second), "divided we fall"))

	items, total, err := s.ListMessages(ctx, ListFilter{Query: "ünited", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].MessageID != "m1" {
		t.Fatalf("non-ASCII q must fold case: total=%d items=%+v", total, items)
	}
}

func TestListQueryPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("m%d", i)
		mustInsert(t, s, testMessage(id, "+15550000001", baseTS.Add(time.Duration(i)*time.Second), "needle"))
	}
	mustInsert(t, s, testMessage("x", "+15550000001", baseTS.Add(10*time.Second), "other"))

	items, total, err := s.ListMessages(ctx, ListFilter{Query: "needle", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Fatalf("q total must count the filtered population: got %d", total)
	}
	if len(items) != 2 || items[0].MessageID != "m2" || items[1].MessageID != "m3" {
		t.Fatalf("unexpected q page: %+v", items)
	}

	// Offset beyond the matching count: empty page, same total.
	items, total, err = s.ListMessages(ctx, ListFilter{Query: "needle", Limit: 2, Offset: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(items) != 0 {
		t.Fatalf("expected empty page with total 5, got total=%d len=%d", total, len(items))
	}
}

func TestListSinceSubMillisecondBound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, testMessage("m1", "+15550000001", baseTS, "on the instant"))

	// A bound 500µs after the stored instant must exclude it; rounding
	// the bound down to the millisecond would let it through.
	since := baseTS.Add(500 * time.Microsecond)
	_, total, err := s.ListMessages(ctx, ListFilter{Since: &since, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 {
		t.Fatalf("sub-millisecond since bound admitted an earlier row: total=%d", total)
	}

	// The exact stored instant still matches (inclusive bound).
	since = baseTS
	_, total, err = s.ListMessages(ctx, ListFilter{Since: &since, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Fatalf("inclusive since bound must match the exact instant: total=%d", total)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if snap.TotalMessages != 0 || snap.SendersCount != 0 {
		t.Fatalf("expected zero counts, got %+v", snap)
	}
	if snap.FirstMessageTS != nil || snap.LastMessageTS != nil {
		t.Fatalf("expected nil timestamps on empty store, got %+v", snap)
	}
	if len(snap.MessagesPerSender) != 0 {
		t.Fatalf("expected empty ranking, got %+v", snap.MessagesPerSender)
	}
}

func TestStatsAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Two messages from A, two from B, one from C. A and B tie; the
	// ranking breaks ties by sender ascending.
	mustInsert(t, s, testMessage("m1", "+92", baseTS, "x"))
	mustInsert(t, s, testMessage("m2", "+92", baseTS.Add(time.Second), "x"))
	mustInsert(t, s, testMessage("m3", "+91", baseTS.Add(2*time.Second), "x"))
	mustInsert(t, s, testMessage("m4", "+91", baseTS.Add(3*time.Second), "x"))
	mustInsert(t, s, testMessage("m5", "+93", baseTS.Add(-time.Second), "x"))

	snap, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if snap.TotalMessages != 5 {
		t.Fatalf("expected 5 messages, got %d", snap.TotalMessages)
	}
	if snap.SendersCount != 3 {
		t.Fatalf("expected 3 senders, got %d", snap.SendersCount)
	}

	want := []models.SenderCount{
		{From: "+91", Count: 2},
		{From: "+92", Count: 2},
		{From: "+93", Count: 1},
	}
	if len(snap.MessagesPerSender) != len(want) {
		t.Fatalf("expected %d ranking entries, got %d", len(want), len(snap.MessagesPerSender))
	}
	for i, w := range want {
		got := snap.MessagesPerSender[i]
		if got.From != w.From || got.Count != w.Count {
			t.Fatalf("ranking[%d]: expected %+v, got %+v", i, w, got)
		}
	}

	if snap.FirstMessageTS == nil || !snap.FirstMessageTS.Equal(baseTS.Add(-time.Second)) {
		t.Fatalf("wrong first ts: %v", snap.FirstMessageTS)
	}
	if snap.LastMessageTS == nil || !snap.LastMessageTS.Equal(baseTS.Add(3*time.Second)) {
		t.Fatalf("wrong last ts: %v", snap.LastMessageTS)
	}
}

func TestStatsTopTenTruncation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("m%02d", i)
		from := fmt.Sprintf("+1555000%04d", i)
		mustInsert(t, s, testMessage(id, from, baseTS.Add(time.Duration(i)*time.Second), "x"))
	}

	snap, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if snap.SendersCount != 12 {
		t.Fatalf("expected 12 senders, got %d", snap.SendersCount)
	}
	if len(snap.MessagesPerSender) != 10 {
		t.Fatalf("ranking must be truncated to 10, got %d", len(snap.MessagesPerSender))
	}
}
