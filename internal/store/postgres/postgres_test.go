package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/meetscribe/internal/store"
	"github.com/MrWong99/meetscribe/internal/store/postgres"
	"github.com/MrWong99/meetscribe/pkg/types"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if MEETSCRIBE_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MEETSCRIBE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEETSCRIBE_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean recordings table.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS recordings CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}

	st, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

func testRecording(name string, start time.Time) store.Recording {
	tldr := "Short meeting."
	return store.Recording{
		MeetingName: name,
		StartedAt:   start,
		Duration:    10 * time.Minute,
		Transcript: types.DiarizedTranscript{
			Text: "hello world",
			Utterances: []types.Utterance{
				{Speaker: "Ada", Text: "hello world", Start: start, End: start.Add(3 * time.Second)},
			},
			TLDR: &tldr,
		},
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 2, 19, 8, 29, 10, 0, time.UTC)

	id, err := st.Save(ctx, testRecording("standup", start))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("Save returned empty id")
	}

	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.MeetingName != "standup" {
		t.Errorf("MeetingName = %q, want standup", got.MeetingName)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, start)
	}
	if got.Duration != 10*time.Minute {
		t.Errorf("Duration = %v, want 10m", got.Duration)
	}
	if len(got.Transcript.Utterances) != 1 || got.Transcript.Utterances[0].Speaker != "Ada" {
		t.Errorf("Transcript = %+v", got.Transcript)
	}
	if got.Transcript.TLDR == nil || *got.Transcript.TLDR != "Short meeting." {
		t.Errorf("TLDR = %v", got.Transcript.TLDR)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestStore_SaveUpserts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 2, 19, 8, 29, 10, 0, time.UTC)

	rec := testRecording("standup", start)
	id, err := st.Save(ctx, rec)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec.ID = id
	rec.MeetingName = "retro"
	if _, err := st.Save(ctx, rec); err != nil {
		t.Fatalf("Save (update): %v", err)
	}

	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.MeetingName != "retro" {
		t.Errorf("MeetingName = %q, want retro after upsert", got.MeetingName)
	}

	recs, err := st.List(ctx, store.ListOpts{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d recordings, want 1 after upsert", len(recs))
	}
}

func TestStore_GetNotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Get(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStore_List(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 2, 19, 8, 0, 0, 0, time.UTC)

	for i, name := range []string{"standup", "standup", "retro"} {
		rec := testRecording(name, base.Add(time.Duration(i)*time.Hour))
		if _, err := st.Save(ctx, rec); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	t.Run("all, newest first", func(t *testing.T) {
		recs, err := st.List(ctx, store.ListOpts{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(recs) != 3 {
			t.Fatalf("got %d recordings, want 3", len(recs))
		}
		if recs[0].MeetingName != "retro" {
			t.Errorf("first recording = %q, want the newest (retro)", recs[0].MeetingName)
		}
	})

	t.Run("filter by meeting name", func(t *testing.T) {
		recs, err := st.List(ctx, store.ListOpts{MeetingName: "standup"})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(recs) != 2 {
			t.Errorf("got %d recordings, want 2", len(recs))
		}
	})

	t.Run("time window and limit", func(t *testing.T) {
		recs, err := st.List(ctx, store.ListOpts{After: base, Limit: 1})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(recs) != 1 {
			t.Fatalf("got %d recordings, want 1", len(recs))
		}
		if recs[0].MeetingName != "retro" {
			t.Errorf("limited list should keep newest first, got %q", recs[0].MeetingName)
		}
	})
}

func TestStore_Delete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.Save(ctx, testRecording("standup", time.Now().UTC()))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := st.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Get(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}

	// Deleting a missing id is not an error.
	if err := st.Delete(ctx, id); err != nil {
		t.Errorf("Delete (missing): %v", err)
	}
}
