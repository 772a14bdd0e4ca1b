package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/opendatazurich/losd-harvester/internal/db"
	"github.com/opendatazurich/losd-harvester/internal/domain"
	"github.com/opendatazurich/losd-harvester/internal/migrate"
	"github.com/opendatazurich/losd-harvester/internal/store"
)

func newStore(t *testing.T) (store.Store, *sql.DB) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.Store{DB: conn}, conn
}

func seedRun(t *testing.T, s store.Store, id string) {
	t.Helper()
	err := s.InsertRun(context.Background(), domain.Run{
		ID:        id,
		SourceURL: "http://example.com/statistics",
		Status:    "running",
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("insert run %s: %v", id, err)
	}
}

func insertObject(t *testing.T, s store.Store, conn *sql.DB, o domain.HarvestObject) error {
	t.Helper()
	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := s.InsertObjectTx(context.Background(), tx, o); err != nil {
		return err
	}
	return tx.Commit()
}

func TestRunRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	seedRun(t, s, "run-1")

	run, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != "running" || run.FinishedAt != "" {
		t.Fatalf("run %+v", run)
	}

	run.Status = "finished"
	run.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	run.Created = 3
	run.Skipped = 1
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get finished run: %v", err)
	}
	if got.Status != "finished" || got.Created != 3 || got.Skipped != 1 {
		t.Fatalf("run %+v", got)
	}

	if err := s.FinishRun(ctx, domain.Run{ID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRunsOrderAndLimit(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		err := s.InsertRun(ctx, domain.Run{
			ID:        id,
			SourceURL: "src",
			Status:    "finished",
			StartedAt: time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("runs %+v", runs)
	}
}

func TestCurrentFlagFlip(t *testing.T) {
	s, conn := newStore(t)
	ctx := context.Background()
	seedRun(t, s, "run-1")

	first := domain.HarvestObject{
		ID: "o1", RunID: "run-1", GUID: "g1", Source: "src",
		Content: "v1", Status: domain.StatusNew, Current: true,
		Created: "2024-01-01T00:00:00Z",
	}
	if err := insertObject(t, s, conn, first); err != nil {
		t.Fatalf("insert first: %v", err)
	}

	// a second current object for the same guid violates the partial index
	second := first
	second.ID = "o2"
	second.Content = "v2"
	second.Created = "2024-01-02T00:00:00Z"
	if err := insertObject(t, s, conn, second); err == nil {
		t.Fatalf("expected unique index violation")
	}

	// flip then insert in one transaction
	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	had, err := s.ClearCurrentTx(ctx, tx, "g1")
	if err != nil || !had {
		t.Fatalf("clear current: %v %v", had, err)
	}
	if err := s.InsertObjectTx(ctx, tx, second); err != nil {
		t.Fatalf("insert second: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	current, err := s.CurrentByGUID(ctx, "g1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current.ID != "o2" || current.Content != "v2" {
		t.Fatalf("current %+v", current)
	}
	if _, err := s.CurrentByGUID(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCurrentGUIDsExcludesTombstones(t *testing.T) {
	s, conn := newStore(t)
	ctx := context.Background()
	seedRun(t, s, "run-1")

	objs := []domain.HarvestObject{
		{ID: "o1", RunID: "run-1", GUID: "alive", Source: "src", Status: domain.StatusChange, Current: true, Created: "2024-01-01T00:00:00Z"},
		{ID: "o2", RunID: "run-1", GUID: "dead", Source: "src", Status: domain.StatusDelete, Current: true, Created: "2024-01-01T00:00:00Z"},
		{ID: "o3", RunID: "run-1", GUID: "other-source", Source: "elsewhere", Status: domain.StatusNew, Current: true, Created: "2024-01-01T00:00:00Z"},
	}
	for _, o := range objs {
		if err := insertObject(t, s, conn, o); err != nil {
			t.Fatalf("insert %s: %v", o.ID, err)
		}
	}
	guids, err := s.CurrentGUIDs(ctx, "src")
	if err != nil {
		t.Fatalf("guids: %v", err)
	}
	if len(guids) != 1 || guids[0] != "alive" {
		t.Fatalf("guids %v", guids)
	}
}

func TestListObjectsFilters(t *testing.T) {
	s, conn := newStore(t)
	ctx := context.Background()
	seedRun(t, s, "run-1")
	seedRun(t, s, "run-2")

	objs := []domain.HarvestObject{
		{ID: "o1", RunID: "run-1", GUID: "g1", Source: "src", Status: domain.StatusNew, Current: false, Created: "2024-01-01T00:00:00Z"},
		{ID: "o2", RunID: "run-2", GUID: "g1", Source: "src", Status: domain.StatusChange, Current: true, Created: "2024-01-02T00:00:00Z"},
		{ID: "o3", RunID: "run-2", GUID: "g2", Source: "src", Status: domain.StatusNew, Current: true, Created: "2024-01-02T00:00:00Z"},
	}
	for _, o := range objs {
		if err := insertObject(t, s, conn, o); err != nil {
			t.Fatalf("insert %s: %v", o.ID, err)
		}
	}

	byRun, err := s.ListObjects(ctx, store.ObjectFilters{RunID: "run-2"})
	if err != nil || len(byRun) != 2 {
		t.Fatalf("by run: %v %v", byRun, err)
	}
	byGUID, err := s.ListObjects(ctx, store.ObjectFilters{GUID: "g1"})
	if err != nil || len(byGUID) != 2 {
		t.Fatalf("by guid: %v %v", byGUID, err)
	}
	current, err := s.ListObjects(ctx, store.ObjectFilters{GUID: "g1", Current: true})
	if err != nil || len(current) != 1 || current[0].ID != "o2" {
		t.Fatalf("current: %v %v", current, err)
	}
	limited, err := s.ListObjects(ctx, store.ObjectFilters{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("limited: %v %v", limited, err)
	}
}
