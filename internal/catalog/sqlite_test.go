package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/opendatazurich/losd-harvester/internal/catalog"
	"github.com/opendatazurich/losd-harvester/internal/db"
	"github.com/opendatazurich/losd-harvester/internal/domain"
	"github.com/opendatazurich/losd-harvester/internal/migrate"
)

func newCatalog(t *testing.T) *catalog.SQLite {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &catalog.SQLite{DB: conn}
}

func TestCreateAndFind(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	rec := domain.Record{
		Name:  "pop-a",
		Title: "Population",
		Resources: []domain.Resource{
			{URI: "http://example.com/dist/1", Name: "csv", ResourceType: "file"},
		},
	}
	id, err := c.Create(ctx, "guid-1", rec)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatalf("expected assigned id")
	}

	byGUID, err := c.FindByIdentity(ctx, "guid-1")
	if err != nil {
		t.Fatalf("find by identity: %v", err)
	}
	if byGUID.ID != id || byGUID.Title != "Population" {
		t.Fatalf("record %+v", byGUID)
	}
	if len(byGUID.Resources) != 1 || byGUID.Resources[0].ID == "" {
		t.Fatalf("resources should get ids: %+v", byGUID.Resources)
	}

	byName, err := c.FindByName(ctx, "pop-a")
	if err != nil || byName.ID != id {
		t.Fatalf("find by name: %+v %v", byName, err)
	}
	if _, err := c.FindByIdentity(ctx, "nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	_, err := c.Create(ctx, "g", domain.Record{Title: "no name"})
	var verr catalog.ValidationError
	if !errors.As(err, &verr) || verr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
	_, err = c.Create(ctx, "g", domain.Record{Name: "no-title"})
	if !errors.As(err, &verr) || verr.Field != "title" {
		t.Fatalf("expected title validation error, got %v", err)
	}
}

func TestUpdateRewritesResources(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	id, err := c.Create(ctx, "g", domain.Record{
		Name:      "r",
		Title:     "R",
		Resources: []domain.Resource{{URI: "http://example.com/a", Name: "a"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stored, _ := c.FindByIdentity(ctx, "g")
	keepID := stored.Resources[0].ID

	stored.Title = "R2"
	stored.Resources = []domain.Resource{
		{ID: keepID, URI: "http://example.com/a", Name: "a"},
		{URI: "http://example.com/b", Name: "b"},
	}
	if err := c.Update(ctx, stored); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := c.FindByIdentity(ctx, "g")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != id || got.Title != "R2" || len(got.Resources) != 2 {
		t.Fatalf("record %+v", got)
	}
	if got.Resources[0].ID != keepID {
		t.Fatalf("kept resource id changed: %+v", got.Resources)
	}
	if got.Resources[1].ID == "" {
		t.Fatalf("new resource id missing")
	}

	if err := c.Update(ctx, domain.Record{ID: "missing", Name: "x", Title: "x"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	id, err := c.Create(ctx, "g", domain.Record{Name: "d", Title: "D"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.FindByIdentity(ctx, "g"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected gone, got %v", err)
	}
	if err := c.Delete(ctx, id); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	for _, name := range []string{"zebra", "alpha"} {
		if _, err := c.Create(ctx, "guid-"+name, domain.Record{Name: name, Title: name}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	recs, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 || recs[0].Name != "alpha" || recs[1].Name != "zebra" {
		t.Fatalf("records %+v", recs)
	}
}
