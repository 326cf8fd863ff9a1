package index

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/pimstore/internal/apperr"
	"github.com/starford/pimstore/internal/models"
	"github.com/starford/pimstore/internal/storage"
)

var discard = slog.New(slog.DiscardHandler)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func edge(src, dst string) models.Edge {
	return models.Edge{Source: src, Target: dst}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries`).Scan(&count); err != nil {
		t.Fatalf("entries table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM links`).Scan(&count); err != nil {
		t.Fatalf("links table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := EntryRow{ID: "hello", Title: "Hello World", Checksum: "abc123", LinkCount: 1, UpdatedAt: time.Now()}
	if err := db.UpsertEntry(row, []models.Edge{edge("hello", "other")}); err != nil {
		t.Fatalf("UpsertEntry: %v", err)
	}
	cs, err := db.GetChecksum("hello")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestGetEntry(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertEntry(EntryRow{ID: "a", Title: "A", Checksum: "1", LinkCount: 2}, nil)

	got, err := db.GetEntry("a")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Title != "A" || got.LinkCount != 2 {
		t.Errorf("row = %+v", got)
	}
	if _, err := db.GetEntry("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertEntry(EntryRow{ID: "c", Checksum: "2"}, []models.Edge{edge("c", "b")})
	_ = db.UpsertEntry(EntryRow{ID: "a", Checksum: "1"}, []models.Edge{
		edge("a", "b"),
		{Source: "a", Target: "b", Annotation: "why", Annotated: true},
	})

	bl, err := db.Backlinks("b")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 3 {
		t.Fatalf("expected 3 backlinks, got %d", len(bl))
	}
	if bl[0].Source != "a" || bl[0].Annotated || !bl[1].Annotated || bl[1].Annotation != "why" || bl[2].Source != "c" {
		t.Errorf("backlinks = %+v", bl)
	}
}

func TestDeleteEntry(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertEntry(EntryRow{ID: "del", Checksum: "x"}, []models.Edge{edge("del", "target")})

	if err := db.DeleteEntry("del"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	cs, _ := db.GetChecksum("del")
	if cs != "" {
		t.Errorf("deleted entry still has checksum %q", cs)
	}
	bl, _ := db.Backlinks("target")
	if len(bl) != 0 {
		t.Errorf("expected 0 backlinks after delete, got %d", len(bl))
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertEntry(EntryRow{ID: "up", Title: "Old", Checksum: "1"}, []models.Edge{edge("up", "x")})
	_ = db.UpsertEntry(EntryRow{ID: "up", Title: "New", Checksum: "2"}, []models.Edge{edge("up", "y")})

	cs, _ := db.GetChecksum("up")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	bl, _ := db.Backlinks("x")
	if len(bl) != 0 {
		t.Error("old link should be removed on upsert")
	}
	bl, _ = db.Backlinks("y")
	if len(bl) != 1 {
		t.Error("new link should exist")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestListEntries(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertEntry(EntryRow{ID: "b", Title: "Beta", LinkCount: 3}, nil)
	_ = db.UpsertEntry(EntryRow{ID: "calendar/x", Title: "Cal", LinkCount: 1}, nil)
	_ = db.UpsertEntry(EntryRow{ID: "a", Title: "Zeta", LinkCount: 2}, nil)

	tests := []struct {
		name   string
		limit  int
		offset int
		prefix string
		sort   string
		want   []string
		total  int
	}{
		{name: "default", want: []string{"a", "b", "calendar/x"}, total: 3},
		{name: "title", sort: "title", want: []string{"b", "calendar/x", "a"}, total: 3},
		{name: "links", sort: "links", want: []string{"b", "a", "calendar/x"}, total: 3},
		{name: "prefix", prefix: "calendar/", want: []string{"calendar/x"}, total: 1},
		{name: "page", limit: 1, offset: 1, want: []string{"b"}, total: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, total, err := db.ListEntries(tt.limit, tt.offset, tt.prefix, tt.sort)
			if err != nil {
				t.Fatalf("ListEntries: %v", err)
			}
			if total != tt.total {
				t.Errorf("total = %d, want %d", total, tt.total)
			}
			var got []string
			for _, r := range rows {
				got = append(got, r.ID)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ids = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}

	if _, _, err := db.ListEntries(0, 0, "", "bogus"); !errors.Is(err, ErrUnknownSort) {
		t.Errorf("err = %v, want ErrUnknownSort", err)
	}
}

func TestGraph(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertEntry(EntryRow{ID: "a", Title: "A", LinkCount: 1}, []models.Edge{edge("a", "b")})
	_ = db.UpsertEntry(EntryRow{ID: "b", Title: "B", LinkCount: 1}, []models.Edge{edge("b", "a")})

	nodes, edges, err := db.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(nodes) != 2 || nodes[0].ID != "a" || nodes[1].Title != "B" {
		t.Errorf("nodes = %+v", nodes)
	}
	if len(edges) != 2 || edges[0] != edge("a", "b") || edges[1] != edge("b", "a") {
		t.Errorf("edges = %+v", edges)
	}
}

func writeEntry(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSync(t *testing.T) {
	root := t.TempDir()
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)

	writeEntry(t, root, "a.md", "---\npim:\n  links:\n  - b\n  - link: sub/c\n    annotation: see\n---\n# Alpha\n")
	writeEntry(t, root, "b.md", "---\npim:\n  links:\n  - a\n---\nplain\n")
	writeEntry(t, root, "sub/c.md", "---\npim:\n  links:\n  - a\n---\n")
	writeEntry(t, root, ".hidden.md", "x")

	if err := Sync(db, fs, discard); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	row, err := db.GetEntry("a")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if row.Title != "Alpha" || row.LinkCount != 2 {
		t.Errorf("row = %+v", row)
	}
	bl, _ := db.Backlinks("sub/c")
	if len(bl) != 1 || bl[0].Annotation != "see" || !bl[0].Annotated {
		t.Errorf("backlinks of sub/c = %+v", bl)
	}
	if cs, _ := db.GetChecksum(".hidden"); cs != "" {
		t.Error("hidden file should not be indexed")
	}

	if err := os.Remove(filepath.Join(root, "b.md")); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, fs, discard); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("b"); cs != "" {
		t.Error("stale entry should be removed")
	}
}

func TestSync_BadLinksSkipped(t *testing.T) {
	root := t.TempDir()
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	writeEntry(t, root, "bad.md", "---\npim:\n  links: nope\n---\n")
	writeEntry(t, root, "good.md", "hello\n")

	if err := Sync(db, fs, discard); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("bad"); cs != "" {
		t.Error("entry with malformed links should not be indexed")
	}
	if cs, _ := db.GetChecksum("good"); cs == "" {
		t.Error("good entry should be indexed")
	}
}
