package internal

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenEnv_SyncsExistingEntries(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "store")
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "---\npim:\n  links: [b]\n---\n# A\n"
	if err := os.WriteFile(filepath.Join(storeDir, "a.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(storeDir, "b.md"), []byte("---\npim:\n  links: [a]\n---\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	cfg.Store.Path = storeDir
	cfg.SQLite.Path = filepath.Join(dir, "index.db")

	env, err := OpenEnv(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("OpenEnv: %v", err)
	}
	t.Cleanup(func() { env.Close() })

	ctx := context.Background()
	items, total, err := env.Service.ListEntries(ctx, 0, 0, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || items[0].Title != "A" {
		t.Errorf("items = %+v", items)
	}
	bl, err := env.Service.Backlinks(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(bl) != 1 || bl[0].Source != "a" {
		t.Errorf("backlinks = %+v", bl)
	}
	if err := env.Service.Check(ctx); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestNewApplication_RequiresConfig(t *testing.T) {
	if _, err := newApplication(nil); err == nil {
		t.Fatal("expected error without config")
	}
	app, err := newApplication([]Option{WithConfig(NewDefaultConfig()), WithVersion("1.2.3")})
	if err != nil {
		t.Fatal(err)
	}
	if app.version != "1.2.3" {
		t.Errorf("version = %q", app.version)
	}
}
