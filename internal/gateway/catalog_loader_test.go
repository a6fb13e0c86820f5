package gateway

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCatalogYAML(t *testing.T) {
	path := writeCatalogFile(t, `
videos:
  - id: v1
    bitrates: [360, 720, 1080]
  - id: v2
    bitrates: [480]
`)
	c := NewCatalog()
	n, err := LoadCatalogYAML(path, c)
	if err != nil {
		t.Fatalf("LoadCatalogYAML: %v", err)
	}
	if n != 2 || c.Len() != 2 {
		t.Errorf("expected 2 videos, got n=%d len=%d", n, c.Len())
	}
	v, err := c.FindVideo("v1")
	if err != nil || len(v.Bitrates) != 3 || v.Bitrates[2] != 1080 {
		t.Errorf("unexpected v1: %+v err=%v", v, err)
	}
}

func TestLoadCatalogYAML_rejects(t *testing.T) {
	cases := []struct {
		name, content string
	}{
		{"unknown_field", "videos:\n  - id: v1\n    bitrates: [360]\n    codec: h264\n"},
		{"empty_ladder", "videos:\n  - id: v1\n    bitrates: []\n"},
		{"non_positive_bitrate", "videos:\n  - id: v1\n    bitrates: [0]\n"},
		{"missing_id", "videos:\n  - bitrates: [360]\n"},
		{"not_yaml", "videos: [unterminated\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCatalog()
			if _, err := LoadCatalogYAML(writeCatalogFile(t, tc.content), c); err == nil {
				t.Error("expected error")
			}
			if c.Len() != 0 {
				t.Errorf("rejected file must not populate the catalog, len %d", c.Len())
			}
		})
	}

	t.Run("missing_file", func(t *testing.T) {
		if _, err := LoadCatalogYAML(filepath.Join(t.TempDir(), "nope.yaml"), NewCatalog()); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func openCatalogDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// every pooled connection would get its own in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE video_bitrates (
		video_id TEXT NOT NULL,
		bitrate  INTEGER NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (video_id, position)
	)`); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestLoadCatalogSQL(t *testing.T) {
	db := openCatalogDB(t)
	if _, err := db.Exec(`INSERT INTO video_bitrates (video_id, bitrate, position) VALUES
		('v1', 1080, 2), ('v1', 360, 0), ('v1', 720, 1), ('v2', 480, 0)`); err != nil {
		t.Fatal(err)
	}

	c := NewCatalog()
	n, err := LoadCatalogSQL(context.Background(), db, c)
	if err != nil {
		t.Fatalf("LoadCatalogSQL: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 videos, got %d", n)
	}
	v, _ := c.FindVideo("v1")
	if len(v.Bitrates) != 3 || v.Bitrates[0] != 360 || v.Bitrates[1] != 720 || v.Bitrates[2] != 1080 {
		t.Errorf("expected ladder in position order, got %v", v.Bitrates)
	}
}

func TestLoadCatalogSQL_invalid_ladder(t *testing.T) {
	db := openCatalogDB(t)
	if _, err := db.Exec(`INSERT INTO video_bitrates VALUES ('v1', 360, 0), ('v2', -5, 0)`); err != nil {
		t.Fatal(err)
	}
	c := NewCatalog()
	if _, err := LoadCatalogSQL(context.Background(), db, c); err == nil {
		t.Fatal("expected error for negative bitrate")
	}
	if c.Len() != 0 {
		t.Errorf("invalid rows must not populate the catalog, len %d", c.Len())
	}
}

func TestLoadCatalogSQL_missing_table(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := LoadCatalogSQL(context.Background(), db, NewCatalog()); err == nil {
		t.Error("expected error when table is missing")
	}
}
