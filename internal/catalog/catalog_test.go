package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/msrcr/internal/retinex"
	"github.com/MeKo-Tech/msrcr/internal/touchup"
)

func openTemp(t *testing.T) (*Catalog, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	return c, dbPath
}

func TestCatalog_Open(t *testing.T) {
	c, dbPath := openTemp(t)
	defer c.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Database file was not created")
	}

	for _, table := range []string{"runs", "outputs"} {
		var count int
		err := c.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to query schema: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected %s table to exist, got count=%d", table, count)
		}
	}
}

func TestCatalog_BeginRun(t *testing.T) {
	c, _ := openTemp(t)
	defer c.Close()

	settings := Settings{Params: retinex.LowLightParams()}
	run, err := c.BeginRun("lowlight", settings)
	if err != nil {
		t.Fatalf("Failed to begin run: %v", err)
	}

	if _, err := uuid.Parse(run.ID); err != nil {
		t.Errorf("Expected a UUID run ID, got %q: %v", run.ID, err)
	}

	got, err := c.Run(run.ID)
	if err != nil {
		t.Fatalf("Failed to read run: %v", err)
	}
	if got.ID != run.ID || got.Preset != run.Preset || got.ParamsHash != run.ParamsHash ||
		got.Params != run.Params || !got.StartedAt.Equal(run.StartedAt) {
		t.Errorf("Run mismatch:\n got %+v\nwant %+v", got, run)
	}

	other, err := c.BeginRun("lowlight", settings)
	if err != nil {
		t.Fatalf("Failed to begin second run: %v", err)
	}
	if other.ID == run.ID {
		t.Error("Expected distinct run IDs")
	}
	if other.ParamsHash != run.ParamsHash {
		t.Error("Expected equal params to hash equally")
	}
}

func TestCatalog_RunNotFound(t *testing.T) {
	c, _ := openTemp(t)
	defer c.Close()

	_, err := c.Run("missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

// touch creates an empty file standing in for a written output.
func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	return path
}

func TestCatalog_RecordAndDone(t *testing.T) {
	c, _ := openTemp(t)
	defer c.Close()

	run, err := c.BeginRun("default", Settings{Params: retinex.DefaultParams()})
	if err != nil {
		t.Fatalf("Failed to begin run: %v", err)
	}

	outDir := t.TempDir()
	outA := touch(t, filepath.Join(outDir, "a.png"))
	outB := touch(t, filepath.Join(outDir, "b.png"))
	outGone := filepath.Join(outDir, "gone.png")

	ok := Entry{RunID: run.ID, Input: "a.png", Output: outA, ParamsHash: run.ParamsHash,
		Width: 640, Height: 480, Bytes: 1234, Elapsed: 1500 * time.Millisecond}
	bad := Entry{RunID: run.ID, Input: "b.png", Output: outB, ParamsHash: run.ParamsHash,
		Err: "decode failed"}
	deleted := Entry{RunID: run.ID, Input: "c.png", Output: outGone, ParamsHash: run.ParamsHash}

	for _, e := range []Entry{ok, bad, deleted} {
		if err := c.Record(e); err != nil {
			t.Fatalf("Failed to record %s: %v", e.Input, err)
		}
	}

	tests := []struct {
		name   string
		input  string
		output string
		hash   string
		want   bool
	}{
		{name: "done", input: "a.png", output: outA, hash: run.ParamsHash, want: true},
		{name: "failed", input: "b.png", output: outB, hash: run.ParamsHash, want: false},
		{name: "other settings", input: "a.png", output: outA, hash: "other", want: false},
		{name: "other output", input: "a.png", output: filepath.Join(outDir, "elsewhere", "a.png"), hash: run.ParamsHash, want: false},
		{name: "output deleted", input: "c.png", output: outGone, hash: run.ParamsHash, want: false},
		{name: "never seen", input: "d.png", output: outA, hash: run.ParamsHash, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done, err := c.Done(tt.input, tt.output, tt.hash)
			if err != nil {
				t.Fatalf("Done(%s) failed: %v", tt.input, err)
			}
			if done != tt.want {
				t.Errorf("Done(%s, %s, %s) = %v, want %v", tt.input, tt.output, tt.hash, done, tt.want)
			}
		})
	}

	entries, err := c.Outputs(run.ID)
	if err != nil {
		t.Fatalf("Failed to list outputs: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0] != ok {
		t.Errorf("Entry mismatch:\n got %+v\nwant %+v", entries[0], ok)
	}
	if entries[1].Err != "decode failed" {
		t.Errorf("Expected error to be stored, got %q", entries[1].Err)
	}
}

func TestCatalog_SameInputDifferentOutputs(t *testing.T) {
	c, _ := openTemp(t)
	defer c.Close()

	first := touch(t, filepath.Join(t.TempDir(), "a", "x.png"))
	second := touch(t, filepath.Join(t.TempDir(), "b", "x.png"))
	for _, out := range []string{first, second} {
		if err := c.Record(Entry{RunID: "r", Input: "x.png", Output: out, ParamsHash: "h"}); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM outputs").Scan(&count); err != nil {
		t.Fatalf("Failed to count outputs: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected one row per output, got %d", count)
	}
}

func TestCatalog_RetryReplacesFailure(t *testing.T) {
	c, _ := openTemp(t)
	defer c.Close()

	out := touch(t, filepath.Join(t.TempDir(), "x.png"))
	failed := Entry{RunID: "r1", Input: "x.png", Output: out, ParamsHash: "h", Err: "boom"}
	if err := c.Record(failed); err != nil {
		t.Fatalf("Failed to record: %v", err)
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	retried := failed
	retried.RunID = "r2"
	retried.Err = ""
	if err := c.Record(retried); err != nil {
		t.Fatalf("Failed to record: %v", err)
	}

	done, err := c.Done("x.png", out, "h")
	if err != nil {
		t.Fatalf("Done failed: %v", err)
	}
	if !done {
		t.Error("Expected retried input to be done")
	}

	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM outputs").Scan(&count); err != nil {
		t.Fatalf("Failed to count outputs: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 output (replaced), got %d", count)
	}
}

func TestCatalog_BatchFlush(t *testing.T) {
	c, dbPath := openTemp(t)

	for i := 0; i < 120; i++ {
		e := Entry{RunID: "r", Input: fmt.Sprintf("img%03d.png", i), Output: "o", ParamsHash: "h"}
		if err := c.Record(e); err != nil {
			t.Fatalf("Failed to record entry %d: %v", i, err)
		}
	}

	// Close should flush remaining entries
	if err := c.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM outputs").Scan(&count); err != nil {
		t.Fatalf("Failed to query outputs: %v", err)
	}
	if count != 120 {
		t.Errorf("Expected 120 outputs, got %d", count)
	}
}

func TestParamsHash(t *testing.T) {
	plain := Settings{Params: retinex.DefaultParams()}
	a, err := ParamsHash(plain)
	if err != nil {
		t.Fatalf("ParamsHash failed: %v", err)
	}
	b, _ := ParamsHash(Settings{Params: retinex.DefaultParams()})
	if a != b {
		t.Error("Expected stable hash")
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(a))
	}

	changed := plain
	changed.Params.OutputGamma = 1.1
	if h, _ := ParamsHash(changed); h == a {
		t.Error("Expected different params to hash differently")
	}

	ft := touchup.DefaultFinalTouch()
	touched := Settings{Params: retinex.DefaultParams(), FinalTouch: &ft}
	th, _ := ParamsHash(touched)
	if th == a {
		t.Error("Expected the final touch to change the hash")
	}

	ft2 := ft
	ft2.ClipLimit = 3
	if h, _ := ParamsHash(Settings{Params: retinex.DefaultParams(), FinalTouch: &ft2}); h == th {
		t.Error("Expected final touch settings to change the hash")
	}
}
