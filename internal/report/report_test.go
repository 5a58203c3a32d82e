package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTally(t *testing.T) {
	out := t.TempDir()
	touch(t, filepath.Join(out, "bob", "1.jpg"))
	touch(t, filepath.Join(out, "alice", "1.jpg"))
	touch(t, filepath.Join(out, "alice", "2.PNG"))
	touch(t, filepath.Join(out, "alice", "notes.txt"))
	touch(t, filepath.Join(out, "alice", "sub", "3.jpg"))
	touch(t, filepath.Join(out, "unknown", "4.webp"))
	touch(t, filepath.Join(out, ".face-sorter.lock"))
	if err := os.Mkdir(filepath.Join(out, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	folders, err := Tally(out)
	if err != nil {
		t.Fatalf("Tally failed: %v", err)
	}

	want := []FolderCount{
		{"alice", 2},
		{"bob", 1},
		{"empty", 0},
		{"unknown", 1},
	}
	if len(folders) != len(want) {
		t.Fatalf("Tally returned %d folders, want %d: %v", len(folders), len(want), folders)
	}
	for i := range want {
		if folders[i] != want[i] {
			t.Errorf("folders[%d] = %+v, want %+v", i, folders[i], want[i])
		}
	}
}

func TestTally_MissingRoot(t *testing.T) {
	folders, err := Tally(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(folders) != 0 {
		t.Errorf("expected no folders, got %v", folders)
	}
}

func TestGenerate(t *testing.T) {
	tmp := t.TempDir()
	out := filepath.Join(tmp, "out")
	touch(t, filepath.Join(out, "alice", "a.jpg"))
	touch(t, filepath.Join(out, "alice", "b.jpg"))
	touch(t, filepath.Join(out, "unknown", "c.jpg"))
	reportPath := filepath.Join(tmp, "relatorio.txt")
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

	summary, err := Generate(out, []string{"cancelled by user"}, reportPath, now)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(summary.Folders) != 2 {
		t.Errorf("expected 2 folders, got %d", len(summary.Folders))
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	want := "Relatório de Separação\n" +
		"Data: 2026-03-14 09:26:53\n" +
		"\n" +
		"alice: 2 fotos\n" +
		"unknown: 1 fotos\n" +
		"\n" +
		"Erros Encontrados:\n" +
		"- cancelled by user\n"
	if string(data) != want {
		t.Errorf("report content mismatch\ngot:\n%s\nwant:\n%s", data, want)
	}
}

func TestGenerate_NoErrorsStillHasSection(t *testing.T) {
	tmp := t.TempDir()
	reportPath := filepath.Join(tmp, "relatorio.txt")

	summary, err := Generate(filepath.Join(tmp, "missing"), nil, reportPath, time.Now())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(summary.Folders) != 0 || len(summary.Errors) != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	data, _ := os.ReadFile(reportPath)
	if !strings.HasSuffix(string(data), "\nErros Encontrados:\n") {
		t.Errorf("expected empty error section at end, got:\n%s", data)
	}
}

func TestGenerate_UnwritableReport(t *testing.T) {
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "file")
	touch(t, blocker)

	summary, err := Generate(tmp, []string{"x"}, filepath.Join(blocker, "relatorio.txt"), time.Now())
	if err == nil {
		t.Fatal("expected write error")
	}
	if summary == nil || len(summary.Errors) != 1 {
		t.Errorf("summary should still be returned, got %+v", summary)
	}
}
