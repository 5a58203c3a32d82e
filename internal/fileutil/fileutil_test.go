package fileutil

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCopyInto_CreatesFolder(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "in", "photo.jpg")
	writeFile(t, src, []byte("original"))

	dst, err := CopyInto(src, filepath.Join(tmp, "out", "alice"))
	if err != nil {
		t.Fatalf("CopyInto failed: %v", err)
	}
	if filepath.Base(dst) != "photo.jpg" {
		t.Errorf("unexpected destination %q", dst)
	}
	got, err := os.ReadFile(dst)
	if err != nil || !bytes.Equal(got, []byte("original")) {
		t.Errorf("copied content = %q, err = %v", got, err)
	}
}

func TestCopyInto_ReusesIdenticalFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "photo.jpg")
	writeFile(t, src, []byte("same bytes"))
	dir := filepath.Join(tmp, "out")

	first, err := CopyInto(src, dir)
	if err != nil {
		t.Fatal(err)
	}
	second, err := CopyInto(src, dir)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("expected reuse, got %q and %q", first, second)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected 1 file in output, got %d", len(entries))
	}
}

func TestCopyInto_NameCollision(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "a", "IMG_0001.jpg")
	b := filepath.Join(tmp, "b", "IMG_0001.jpg")
	c := filepath.Join(tmp, "c", "IMG_0001.jpg")
	writeFile(t, a, []byte("first camera"))
	writeFile(t, b, []byte("second camera"))
	writeFile(t, c, []byte("third one, longer"))
	dir := filepath.Join(tmp, "out")

	tests := []struct {
		src  string
		want string
	}{
		{a, "IMG_0001.jpg"},
		{b, "IMG_0001_1.jpg"},
		{c, "IMG_0001_2.jpg"},
		{b, "IMG_0001_1.jpg"},
	}
	for _, tt := range tests {
		dst, err := CopyInto(tt.src, dir)
		if err != nil {
			t.Fatalf("CopyInto(%q) failed: %v", tt.src, err)
		}
		if filepath.Base(dst) != tt.want {
			t.Errorf("CopyInto(%q) = %q, want %q", tt.src, filepath.Base(dst), tt.want)
		}
	}
}

func TestCopyInto_Concurrent(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "out")
	const n = 20

	srcs := make([]string, n)
	for i := range n {
		srcs[i] = filepath.Join(tmp, "in", string(rune('a'+i)), "photo.jpg")
		writeFile(t, srcs[i], []byte{byte(i), byte(i + 1)})
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, src := range srcs {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			if _, err := CopyInto(src, dir); err != nil {
				errs <- err
			}
		}(src)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent CopyInto failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != n {
		t.Errorf("expected %d distinct files, got %d", n, len(entries))
	}
}

func TestCopyInto_MissingSource(t *testing.T) {
	tmp := t.TempDir()
	if _, err := CopyInto(filepath.Join(tmp, "missing.jpg"), filepath.Join(tmp, "out")); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestSameContent(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "a")
	b := filepath.Join(tmp, "b")
	c := filepath.Join(tmp, "c")
	big := bytes.Repeat([]byte("0123456789"), 20000)
	writeFile(t, a, big)
	writeFile(t, b, big)
	other := append([]byte{}, big...)
	other[len(other)-1] = 'x'
	writeFile(t, c, other)

	if same, err := SameContent(a, b); err != nil || !same {
		t.Errorf("SameContent(a, b) = %v, %v; want true", same, err)
	}
	if same, err := SameContent(a, c); err != nil || same {
		t.Errorf("SameContent(a, c) = %v, %v; want false", same, err)
	}
	if _, err := SameContent(a, filepath.Join(tmp, "missing")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
