// Package fileutil copies classified originals into output folders.
package fileutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// maxNameAttempts bounds the search for a free file name.
const maxNameAttempts = 10000

var dirLocks sync.Map // directory -> *sync.Mutex

func lockDir(dir string) func() {
	v, _ := dirLocks.LoadOrStore(dir, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CopyInto copies src into dir, creating dir when needed, and returns the
// destination path. When dir already holds a file with the same name and
// identical content that file is reused, so rerunning a session does not
// duplicate output. A different file with the same name is never
// overwritten: the copy gets a numbered name such as photo_1.jpg instead.
func CopyInto(src, dir string) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}

	unlock := lockDir(filepath.Clean(dir))
	defer unlock()

	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := range maxNameAttempts {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		dst := filepath.Join(dir, name)

		same, err := SameContent(src, dst)
		switch {
		case err == nil && same:
			return dst, nil
		case err == nil:
			continue // name taken by a different file
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}

		if err := CopyFile(src, dst); err != nil {
			return "", err
		}
		return dst, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", base, dir)
}

// CopyFile streams src to dst, failing if dst already exists. A partial
// copy is removed.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}

// SameContent reports whether a and b hold identical bytes. The error wraps
// os.ErrNotExist when b does not exist.
func SameContent(a, b string) (bool, error) {
	infoB, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	infoA, err := os.Stat(a)
	if err != nil {
		return false, fmt.Errorf("stat source: %w", err)
	}
	if infoA.Size() != infoB.Size() {
		return false, nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, fmt.Errorf("open source: %w", err)
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, fmt.Errorf("open destination: %w", err)
	}
	defer fb.Close()

	bufA := make([]byte, 64*1024)
	bufB := make([]byte, 64*1024)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if errA == io.EOF || errA == io.ErrUnexpectedEOF {
			return errB == io.EOF || errB == io.ErrUnexpectedEOF, nil
		}
		if errA != nil {
			return false, fmt.Errorf("read source: %w", errA)
		}
		if errB != nil {
			return false, fmt.Errorf("read destination: %w", errB)
		}
	}
}
