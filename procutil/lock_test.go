package procutil

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestLockFile_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.lock")

	first, _, err := LockFile(path)
	if err != nil {
		t.Fatalf("LockFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file holds %q, want own PID", got)
	}

	second, _, err := LockFile(path)
	if !errors.Is(err, ErrLocked) {
		second.Unlock()
		t.Fatalf("second LockFile() error = %v, want ErrLocked", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if err := first.Unlock(); err != nil {
		t.Errorf("second Unlock() error = %v", err)
	}

	third, _, err := LockFile(path)
	if err != nil {
		t.Fatalf("LockFile() after Unlock error = %v", err)
	}
	third.Unlock()
}
