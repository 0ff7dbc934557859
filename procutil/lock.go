package procutil

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// ErrLocked is returned by LockFile when another process holds the lock.
var ErrLocked = errors.New("file is locked by another process")

// FileLock is an exclusive advisory lock on a file, held until Unlock or
// until the owning process exits.
type FileLock struct {
	f *os.File
}

// LockFile creates path if needed and takes an exclusive lock on it without
// blocking. On success the file holds the caller's PID. If the lock is held
// elsewhere the error wraps ErrLocked and the holder's PID is returned when
// it can be read.
func LockFile(path string) (*FileLock, int, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, 0, err
	}
	if err := lockFile(f); err != nil {
		pid := readPID(f)
		f.Close()
		return nil, pid, err
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &FileLock{f: f}, 0, nil
}

// Unlock releases the lock. The file is left in place; the next holder
// overwrites its contents.
func (l *FileLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unlockFile(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

func readPID(f *os.File) int {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}
