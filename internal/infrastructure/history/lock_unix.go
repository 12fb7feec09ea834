//go:build unix

package history

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

type fileLock struct {
	file *os.File
}

// acquireLock blocks until it holds an exclusive flock on <Path>.lock.
func (s *FileStore) acquireLock() (*fileLock, error) {
	lockPath := s.Path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o750); err != nil {
		return nil, err
	}

	// #nosec G304 -- path is derived from trusted config
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		_ = file.Close()
		return nil, err
	}
	return &fileLock{file: file}, nil
}

func (l *fileLock) release() error {
	if l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
