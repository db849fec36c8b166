//go:build !unix

package storage

import "sync"

// FileLock serializes writers within this process only; there is no flock
// on this platform.
type FileLock struct {
	path string
	mu   sync.Mutex
}

// NewFileLock creates a new file lock.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock acquires the lock.
func (l *FileLock) Lock() error {
	l.mu.Lock()
	return nil
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	l.mu.Unlock()
	return nil
}
