package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driven"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// LockFile is the default lock file name inside the data directory.
const LockFile = "kbsync.lock"

// Ensure FileLock implements the interface.
var _ driven.RunLock = (*FileLock)(nil)

// FileLock is a cross-process run lock backed by a file created with O_EXCL.
type FileLock struct {
	path string

	// StaleAfter, when positive, lets Acquire take over a lock file not
	// refreshed for this long, left behind by a crashed run. While held,
	// the lock refreshes its modification time every StaleAfter/3 so a
	// long run is never mistaken for a crashed one.
	StaleAfter time.Duration

	mu    sync.Mutex
	token string
	stop  chan struct{}
	done  chan struct{}
}

// NewFileLock creates a lock at path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire creates the lock file atomically. It never blocks: a held lock
// returns domain.ErrSyncInProgress.
func (l *FileLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	err := l.create()
	if err == nil || !os.IsExist(err) {
		return err
	}

	if l.StaleAfter > 0 {
		if info, statErr := os.Stat(l.path); statErr == nil && time.Since(info.ModTime()) > l.StaleAfter {
			logger.Warn("Removing stale run lock %s (age %s)", l.path, time.Since(info.ModTime()).Round(time.Second))
			if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) {
				return fmt.Errorf("removing stale lock: %w", rmErr)
			}
			if err = l.create(); err == nil || !os.IsExist(err) {
				return err
			}
		}
	}

	return fmt.Errorf("%w: lock held at %s", domain.ErrSyncInProgress, l.path)
}

// Release stops the refresh and removes the lock file if this lock still
// owns it. Releasing an absent or taken-over lock is not an error.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stop != nil {
		close(l.stop)
		<-l.done
		l.stop, l.done = nil, nil
	}

	token := l.token
	l.token = ""
	if token == "" {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading lock: %w", err)
	}
	if string(data) != token {
		logger.Warn("Run lock %s was taken over; leaving it in place", l.path)
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock: %w", err)
	}
	return nil
}

func (l *FileLock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	token := strconv.Itoa(os.Getpid()) + " " + strconv.FormatInt(time.Now().UnixNano(), 10) + "\n"
	_, err = f.WriteString(token)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(l.path) //nolint:errcheck
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.token = token
	if l.StaleAfter > 0 {
		l.stop = make(chan struct{})
		l.done = make(chan struct{})
		go l.refresh(l.StaleAfter/3, l.stop, l.done)
	}
	return nil
}

// refresh touches the lock file until stop is closed.
func (l *FileLock) refresh(every time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := time.Now()
			if err := os.Chtimes(l.path, now, now); err != nil {
				logger.Warn("Refreshing run lock %s: %v", l.path, err)
			}
		}
	}
}
