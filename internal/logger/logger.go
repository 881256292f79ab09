// Package logger provides leveled logging for kbsync.
// Console output goes to stderr: Debug, Info and Warn only in verbose mode,
// Error always. When a job log is open, every message at Info or above is
// also written to it with a timestamp, so each run leaves a complete record.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// JobLogPrefix and JobLogExt frame the per-run job log file names.
const (
	JobLogPrefix = "job_log_"
	JobLogExt    = ".txt"

	// jobLogMaxSizeMB caps a single job log; larger logs roll over.
	jobLogMaxSizeMB = 20
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	jobLog  io.WriteCloser
	clock   = time.Now
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for console logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// JobLogName returns the job log file name for a run started at t.
func JobLogName(t time.Time) string {
	return JobLogPrefix + t.Format("2006-01-02_15-04-05") + JobLogExt
}

// OpenJobLog starts a job log in dir for a run started at t and returns its path.
// Any previously open job log is closed first.
func OpenJobLog(dir string, t time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}
	path := filepath.Join(dir, JobLogName(t))
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    jobLogMaxSizeMB,
		MaxBackups: 1,
	}

	mu.Lock()
	defer mu.Unlock()
	if jobLog != nil {
		_ = jobLog.Close()
	}
	jobLog = w
	return path, nil
}

// SetJobLog routes job log lines to w. Passing nil detaches the job log.
func SetJobLog(w io.WriteCloser) {
	mu.Lock()
	defer mu.Unlock()
	jobLog = w
}

// CloseJobLog flushes and detaches the job log.
func CloseJobLog() error {
	mu.Lock()
	defer mu.Unlock()
	if jobLog == nil {
		return nil
	}
	err := jobLog.Close()
	jobLog = nil
	return err
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[DEBUG] "+format+"\n", args...)
		writeJob("DEBUG", format, args)
	}
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
	if jobLog != nil {
		fmt.Fprintf(jobLog, "=============================================\n%s\n=============================================\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[INFO] "+format+"\n", args...)
	}
	writeJob("INFO", format, args)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "[WARN] "+format+"\n", args...)
	}
	writeJob("WARN", format, args)
}

// Error prints an error message regardless of verbose mode.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, "[ERROR] "+format+"\n", args...)
	writeJob("ERROR", format, args)
}

// writeJob appends a line to the job log (caller must hold at least a read lock).
func writeJob(level, format string, args []any) {
	if jobLog == nil {
		return
	}
	fmt.Fprintf(jobLog, "%s [%s] %s\n", clock().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))
}
