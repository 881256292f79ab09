package logview

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// LogFile describes one job log.
type LogFile struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Catalog lists and reads the job logs in one directory.
type Catalog struct {
	dir string
}

// NewCatalog creates a catalog over dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Dir returns the directory the catalog reads.
func (c *Catalog) Dir() string {
	return c.dir
}

// List returns the job logs, most recently written first.
// A missing directory has no logs.
func (c *Catalog) List() ([]LogFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading log directory: %w", err)
	}

	logs := make([]LogFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !validName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed while listing
		}
		logs = append(logs, LogFile{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}

	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].ModTime.Equal(logs[j].ModTime) {
			return logs[i].ModTime.After(logs[j].ModTime)
		}
		return logs[i].Name > logs[j].Name
	})
	return logs, nil
}

// Latest returns the most recently written log.
func (c *Catalog) Latest() (*LogFile, error) {
	logs, err := c.List()
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, domain.ErrNotFound
	}
	return &logs[0], nil
}

// Read returns the content of the named log. Names that are not plain
// job log file names are reported as not found.
func (c *Catalog) Read(name string) ([]byte, error) {
	if !validName(name) {
		logger.Debug("Rejected log name %q", name)
		return nil, domain.ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reading log %s: %w", name, err)
	}
	return data, nil
}

// validName accepts base names ending in the job log extension.
func validName(name string) bool {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, logger.JobLogExt)
}
