// Package pathutil resolves where the books live on disk: the monthly
// Beancount files, the posting-history database and the extract directory.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

// PathResolver manages paths under a books root.
type PathResolver struct {
	booksRoot  string
	dbPath     string
	extractDir string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// BooksRoot holds one directory per year of monthly Beancount files.
	BooksRoot string
	// DatabasePath is the SQLite posting history.
	DatabasePath string
	// ExtractDir holds the order, pool and settlement extracts.
	ExtractDir string
}

// New creates a PathResolver.
// DatabasePath defaults to {BooksRoot}/.history/postings.db and ExtractDir
// to {BooksRoot}/extracts.
func New(cfg Config) *PathResolver {
	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(cfg.BooksRoot, ".history", "postings.db")
	}
	extractDir := cfg.ExtractDir
	if extractDir == "" {
		extractDir = filepath.Join(cfg.BooksRoot, "extracts")
	}
	return &PathResolver{booksRoot: cfg.BooksRoot, dbPath: dbPath, extractDir: extractDir}
}

func (p *PathResolver) BooksRoot() string    { return p.booksRoot }
func (p *PathResolver) DatabasePath() string { return p.dbPath }
func (p *PathResolver) ExtractDir() string   { return p.extractDir }

// YearDir returns the directory of a year's monthly files.
func (p *PathResolver) YearDir(year int) string {
	return filepath.Join(p.booksRoot, fmt.Sprintf("%04d", year))
}

// MonthFile returns the Beancount file for a period,
// e.g. {root}/2024/2024-01.beancount.
func (p *PathResolver) MonthFile(period pnl.Period) string {
	return filepath.Join(p.YearDir(period.Year), period.String()+".beancount")
}

// Extract returns the path of a period extract, e.g. {extracts}/2024-01/orders.csv.
func (p *PathResolver) Extract(period pnl.Period, name string) string {
	return filepath.Join(p.extractDir, period.String(), name)
}

// FindExtract returns the first existing extract among the given base name
// with each extension tried in order.
func (p *PathResolver) FindExtract(period pnl.Period, base string, exts ...string) (string, bool) {
	for _, ext := range exts {
		path := p.Extract(period, base+ext)
		if FileExists(path) {
			return path, true
		}
	}
	return "", false
}

// EnsureParentDir ensures the parent directory of a file exists.
func EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists reports whether a regular file exists at path.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
