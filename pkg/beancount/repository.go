package beancount

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/pathutil"
	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

// Repository defines the Beancount file operations used by the file sink.
type Repository interface {
	// AppendTransaction appends a formatted transaction to the period's file.
	AppendTransaction(period pnl.Period, transaction string, comment ...string) (string, error)

	// ReadMonthFile returns the period's file content, or "" if it does not exist.
	ReadMonthFile(period pnl.Period) (string, error)

	// MonthFiles lists the periods of a year that have a file.
	MonthFiles(year int) ([]pnl.Period, error)
}

// FileSystemRepository is a file system implementation of Repository.
type FileSystemRepository struct {
	paths *pathutil.PathResolver
	now   func() time.Time
}

// NewFileSystemRepository creates a new FileSystemRepository.
func NewFileSystemRepository(paths *pathutil.PathResolver) *FileSystemRepository {
	return &FileSystemRepository{paths: paths, now: time.Now}
}

// AppendTransaction appends a transaction to the monthly file, creating the
// file with a header first. It returns the file path.
func (r *FileSystemRepository) AppendTransaction(period pnl.Period, transaction string, comment ...string) (string, error) {
	path := r.paths.MonthFile(period)
	if err := r.ensureMonthFile(period, path); err != nil {
		return "", err
	}

	var sb strings.Builder
	if len(comment) > 0 && comment[0] != "" {
		fmt.Fprintf(&sb, "; %s\n", comment[0])
	}
	sb.WriteString(transaction)
	if !strings.HasSuffix(transaction, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open file for appending: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(sb.String()); err != nil {
		return "", fmt.Errorf("failed to write to file: %w", err)
	}
	return path, nil
}

// ReadMonthFile reads the content of a monthly file.
func (r *FileSystemRepository) ReadMonthFile(period pnl.Period) (string, error) {
	path := r.paths.MonthFile(period)
	if !pathutil.FileExists(path) {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// MonthFiles lists the periods of a year that have a monthly file, in order.
func (r *FileSystemRepository) MonthFiles(year int) ([]pnl.Period, error) {
	entries, err := os.ReadDir(r.paths.YearDir(year))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read year directory: %w", err)
	}

	var periods []pnl.Period
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".beancount" {
			continue
		}
		p, err := pnl.ParsePeriod(strings.TrimSuffix(name, ".beancount"))
		if err != nil || p.Year != year {
			continue
		}
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	return periods, nil
}

func (r *FileSystemRepository) ensureMonthFile(period pnl.Period, path string) error {
	if pathutil.FileExists(path) {
		return nil
	}
	if err := pathutil.EnsureParentDir(path); err != nil {
		return fmt.Errorf("failed to ensure parent directory: %w", err)
	}
	header := fmt.Sprintf("; Marketplace settlements for %s\n; Generated at %s\n\n", period, r.now().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(header), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
