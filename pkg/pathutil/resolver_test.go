package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

func TestNewDefaults(t *testing.T) {
	p := New(Config{BooksRoot: "/books"})
	if got, want := p.DatabasePath(), filepath.Join("/books", ".history", "postings.db"); got != want {
		t.Errorf("DatabasePath() = %q, want %q", got, want)
	}
	if got, want := p.ExtractDir(), filepath.Join("/books", "extracts"); got != want {
		t.Errorf("ExtractDir() = %q, want %q", got, want)
	}

	p = New(Config{BooksRoot: "/books", DatabasePath: "/tmp/h.db", ExtractDir: "/data"})
	if p.DatabasePath() != "/tmp/h.db" || p.ExtractDir() != "/data" {
		t.Errorf("explicit paths not kept: %q %q", p.DatabasePath(), p.ExtractDir())
	}
}

func TestMonthFile(t *testing.T) {
	p := New(Config{BooksRoot: "/books"})
	got := p.MonthFile(pnl.Period{Year: 2024, Month: 3})
	want := filepath.Join("/books", "2024", "2024-03.beancount")
	if got != want {
		t.Errorf("MonthFile() = %q, want %q", got, want)
	}
}

func TestFindExtract(t *testing.T) {
	root := t.TempDir()
	p := New(Config{BooksRoot: root})
	period := pnl.Period{Year: 2024, Month: 1}

	if _, ok := p.FindExtract(period, "orders", ".csv", ".xlsx"); ok {
		t.Fatal("FindExtract() found a file in an empty directory")
	}

	path := p.Extract(period, "orders.xlsx")
	if err := EnsureParentDir(path); err != nil {
		t.Fatalf("EnsureParentDir() failed: %v", err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	got, ok := p.FindExtract(period, "orders", ".csv", ".xlsx")
	if !ok || got != path {
		t.Errorf("FindExtract() = %q, %v; want %q", got, ok, path)
	}
}
