package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// useReconcileFlags points the command at a fresh books root and restores
// the package-level flags afterwards.
func useReconcileFlags(t *testing.T, p string) (root string, out *bytes.Buffer) {
	t.Helper()
	root = t.TempDir()
	t.Setenv("BOOKS_ROOT", root)
	t.Setenv("BOOKS_DB_PATH", "")
	t.Setenv("BOOKS_EXTRACT_DIR", "")
	t.Setenv("ACCOUNT_MAP_PATH", filepath.Join("..", "..", "..", "config", "account-map.yaml"))
	t.Setenv("RATES_PATH", filepath.Join("..", "..", "..", "config", "rates.yaml"))

	period, post, sinkName, showEntries = p, true, "beancount", false
	ordersPath, poolsPath, settlementPaths, cfgFile = "", "", nil, ""
	t.Cleanup(func() {
		period, post, sinkName = "", false, "beancount"
		reconcileCmd.SetOut(nil)
	})

	out = &bytes.Buffer{}
	reconcileCmd.SetOut(out)
	return root, out
}

func writeExtract(t *testing.T, root, name, body string) {
	t.Helper()
	dir := filepath.Join(root, "extracts", "2024-01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunReconcilePostsOnce(t *testing.T) {
	root, out := useReconcileFlags(t, "2024-01")
	writeExtract(t, root, "orders.csv", "order_id,sku,purchase_date,quantity,principal\nA-1,SKU1,2024-01-03,1,100\n")
	writeExtract(t, root, "pools.csv", "period,sku,kind,total\n2024-01,SKU1,fulfillment_fee,15\n")
	header := "settlement-id,deposit-date,transaction-type,order-id,sku,amount-type,amount-description,amount,posted-date\n"
	writeExtract(t, root, "settlement-1.csv", header+"S1,2024-01-20,,,,,,,\nS1,,Order,A-1,SKU1,ItemPrice,Principal,100,2024-01-05\n")
	writeExtract(t, root, "settlement-2.csv", header+"S2,2024-02-10,,,,,,,\nS2,,Order,A-1,SKU1,ItemFees,Commission,-10,2024-01-28\n")

	if err := runReconcile(reconcileCmd, nil); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if !strings.Contains(out.String(), "skipped 0 already posted") {
		t.Errorf("first run output:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(root, "2024", "2024-01.beancount")); err != nil {
		t.Errorf("month file not written: %v", err)
	}

	// The history database was closed on return, so a second run can use it.
	out.Reset()
	if err := runReconcile(reconcileCmd, nil); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !strings.Contains(out.String(), "Posted 0 entries") {
		t.Errorf("second run output:\n%s", out.String())
	}
}

func TestRunReconcileReturnsErrors(t *testing.T) {
	tests := []struct {
		name   string
		period string
		want   string
	}{
		{"bad period", "2024-13", "invalid period"},
		{"no extracts", "2024-01", "failed to load extracts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useReconcileFlags(t, tt.period)
			err := runReconcile(reconcileCmd, nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("runReconcile() error = %v, want %q", err, tt.want)
			}
		})
	}
}
