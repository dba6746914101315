// Package accountmap maps P&L categories to ledger accounts.
package accountmap

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/pnl"
)

// ErrMappingNotFound is wrapped by every lookup miss.
var ErrMappingNotFound = errors.New("account mapping not found")

// MappingError reports the (section, category) that has no mapping.
type MappingError struct {
	Section  pnl.Section
	Category pnl.Category
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: %s/%s", ErrMappingNotFound, e.Section, e.Category)
}

func (e *MappingError) Unwrap() error { return ErrMappingNotFound }

// Account is a ledger account reference.
type Account struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// IsZero reports whether the account is unset.
func (a Account) IsZero() bool { return a.ID == "" }

// Mapping is the account pair a category books to: its P&L account and the
// balance-sheet account that carries it while unpaid.
type Mapping struct {
	PnL Account
	BS  Account
}

// CategoryMapping is one row of the account map file.
type CategoryMapping struct {
	Section        pnl.Section  `yaml:"section"`
	Category       pnl.Category `yaml:"category"`
	PnLAccountID   string       `yaml:"pnl_account_id"`
	PnLAccountName string       `yaml:"pnl_account_name"`
	BSAccountID    string       `yaml:"bs_account_id"`
	BSAccountName  string       `yaml:"bs_account_name"`
}

// Config is the account map file.
type Config struct {
	Entities struct {
		Customer string `yaml:"customer"`
		Vendor   string `yaml:"vendor"`
	} `yaml:"entities"`
	Accounts struct {
		BankDeposit       Account `yaml:"bank_deposit"`
		Receivable        Account `yaml:"receivable"`
		Payable           Account `yaml:"payable"`
		COGS              Account `yaml:"cogs"`
		OutboundInventory Account `yaml:"outbound_inventory"`
	} `yaml:"accounts"`
	Categories []CategoryMapping `yaml:"categories"`
}

type key struct {
	section  pnl.Section
	category pnl.Category
}

// Map resolves categories to accounts. It is read-only after construction.
type Map struct {
	config  Config
	entries map[key]Mapping
}

// Load reads an account map from a YAML file.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read account map: %w", err)
	}
	return Parse(data)
}

// Parse builds a Map from YAML.
func Parse(data []byte) (*Map, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse account map: %w", err)
	}
	return New(cfg)
}

// New builds a Map from an already decoded config.
func New(cfg Config) (*Map, error) {
	if cfg.Accounts.BankDeposit.IsZero() {
		return nil, errors.New("account map: bank_deposit account is required")
	}
	if cfg.Accounts.Receivable.IsZero() || cfg.Accounts.Payable.IsZero() {
		return nil, errors.New("account map: receivable and payable accounts are required")
	}

	m := &Map{config: cfg, entries: make(map[key]Mapping, len(cfg.Categories))}
	for i, c := range cfg.Categories {
		if !c.Category.Valid() {
			return nil, fmt.Errorf("account map: row %d: invalid category", i+1)
		}
		if c.PnLAccountID == "" {
			return nil, fmt.Errorf("account map: %s/%s: pnl_account_id is required", c.Section, c.Category)
		}
		k := key{c.Section, c.Category}
		if _, dup := m.entries[k]; dup {
			return nil, fmt.Errorf("account map: duplicate mapping for %s/%s", c.Section, c.Category)
		}
		m.entries[k] = Mapping{
			PnL: Account{ID: c.PnLAccountID, Name: c.PnLAccountName},
			BS:  Account{ID: c.BSAccountID, Name: c.BSAccountName},
		}
	}
	return m, nil
}

// Lookup returns the mapping for (section, category). A miss returns a
// *MappingError wrapping ErrMappingNotFound.
func (m *Map) Lookup(section pnl.Section, c pnl.Category) (Mapping, error) {
	mp, ok := m.entries[key{section, c}]
	if !ok {
		return Mapping{}, &MappingError{Section: section, Category: c}
	}
	return mp, nil
}

// Receivable returns the AR account for a mapping, falling back to the
// default receivable account.
func (m *Map) Receivable(mp Mapping) Account {
	if !mp.BS.IsZero() {
		return mp.BS
	}
	return m.config.Accounts.Receivable
}

// Payable returns the AP account for a mapping, falling back to the default
// payable account.
func (m *Map) Payable(mp Mapping) Account {
	if !mp.BS.IsZero() {
		return mp.BS
	}
	return m.config.Accounts.Payable
}

func (m *Map) BankDeposit() Account       { return m.config.Accounts.BankDeposit }
func (m *Map) COGS() Account              { return m.config.Accounts.COGS }
func (m *Map) OutboundInventory() Account { return m.config.Accounts.OutboundInventory }
func (m *Map) Customer() string           { return m.config.Entities.Customer }
func (m *Map) Vendor() string             { return m.config.Entities.Vendor }

// Len returns the number of category mappings.
func (m *Map) Len() int { return len(m.entries) }
