package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shunichi-ikebuchi/settlement-books/pkg/allocation"
)

// RatesFile is the YAML rates file.
type RatesFile struct {
	Rates    allocation.Rates `yaml:"rates"`
	Currency string           `yaml:"currency"`
}

// LoadRates reads the rates file. A missing file yields allocation.DefaultRates;
// keys absent from the file keep their default.
func LoadRates(path string) (*RatesFile, error) {
	rf := &RatesFile{Rates: allocation.DefaultRates()}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return rf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rates file: %w", err)
	}
	if err := yaml.Unmarshal(data, rf); err != nil {
		return nil, fmt.Errorf("failed to parse rates file: %w", err)
	}
	if rf.Rates.Commission.IsNegative() || rf.Rates.ShippingCommission.IsNegative() || rf.Rates.FacilitatorTax.IsNegative() {
		return nil, fmt.Errorf("rates file %s: rates must not be negative", path)
	}
	return rf, nil
}
