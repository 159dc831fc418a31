// Package config loads the redistribution policy file
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/internal/infrastructure/costs"
)

// DefaultPath is used when POLICY_FILE is not set
const DefaultPath = "config/redistribution.yaml"

// ErrFileNotFound is returned by Load when the policy file does not exist
var ErrFileNotFound = errors.New("policy file not found")

// File is the policy file layout. Sections left out keep their defaults.
type File struct {
	Policy        domain.Policy          `yaml:"policy"`
	Thresholds    domain.StockThresholds `yaml:"thresholds"`
	TransferCosts costs.StaticCostTable  `yaml:"transferCosts"`
	LockTimeout   time.Duration          `yaml:"lockTimeout"`
	CostCacheTTL  time.Duration          `yaml:"costCacheTTL"`
}

// Default returns the built-in settings
func Default() *File {
	return &File{
		Policy:       domain.DefaultPolicy(),
		Thresholds:   domain.DefaultStockThresholds(),
		LockTimeout:  5 * time.Second,
		CostCacheTTL: costs.DefaultCacheTTL,
		TransferCosts: costs.StaticCostTable{
			Warehouses: map[string]float64{},
		},
	}
}

// Load reads and validates the policy file at path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a policy document over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	f := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks every section
func (f *File) Validate() error {
	if err := f.Policy.Validate(); err != nil {
		return err
	}
	if f.Thresholds.Low < 0 {
		return &domain.ConfigurationError{Field: "thresholds.low", Value: f.Thresholds.Low, Reason: "must not be negative"}
	}
	if f.Thresholds.Overstock < f.Thresholds.Low {
		return &domain.ConfigurationError{Field: "thresholds.overstock", Value: f.Thresholds.Overstock, Reason: "must not be below thresholds.low"}
	}
	if err := f.TransferCosts.Validate(); err != nil {
		return err
	}
	if f.LockTimeout <= 0 {
		return &domain.ConfigurationError{Field: "lockTimeout", Value: f.LockTimeout, Reason: "must be positive"}
	}
	if f.CostCacheTTL < 0 {
		return &domain.ConfigurationError{Field: "costCacheTTL", Value: f.CostCacheTTL, Reason: "must not be negative"}
	}
	return nil
}
