package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/tour-quote/internal/pricing"
)

// Snapshot is one consistent read of the pricing configuration and tax rules.
type Snapshot struct {
	Version  string           `json:"version"`
	Settings pricing.Settings `json:"settings"`
	Taxes    pricing.TaxTable `json:"taxes"`
}

// Source loads a settings snapshot from its backing store.
type Source interface {
	Load(ctx context.Context) (Snapshot, error)
}

type document struct {
	Version string            `yaml:"version"`
	Pricing *pricing.Settings `yaml:"pricing"`
	Taxes   []pricing.TaxRule `yaml:"taxes"`
}

// FileSource reads settings from a YAML rules file.
type FileSource struct {
	Path string
}

// Load parses the rules file. A missing file or pricing section yields pricing.ErrConfiguration.
func (s FileSource) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	path := strings.TrimSpace(s.Path)
	if path == "" {
		return Snapshot{}, fmt.Errorf("settings: rules file not configured: %w", pricing.ErrConfiguration)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("settings: %s not found: %w", path, pricing.ErrConfiguration)
		}
		return Snapshot{}, fmt.Errorf("settings: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML rules document into a snapshot.
func Parse(data []byte) (Snapshot, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("settings: decode rules: %w", err)
	}
	if doc.Pricing == nil {
		return Snapshot{}, fmt.Errorf("settings: pricing section missing: %w", pricing.ErrConfiguration)
	}
	for i, slab := range doc.Pricing.MarkupSlabs {
		switch slab.MarkupType {
		case pricing.MarkupPercentage, pricing.MarkupFixed:
		case "":
			doc.Pricing.MarkupSlabs[i].MarkupType = pricing.MarkupPercentage
		default:
			return Snapshot{}, fmt.Errorf("settings: slab %d has unknown markup type %q: %w", i, slab.MarkupType, pricing.ErrConfiguration)
		}
		if slab.MaxAmount.LessThan(slab.MinAmount) {
			return Snapshot{}, fmt.Errorf("settings: slab %d max below min: %w", i, pricing.ErrConfiguration)
		}
	}
	return Snapshot{
		Version:  strings.TrimSpace(doc.Version),
		Settings: *doc.Pricing,
		Taxes:    pricing.TaxTable{Rules: doc.Taxes},
	}, nil
}
