package csvimport

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dvloznov/statement-import/internal/domain"
	"gopkg.in/yaml.v3"
)

// Presets are named column mappings for known bank exports.
type Presets map[string]domain.ColumnMapping

type presetsFile struct {
	Presets Presets `yaml:"presets"`
}

// LoadPresets reads a YAML presets file of the form
//
//	presets:
//	  kbank:
//	    date: Date
//	    description: Details
//	    amount: Amount
func LoadPresets(path string) (Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadPresets: read %q: %w", path, err)
	}
	return ParsePresets(data)
}

// ParsePresets decodes presets YAML and validates every entry.
func ParsePresets(data []byte) (Presets, error) {
	var f presetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ParsePresets: decode: %w", err)
	}

	out := make(Presets, len(f.Presets))
	for name, m := range f.Presets {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("ParsePresets: preset %q: %w", name, err)
		}
		out[strings.ToLower(strings.TrimSpace(name))] = m
	}
	return out, nil
}

// Lookup finds a preset by name, case-insensitively.
func (p Presets) Lookup(name string) (domain.ColumnMapping, bool) {
	m, ok := p[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// Detect returns the first preset, in name order, whose mapped columns are
// all present in headers.
func (p Presets) Detect(headers []string) (string, domain.ColumnMapping, bool) {
	have := make(map[string]bool, len(headers))
	for _, h := range headers {
		have[h] = true
	}

	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := p[name]
		if !have[m.Date] || !have[m.Description] || !have[m.Amount] {
			continue
		}
		if m.Type != "" && !have[m.Type] {
			continue
		}
		return name, m, true
	}
	return "", domain.ColumnMapping{}, false
}
