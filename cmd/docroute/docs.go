package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"docroute/internal/domain"
)

// docsFile is the on-disk shape of a candidate document set.
type docsFile struct {
	Documents []domain.Document `yaml:"documents"`
}

// loadDocuments reads candidate documents from a YAML file. An empty path
// yields no documents.
func loadDocuments(path string) ([]domain.Document, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	var f docsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse documents: %w", err)
	}

	seen := make(map[string]bool, len(f.Documents))
	for i, d := range f.Documents {
		if d.ID == "" {
			return nil, fmt.Errorf("document %d: missing id", i)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("document %d: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = true
	}
	return f.Documents, nil
}
