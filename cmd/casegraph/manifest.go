package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/casegraph/internal/models"
)

// manifest describes a document batch for one case.
//
//	case_id: case-2024-017
//	documents:
//	  - path: interviews/jane_doe.txt
//	    document_type: interview
//	  - document_id: tip-4
//	    raw_text: |
//	      Anonymous caller reported a grey sedan.
type manifest struct {
	CaseID    string          `yaml:"case_id"`
	Documents []manifestEntry `yaml:"documents"`
}

type manifestEntry struct {
	Path         string              `yaml:"path"`
	ID           string              `yaml:"document_id"`
	Filename     string              `yaml:"filename"`
	DocumentType models.DocumentType `yaml:"document_type"`
	RawText      string              `yaml:"raw_text"`
}

// loadManifest reads a manifest and the documents it references. Relative
// paths resolve against the manifest's directory.
func loadManifest(path string) (*manifest, []models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("parsing manifest: %w", err)
	}

	base := filepath.Dir(path)
	docs := make([]models.Document, 0, len(m.Documents))
	for i, e := range m.Documents {
		if e.DocumentType != "" && !e.DocumentType.IsValid() {
			return nil, nil, fmt.Errorf("manifest document %d: invalid document_type %q", i, e.DocumentType)
		}
		doc := models.Document{ID: e.ID, Filename: e.Filename, DocumentType: e.DocumentType, RawText: e.RawText}
		if e.Path != "" {
			p := e.Path
			if !filepath.IsAbs(p) {
				p = filepath.Join(base, p)
			}
			d, readErr := readDocument(p)
			if readErr != nil {
				return nil, nil, fmt.Errorf("manifest document %d: %w", i, readErr)
			}
			doc.RawText = d.RawText
			if doc.Filename == "" {
				doc.Filename = d.Filename
			}
		}
		if doc.RawText == "" {
			return nil, nil, fmt.Errorf("manifest document %d: neither path nor raw_text given", i)
		}
		docs = append(docs, doc)
	}
	return &m, docs, nil
}

func readDocument(path string) (models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return models.Document{Filename: filepath.Base(path), RawText: string(data)}, nil
}
