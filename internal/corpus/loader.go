// Package corpus loads and builds the law knowledge base searched by the index.
package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/clausecheck/internal/model"
)

// ErrEmptyCorpus is returned when a corpus file holds no documents
var ErrEmptyCorpus = errors.New("corpus has no documents")

// corpusFile is the YAML layout: a top-level docs list
type corpusFile struct {
	Docs []model.KnowledgeDoc `yaml:"docs"`
}

// Load returns the corpus at path, or the built-in laws when path is empty
func Load(path string) ([]model.KnowledgeDoc, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultLaws(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a YAML (.yaml/.yml), JSON array (.json) or JSON lines (.jsonl) corpus
func LoadFile(path string) ([]model.KnowledgeDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	var docs []model.KnowledgeDoc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		docs, err = parseJSONL(data)
	case ".json":
		err = json.Unmarshal(data, &docs)
	default:
		docs, err = ParseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}

	docs = normalize(docs)
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyCorpus)
	}
	return docs, nil
}

// ParseYAML accepts either {docs: [...]} or a bare list
func ParseYAML(data []byte) ([]model.KnowledgeDoc, error) {
	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err == nil && len(file.Docs) > 0 {
		return file.Docs, nil
	}

	var docs []model.KnowledgeDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// MarshalYAML renders docs in the layout ParseYAML reads
func MarshalYAML(docs []model.KnowledgeDoc) ([]byte, error) {
	return yaml.Marshal(corpusFile{Docs: docs})
}

// parseJSONL skips malformed lines
func parseJSONL(data []byte) ([]model.KnowledgeDoc, error) {
	var docs []model.KnowledgeDoc
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var doc model.KnowledgeDoc
		if err := json.Unmarshal(line, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, scanner.Err()
}

// normalize drops docs without text and fills missing IDs and titles
func normalize(docs []model.KnowledgeDoc) []model.KnowledgeDoc {
	out := make([]model.KnowledgeDoc, 0, len(docs))
	seen := make(map[string]int)
	for _, d := range docs {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		if d.Title == "" {
			d.Title = d.Ref
		}
		if d.ID == "" {
			d.ID = DocID(d.LawID, d.Ref, seen[d.LawID+"\x00"+d.Ref])
		}
		seen[d.LawID+"\x00"+d.Ref]++
		out = append(out, d)
	}
	return out
}

// DocID builds a stable identifier; chunk > 0 marks a continuation of a long article
func DocID(lawID, ref string, chunk int) string {
	id := lawID + ":" + ref
	if chunk > 0 {
		id = fmt.Sprintf("%s#%d", id, chunk)
	}
	return id
}
