package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/clausecheck/internal/model"
)

// LexicalModelName labels snapshots produced by the TF-IDF backend
const LexicalModelName = "tfidf-char_wb-3-5"

// ErrSnapshotMismatch is returned when a snapshot was built with another model
var ErrSnapshotMismatch = errors.New("snapshot model mismatch")

// Snapshot is a serialized corpus with its embedding matrix
type Snapshot struct {
	Model     string               `json:"model"`
	Mode      Mode                 `json:"mode"`
	CreatedAt time.Time            `json:"created_at"`
	Docs      []model.KnowledgeDoc `json:"docs"`
	Vectors   [][]float32          `json:"vectors"`
}

// BuildSnapshot embeds the whole corpus with the active backend
func (ix *Index) BuildSnapshot(ctx context.Context) (*Snapshot, error) {
	st := ix.ensure(ctx)

	snap := &Snapshot{
		Model:     LexicalModelName,
		Mode:      st.mode,
		CreatedAt: time.Now().UTC(),
		Docs:      make([]model.KnowledgeDoc, len(st.docs)),
	}
	if st.mode == ModeDense {
		snap.Model = ix.embedder.Name()
	}
	for i, d := range st.docs {
		d.Embedding = nil
		snap.Docs[i] = d
	}
	if len(st.docs) == 0 {
		return snap, nil
	}

	vecs, err := ix.EmbedBatch(ctx, docTexts(st.docs))
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	snap.Vectors = make([][]float32, len(vecs))
	for i, v := range vecs {
		row := make([]float32, len(v))
		for j, x := range v {
			row[j] = float32(x)
		}
		snap.Vectors[i] = row
	}
	return snap, nil
}

// SaveSnapshot writes the index snapshot as JSON
func (ix *Index) SaveSnapshot(ctx context.Context, path string) error {
	snap, err := ix.BuildSnapshot(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot and returns its docs with embeddings attached.
// A non-empty wantModel must match the model the snapshot was built with.
func LoadSnapshot(path, wantModel string) ([]model.KnowledgeDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if wantModel != "" && snap.Model != wantModel {
		return nil, fmt.Errorf("%w: built with %q, want %q", ErrSnapshotMismatch, snap.Model, wantModel)
	}
	if len(snap.Vectors) != 0 && len(snap.Vectors) != len(snap.Docs) {
		return nil, fmt.Errorf("parse snapshot: %d vectors for %d docs", len(snap.Vectors), len(snap.Docs))
	}

	docs := snap.Docs
	for i := range snap.Vectors {
		docs[i].Embedding = snap.Vectors[i]
	}
	return docs, nil
}
