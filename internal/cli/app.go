package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/clausecheck/internal/cache"
	"github.com/ppiankov/clausecheck/internal/corpus"
	"github.com/ppiankov/clausecheck/internal/enrich"
	"github.com/ppiankov/clausecheck/internal/extract"
	"github.com/ppiankov/clausecheck/internal/index"
	"github.com/ppiankov/clausecheck/internal/model"
	"github.com/ppiankov/clausecheck/internal/pipeline"
	"github.com/ppiankov/clausecheck/internal/rules"
	"github.com/ppiankov/clausecheck/internal/store"
	"github.com/ppiankov/clausecheck/internal/translate"
	"github.com/ppiankov/clausecheck/internal/util"
	"github.com/ppiankov/clausecheck/internal/worker"
)

// app holds the collaborators built from configuration for one command
type app struct {
	cfg    *model.Config
	logger *zap.Logger
	cache  cache.Cache
	store  *store.Store // nil without store.path
	index  *index.Index
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, cache: cache.FromConfig(cfg.Cache)}

	if cfg.Store.Path != "" {
		s, err := store.Open(cache.ExpandHome(cfg.Store.Path))
		if err != nil {
			return nil, err
		}
		a.store = s
	}

	docs, err := a.loadCorpus(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.index = index.New(docs, index.Options{
		TopK:         cfg.Retrieval.TopK,
		ForceLexical: cfg.Retrieval.ForceLexical,
		CheckTimeout: cfg.Retrieval.Embedding.Timeout,
	}, a.embedder(), logger)

	return a, nil
}

// Close releases the store and flushes the logger
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// loadCorpus resolves the knowledge base: snapshot, corpus file, store, built-in laws
func (a *app) loadCorpus(ctx context.Context) ([]model.KnowledgeDoc, error) {
	r := a.cfg.Retrieval
	if r.SnapshotPath != "" {
		want := ""
		if a.embedderConfigured() {
			want = r.Embedding.Model
		}
		docs, err := index.LoadSnapshot(cache.ExpandHome(r.SnapshotPath), want)
		if err == nil {
			a.logger.Debug("loaded index snapshot", zap.String("path", r.SnapshotPath), zap.Int("docs", len(docs)))
			return docs, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("ignoring index snapshot", zap.String("path", r.SnapshotPath), zap.Error(err))
		}
	}
	if r.CorpusPath != "" {
		return corpus.LoadFile(cache.ExpandHome(r.CorpusPath))
	}
	if a.store != nil {
		docs, err := a.store.Docs(ctx, "")
		if err != nil {
			return nil, err
		}
		if len(docs) > 0 {
			return docs, nil
		}
	}
	return corpus.DefaultLaws(), nil
}

// loadCatalog resolves rules: catalog file, store, built-in atoms
func (a *app) loadCatalog(ctx context.Context) (*rules.Catalog, error) {
	if p := a.cfg.Rules.CatalogPath; p != "" {
		return rules.LoadCatalogFile(cache.ExpandHome(p))
	}
	if a.store != nil {
		atoms, err := a.store.Rules(ctx)
		if err != nil {
			return nil, err
		}
		if len(atoms) > 0 {
			return rules.NewCatalog(atoms), nil
		}
	}
	return rules.DefaultCatalog(), nil
}

func (a *app) embedderConfigured() bool {
	return !a.cfg.Retrieval.ForceLexical && strings.EqualFold(a.cfg.Retrieval.Embedding.Provider, "openai")
}

// embedder returns nil when dense retrieval is not configured
func (a *app) embedder() index.Embedder {
	if !a.embedderConfigured() {
		return nil
	}
	e := a.cfg.Retrieval.Embedding
	emb, err := index.NewOpenAIEmbedder(index.EmbedderConfig{
		Model:      e.Model,
		APIKey:     e.APIKey,
		BaseURL:    e.BaseURL,
		Timeout:    e.Timeout,
		HTTPClient: util.NewHTTPClient(e.Timeout, a.cfg.Network),
	})
	if err != nil {
		a.logger.Warn("dense embedder disabled", zap.Error(err))
		return nil
	}
	return index.NewCachedEmbedder(emb, a.cache, a.cfg.Cache.TTL)
}

// translator wraps the configured provider; translation is never fatal
func (a *app) translator() *translate.Safe {
	t := a.cfg.Translate
	inner, err := translate.New(t, a.cfg.Network)
	if err != nil {
		a.logger.Warn("translation disabled", zap.Error(err))
		inner = nil
	}

	opts := []translate.SafeOption{
		translate.WithTimeout(t.Timeout),
		translate.WithLimiter(worker.NewLimiter(t.RPS, t.Burst)),
	}
	if a.cache != nil {
		opts = append(opts, translate.WithCache(a.cache, a.cfg.Cache.TTL))
	}
	return translate.NewSafe(inner, a.logger.Named("translate"), opts...)
}

func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	cat, err := a.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if err := cat.Validate(); err != nil {
		a.logger.Warn("rule catalog has malformed atoms", zap.Error(err))
	}

	opts := pipeline.Options{
		Extractor:   extract.NewTextExtractor(),
		Evaluator:   rules.NewEvaluator(a.index, a.cfg.Retrieval.TopK, a.logger),
		Catalog:     cat,
		Enricher:    enrich.New(a.index, a.logger),
		Translator:  a.translator(),
		Retrieval:   a.index,
		Targets:     a.cfg.Translate.Targets,
		Concurrency: a.cfg.Translate.Concurrency,
		Logger:      a.logger,
	}
	if a.store != nil {
		opts.Sink = a.store
	}
	return pipeline.New(opts), nil
}
