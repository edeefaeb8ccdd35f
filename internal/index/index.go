package index

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/clausecheck/internal/model"
	"go.uber.org/zap"
)

const (
	// DefaultTopK is the number of citations returned when topK <= 0
	DefaultTopK = 3

	snippetRunes = 400
	hintScore    = 1.0
	hitScore     = 0.05
	maxHitScore  = 0.5
)

// Mode identifies the active similarity backend
type Mode string

const (
	ModeLexical Mode = "lexical"
	ModeDense   Mode = "dense"
)

var queryToken = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Options configures an Index
type Options struct {
	TopK         int
	ForceLexical bool
	MaxFeatures  int
	CheckTimeout time.Duration // bound on the dense check, default 30s
}

// Index ranks knowledge documents against queries.
// Vectorizer fitting and the dense check run once, on first use,
// and again only after Rebuild.
type Index struct {
	opts     Options
	embedder Embedder
	logger   *zap.Logger

	mu    sync.Mutex
	docs  []model.KnowledgeDoc
	state *state
}

// state is immutable once built
type state struct {
	docs     []model.KnowledgeDoc
	lexical  *Vectorizer
	mode     Mode
	denseErr error       // why dense mode was unavailable
	docVecs  [][]float64 // lazily filled by Nearest
	vecOnce  sync.Once
	vecErr   error
}

// New creates an index over docs. A nil embedder means lexical mode.
func New(docs []model.KnowledgeDoc, opts Options, embedder Embedder, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 30 * time.Second
	}
	return &Index{
		opts:     opts,
		embedder: embedder,
		logger:   logger.Named("index"),
		docs:     append([]model.KnowledgeDoc(nil), docs...),
	}
}

// Rebuild replaces the corpus; the next query refits the vectorizer
func (ix *Index) Rebuild(docs []model.KnowledgeDoc) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.docs = append([]model.KnowledgeDoc(nil), docs...)
	ix.state = nil
}

// Warmup builds the index eagerly
func (ix *Index) Warmup(ctx context.Context) Mode {
	return ix.ensure(ctx).mode
}

// Mode returns the active backend, building the index if needed
func (ix *Index) Mode(ctx context.Context) Mode {
	return ix.ensure(ctx).mode
}

// Unavailable returns an error wrapping ErrRetrievalUnavailable when an
// embedder was configured but the index fell back to lexical mode
func (ix *Index) Unavailable(ctx context.Context) error {
	return ix.ensure(ctx).denseErr
}

// Docs returns the indexed corpus
func (ix *Index) Docs() []model.KnowledgeDoc {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return append([]model.KnowledgeDoc(nil), ix.docs...)
}

func (ix *Index) ensure(ctx context.Context) *state {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.state != nil {
		return ix.state
	}

	vec := NewVectorizer(ix.opts.MaxFeatures)
	vec.Fit(docTexts(ix.docs))

	st := &state{docs: ix.docs, lexical: vec, mode: ModeLexical}
	switch {
	case ix.opts.ForceLexical:
		ix.logger.Info("dense retrieval disabled, using lexical backend")
	case ix.embedder == nil:
		ix.logger.Debug("no embedder configured, using lexical backend")
	default:
		if err := ix.checkDense(ctx); err != nil {
			ix.logger.Warn("dense embedder unavailable, falling back to lexical",
				zap.String("embedder", ix.embedder.Name()),
				zap.Error(err))
			st.denseErr = fmt.Errorf("%w: %s: %v", ErrRetrievalUnavailable, ix.embedder.Name(), err)
		} else {
			st.mode = ModeDense
		}
	}

	ix.logger.Info("index built",
		zap.Int("docs", len(st.docs)),
		zap.Int("features", vec.Dim()),
		zap.String("mode", string(st.mode)))
	ix.state = st
	return st
}

// checkDense calls the embedder once for the whole process, so it must not
// inherit the cancellation of whichever caller happened to come first
func (ix *Index) checkDense(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ix.opts.CheckTimeout)
	defer cancel()
	_, err := ix.embedder.EmbedDocuments(ctx, []string{"ping"})
	return err
}

// Embed returns one vector for text using the active backend
func (ix *Index) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := ix.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per text; all vectors share one length.
// A dense failure after the dense check degrades to lexical vectors for the whole batch.
func (ix *Index) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	st := ix.ensure(ctx)
	if st.mode == ModeDense {
		dense, err := ix.embedder.EmbedDocuments(ctx, texts)
		if err == nil {
			out := make([][]float64, len(dense))
			for i, v := range dense {
				out[i] = toFloat64(v)
			}
			return out, nil
		}
		ix.logger.Warn("dense embedding failed, using lexical vectors", zap.Error(err))
	}
	return st.lexical.Transform(texts)
}

// LexicalEmbed always uses the fitted TF-IDF vectorizer
func (ix *Index) LexicalEmbed(texts []string) ([][]float64, error) {
	return ix.ensure(context.Background()).lexical.Transform(texts)
}

// Search scores every document against query.
// score = 1.0 when the doc ref equals lawHint, plus 0.05 per query token
// occurrence (tokens longer than two runes), capped at 0.5.
// Results are ordered by score desc, then ref asc.
func (ix *Index) Search(ctx context.Context, query string, topK int, lawHint string) ([]model.Citation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = ix.opts.TopK
	}

	ix.mu.Lock()
	docs := ix.docs
	ix.mu.Unlock()

	cites := make([]model.Citation, 0, len(docs))
	for _, d := range docs {
		q := query
		if strings.TrimSpace(q) == "" {
			q = d.Title
		}
		cites = append(cites, model.Citation{
			LawID:    d.LawID,
			Ref:      d.Ref,
			Title:    d.Title,
			Snippet:  truncateRunes(d.Text, snippetRunes),
			FullText: d.Text,
			Score:    round4(score(d, q, lawHint)),
		})
	}

	sort.SliceStable(cites, func(i, j int) bool {
		if cites[i].Score != cites[j].Score {
			return cites[i].Score > cites[j].Score
		}
		return cites[i].Ref < cites[j].Ref
	})

	if len(cites) > topK {
		cites = cites[:topK]
	}
	return cites, nil
}

func score(d model.KnowledgeDoc, query, lawHint string) float64 {
	s := 0.0
	if lawHint != "" && d.Ref == lawHint {
		s += hintScore
	}
	text := strings.ToLower(d.Text)
	hits := 0
	for _, tok := range queryToken.FindAllString(strings.ToLower(query), -1) {
		if utf8.RuneCountInString(tok) > 2 {
			hits += strings.Count(text, tok)
		}
	}
	return s + math.Min(maxHitScore, float64(hits)*hitScore)
}

// Nearest ranks documents by cosine similarity to query under the active backend
func (ix *Index) Nearest(ctx context.Context, query string, k int) ([]model.Citation, error) {
	st := ix.ensure(ctx)
	if len(st.docs) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = ix.opts.TopK
	}

	st.vecOnce.Do(func() {
		if st.mode == ModeDense {
			if vecs, ok := storedEmbeddings(st.docs); ok {
				st.docVecs = vecs
				return
			}
		}
		st.docVecs, st.vecErr = ix.EmbedBatch(ctx, docTexts(st.docs))
	})
	if st.vecErr != nil {
		return nil, fmt.Errorf("embed corpus: %w", st.vecErr)
	}
	docVecs := st.docVecs

	q, err := ix.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(q) != len(docVecs[0]) {
		// backend changed between corpus and query embedding
		lex, err := st.lexical.Transform(append([]string{query}, docTexts(st.docs)...))
		if err != nil {
			return nil, fmt.Errorf("lexical fallback: %w", err)
		}
		q, docVecs = lex[0], lex[1:]
	}

	cites := make([]model.Citation, len(st.docs))
	for i, d := range st.docs {
		cites[i] = model.Citation{
			LawID:    d.LawID,
			Ref:      d.Ref,
			Title:    d.Title,
			Snippet:  truncateRunes(d.Text, snippetRunes),
			FullText: d.Text,
			Score:    round4(Cosine(q, docVecs[i])),
		}
	}
	sort.SliceStable(cites, func(i, j int) bool {
		if cites[i].Score != cites[j].Score {
			return cites[i].Score > cites[j].Score
		}
		return cites[i].Ref < cites[j].Ref
	})
	if len(cites) > k {
		cites = cites[:k]
	}
	return cites, nil
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func docTexts(docs []model.KnowledgeDoc) []string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	return texts
}

// storedEmbeddings returns the docs' own vectors when every doc carries one of equal length
func storedEmbeddings(docs []model.KnowledgeDoc) ([][]float64, bool) {
	out := make([][]float64, len(docs))
	for i, d := range docs {
		if len(d.Embedding) == 0 || len(d.Embedding) != len(docs[0].Embedding) {
			return nil, false
		}
		out[i] = toFloat64(d.Embedding)
	}
	return out, true
}
