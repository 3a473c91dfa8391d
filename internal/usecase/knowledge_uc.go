package usecase

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/adapter"
	"mediview-ai-service/internal/domain/ports/repository"
	"mediview-ai-service/internal/infra/metrics"
)

// Compile-time check
var _ KnowledgeUseCase = (*knowledgeUC)(nil)

// KnowledgeUseCase is the retrieval engine over the knowledge corpus.
type KnowledgeUseCase interface {
	AddDocument(ctx context.Context, title, content, source, docType string, metadata map[string]any) (*model.KnowledgeDocument, error)
	// Search ranks by vector similarity when embeddings are available and
	// falls back to lexical matching otherwise. It never returns an error
	// from the fallback path: an empty slice is the answer to "no matches".
	Search(ctx context.Context, query string, limit int) ([]model.KnowledgeDocument, error)
	Get(ctx context.Context, id int64) (*model.KnowledgeDocument, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]model.KnowledgeDocument, error)
	Stats(ctx context.Context) (total int64, sources []string, err error)
}

type knowledgeUC struct {
	docs       repository.DocumentRepository
	embedder   adapter.EmbeddingAdapter
	embedChars int
	log        *zerolog.Logger
}

func NewKnowledgeUseCase(docs repository.DocumentRepository, embedder adapter.EmbeddingAdapter, embedChars int, log *zerolog.Logger) *knowledgeUC {
	return &knowledgeUC{docs: docs, embedder: embedder, embedChars: embedChars, log: log}
}

// AddDocument stores the document, with an embedding when the capability is
// enabled. An embedding failure is not fatal: the document is stored without
// a vector and stays reachable through the lexical path.
func (u *knowledgeUC) AddDocument(ctx context.Context, title, content, source, docType string, metadata map[string]any) (*model.KnowledgeDocument, error) {
	doc := &model.KnowledgeDocument{
		Title:    title,
		Content:  content,
		Source:   source,
		DocType:  docType,
		Metadata: metadata,
	}

	if u.embedder.Enabled() {
		text := content
		if len(text) > u.embedChars {
			text = text[:u.embedChars]
		}
		embedding, err := u.embedder.Embed(ctx, text, adapter.EmbedDocument)
		if err != nil {
			u.log.Warn().Err(err).Str("title", title).Msg("document embedding failed, storing without vector")
		} else {
			doc.Embedding = embedding
		}
	}

	if err := u.docs.Save(ctx, nil, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (u *knowledgeUC) Search(ctx context.Context, query string, limit int) ([]model.KnowledgeDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	if u.embedder.Enabled() {
		embedding, err := u.embedder.Embed(ctx, query, adapter.EmbedQuery)
		if err == nil && len(embedding) > 0 {
			docs, err := u.docs.SearchByEmbedding(ctx, embedding, limit)
			if err == nil {
				metrics.IncRetrievalSearch("vector")
				return docs, nil
			}
			u.log.Warn().Err(err).Msg("vector search failed, falling back to lexical")
		} else if err != nil {
			u.log.Warn().Err(err).Msg("query embedding failed, falling back to lexical")
		}
	}

	metrics.IncRetrievalSearch("lexical")
	docs, err := u.docs.SearchLexical(ctx, query, limit)
	if err != nil {
		// The fallback never raises; no matches is the correct answer.
		u.log.Warn().Err(err).Str("query", query).Msg("lexical search failed")
		return nil, nil
	}
	return docs, nil
}

func (u *knowledgeUC) Get(ctx context.Context, id int64) (*model.KnowledgeDocument, error) {
	return u.docs.FindByID(ctx, nil, id)
}

func (u *knowledgeUC) Delete(ctx context.Context, id int64) error {
	return u.docs.Delete(ctx, nil, id)
}

func (u *knowledgeUC) List(ctx context.Context, limit, offset int) ([]model.KnowledgeDocument, error) {
	if limit <= 0 {
		limit = 50
	}
	return u.docs.List(ctx, nil, limit, offset)
}

func (u *knowledgeUC) Stats(ctx context.Context) (int64, []string, error) {
	total, err := u.docs.Count(ctx, nil)
	if err != nil {
		return 0, nil, err
	}
	docs, err := u.docs.List(ctx, nil, 1000, 0)
	if err != nil {
		return 0, nil, err
	}
	seen := make(map[string]struct{})
	var sources []string
	for _, d := range docs {
		if _, ok := seen[d.Source]; !ok {
			seen[d.Source] = struct{}{}
			sources = append(sources, d.Source)
		}
	}
	sort.Strings(sources)
	return total, sources, nil
}
