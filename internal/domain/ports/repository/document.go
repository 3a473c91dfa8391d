package repository

import (
	"context"

	"mediview-ai-service/internal/domain/model"
)

// DocumentRepository stores the retrieval corpus.
type DocumentRepository interface {
	Save(ctx context.Context, tx Tx, doc *model.KnowledgeDocument) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.KnowledgeDocument, error)
	Delete(ctx context.Context, tx Tx, id int64) error
	List(ctx context.Context, tx Tx, limit, offset int) ([]model.KnowledgeDocument, error)
	Count(ctx context.Context, tx Tx) (int64, error)

	// SearchByEmbedding ranks documents with non-null embeddings by ascending
	// cosine distance to the query vector.
	SearchByEmbedding(ctx context.Context, embedding []float32, limit int) ([]model.KnowledgeDocument, error)
	// SearchLexical is the fallback path: case-insensitive substring match
	// over title and content, most recent first.
	SearchLexical(ctx context.Context, query string, limit int) ([]model.KnowledgeDocument, error)
}
