package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mediview-ai-service/internal/domain"
	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/repository"
)

var _ repository.DocumentRepository = (*documentRepo)(nil)

// documentRepo stores the retrieval corpus. Embeddings live in a pgvector
// column; rows without one are reachable only through SearchLexical.
type documentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *documentRepo {
	return &documentRepo{pool: pool}
}

func (r *documentRepo) Save(ctx context.Context, tx repository.Tx, doc *model.KnowledgeDocument) error {
	const q = `
INSERT INTO knowledge_documents (title, content, source, doc_type, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5::vector, $6, $7)
RETURNING id;`
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	meta, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	row, err := pickRow(ctx, r.pool, tx, q,
		doc.Title, doc.Content, doc.Source, doc.DocType, vectorLiteral(doc.Embedding), meta, doc.CreatedAt)
	if err != nil {
		return err
	}
	return row.Scan(&doc.ID)
}

func (r *documentRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.KnowledgeDocument, error) {
	const q = `
SELECT id, title, content, source, doc_type, embedding::text, metadata, created_at
  FROM knowledge_documents WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanDocument(row)
}

func (r *documentRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM knowledge_documents WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *documentRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]model.KnowledgeDocument, error) {
	const q = `
SELECT id, title, content, source, doc_type, embedding::text, metadata, created_at
  FROM knowledge_documents ORDER BY created_at DESC LIMIT $1 OFFSET $2;`
	rows, err := pickRows(ctx, r.pool, tx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (r *documentRepo) Count(ctx context.Context, tx repository.Tx) (int64, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM knowledge_documents;`)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SearchByEmbedding ranks rows with non-null embeddings by ascending cosine
// distance (pgvector `<=>`).
func (r *documentRepo) SearchByEmbedding(ctx context.Context, embedding []float32, limit int) ([]model.KnowledgeDocument, error) {
	const q = `
SELECT id, title, content, source, doc_type, embedding::text, metadata, created_at
  FROM knowledge_documents
 WHERE embedding IS NOT NULL
 ORDER BY embedding <=> $1::vector
 LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, vectorLiteral(embedding), limit)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

func (r *documentRepo) SearchLexical(ctx context.Context, query string, limit int) ([]model.KnowledgeDocument, error) {
	const q = `
SELECT id, title, content, source, doc_type, embedding::text, metadata, created_at
  FROM knowledge_documents
 WHERE title ILIKE $1 OR content ILIKE $1
 ORDER BY created_at DESC
 LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, "%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	return scanDocuments(rows)
}

// vectorLiteral renders a pgvector input literal like "[0.1,0.2]".
// Returns nil for an empty slice so the column stays NULL.
func vectorLiteral(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVectorLiteral(s string) []float32 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil
		}
		out = append(out, float32(f))
	}
	return out
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func scanDocument(row pgx.Row) (*model.KnowledgeDocument, error) {
	var (
		doc       model.KnowledgeDocument
		embedding *string
		meta      []byte
	)
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Source, &doc.DocType, &embedding, &meta, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if embedding != nil {
		doc.Embedding = parseVectorLiteral(*embedding)
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &doc.Metadata)
	}
	return &doc, nil
}

func scanDocuments(rows pgx.Rows) ([]model.KnowledgeDocument, error) {
	defer rows.Close()
	var out []model.KnowledgeDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}
