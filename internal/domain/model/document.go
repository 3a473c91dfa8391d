package model

import "time"

// KnowledgeDocument is one entry of the retrieval corpus. A nil Embedding is a
// valid, expected state: such documents are only reachable through the lexical
// fallback search.
type KnowledgeDocument struct {
	ID        int64
	Title     string
	Content   string
	Source    string
	DocType   string
	Embedding []float32
	Metadata  map[string]any
	CreatedAt time.Time
}

// Preview returns the first n characters of the content for list views.
func (d *KnowledgeDocument) Preview(n int) string {
	if len(d.Content) <= n {
		return d.Content
	}
	return d.Content[:n] + "..."
}
