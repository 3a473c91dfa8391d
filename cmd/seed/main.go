package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"mediview-ai-service/internal/config"
	"mediview-ai-service/internal/domain/ports/adapter"
	aiAdapters "mediview-ai-service/internal/infra/adapters/ai"
	pg "mediview-ai-service/internal/infra/db/postgres"
	"mediview-ai-service/internal/infra/logging"
	"mediview-ai-service/internal/usecase"
)

// Seeds a handful of knowledge base documents for testing the retrieval
// path. Embeddings are computed when an AI provider is configured; otherwise
// the documents stay lexical-only.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	var embedder adapter.EmbeddingAdapter
	switch {
	case cfg.AI.GeminiKey != "":
		gem, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.VisionModel, cfg.AI.SummaryModel, cfg.AI.EmbeddingModel)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		embedder = gem
	case cfg.AI.OpenAIKey != "":
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.VisionModel, cfg.AI.EmbeddingModel)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		embedder = oa
	default:
		embedder = aiAdapters.NewNoopEmbeddingAdapter()
		log.Println("no AI provider configured; seeding without embeddings")
	}

	docRepo := pg.NewDocumentRepo(pool)
	knowledgeUC := usecase.NewKnowledgeUseCase(docRepo, embedder, cfg.RAG.EmbedContentChars, logger)

	// If documents already exist, do nothing.
	total, _, err := knowledgeUC.Stats(ctx)
	if err != nil {
		log.Fatalf("stats: %v", err)
	}
	if total > 0 {
		fmt.Printf("%d documents already present. No changes.\n", total)
		return
	}

	seed := []struct {
		Title   string
		Content string
		Source  string
		DocType string
	}{
		{
			Title:   "Pulmonary nodules on chest radiographs",
			Content: "A pulmonary nodule is a rounded opacity up to 3 cm in diameter. Solitary nodules under 8 mm in low-risk patients are usually followed with serial imaging. Features suggesting malignancy include spiculated margins, upper lobe location, and growth on follow-up.",
			Source:  "radiopaedia",
			DocType: "article",
		},
		{
			Title:   "Consolidation and air bronchograms",
			Content: "Consolidation refers to alveolar filling with fluid, pus, blood, or cells. Air bronchograms within an opacity favor consolidation over atelectasis. Lobar consolidation with fever most commonly represents bacterial pneumonia.",
			Source:  "radiopaedia",
			DocType: "article",
		},
		{
			Title:   "Pleural effusion grading",
			Content: "On an erect chest radiograph, blunting of the costophrenic angle suggests at least 200 ml of pleural fluid. A meniscus sign supports free-flowing effusion. Large effusions cause mediastinal shift away from the affected side.",
			Source:  "pubmed",
			DocType: "summary",
		},
		{
			Title:   "Cardiomegaly assessment",
			Content: "The cardiothoracic ratio is measured on a PA radiograph; a ratio above 0.5 indicates cardiomegaly. AP projections exaggerate cardiac size and should not be used for the measurement.",
			Source:  "pubmed",
			DocType: "summary",
		},
	}

	for _, s := range seed {
		doc, err := knowledgeUC.AddDocument(ctx, s.Title, s.Content, s.Source, s.DocType, nil)
		if err != nil {
			log.Fatalf("seed %q: %v", s.Title, err)
		}
		embedded := len(doc.Embedding) > 0
		fmt.Printf("  - %s (id=%d, embedded=%v)\n", doc.Title, doc.ID, embedded)
	}
	fmt.Println("Seed complete.")
}
