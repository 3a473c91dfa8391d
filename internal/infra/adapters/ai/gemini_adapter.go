package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"mediview-ai-service/internal/domain"
	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/adapter"
	"mediview-ai-service/internal/infra/metrics"
)

var _ adapter.VisionAnalysisAdapter = (*GeminiAdapter)(nil)
var _ adapter.EmbeddingAdapter = (*GeminiAdapter)(nil)

const classifyPrompt = `Analyze this medical image and identify any findings.
Return a JSON array where each finding has:
- "label": description of the finding
- "confidence": confidence score between 0 and 1
- "bbox": optional bounding box with x, y, width, height (in pixels)

Focus on: abnormalities, pathologies, anatomical landmarks, or notable features.
Be specific and use medical terminology where appropriate.

Return ONLY the JSON array, no other text.`

const summarizePrompt = `Summarize this medical report concisely, focusing on key findings and recommendations.
Keep it under 3 sentences. Use clear medical terminology.

Report:
%s`

// summarizeInputLimit truncates report text before the summarize call.
const summarizeInputLimit = 2000

// GeminiAdapter implements vision classification, summarization and text
// embedding on the Gemini API.
type GeminiAdapter struct {
	client         *genai.Client
	visionModel    string
	summaryModel   string
	embeddingModel string
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, visionModel, summaryModel, embeddingModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{
		client:         c,
		visionModel:    visionModel,
		summaryModel:   summaryModel,
		embeddingModel: embeddingModel,
	}, nil
}

func (g *GeminiAdapter) ModelName() string { return g.visionModel }

// Classify sends the image plus the classification instructions and parses
// the JSON findings array from the reply. When extraContext is non-empty it
// is injected into the instructions (retrieval-augmented re-analysis).
func (g *GeminiAdapter) Classify(ctx context.Context, image []byte, extraContext string) ([]model.Finding, error) {
	prompt := classifyPrompt
	if extraContext != "" {
		prompt = "Reference material relevant to this image:\n\n" + extraContext + "\n\n" + classifyPrompt
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{MIMEType: http.DetectContentType(image), Data: image}},
		},
	}}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.visionModel, contents, nil)
	metrics.ObserveAICall("gemini", "classify", int(time.Since(start)/time.Millisecond), err == nil)
	if err != nil {
		return nil, fmt.Errorf("gemini classify: %w: %v", domain.ErrProviderUnavailable, err)
	}

	text := candidateText(resp)
	if text == "" {
		return nil, nil
	}
	return parseFindings(text, g.visionModel, ""), nil
}

func (g *GeminiAdapter) Summarize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	if len(text) > summarizeInputLimit {
		text = text[:summarizeInputLimit]
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: fmt.Sprintf(summarizePrompt, text)}},
	}}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.summaryModel, contents, nil)
	metrics.ObserveAICall("gemini", "summarize", int(time.Since(start)/time.Millisecond), err == nil)
	if err != nil {
		return "", fmt.Errorf("gemini summarize: %w: %v", domain.ErrProviderUnavailable, err)
	}
	return candidateText(resp), nil
}

func (g *GeminiAdapter) Enabled() bool { return g.embeddingModel != "" }

// Embed generates an embedding in the given mode. Asymmetric embedding models
// score documents and queries with distinct task types.
func (g *GeminiAdapter) Embed(ctx context.Context, text string, mode adapter.EmbeddingMode) ([]float32, error) {
	if !g.Enabled() {
		return nil, domain.ErrEmbeddingDisabled
	}

	taskType := "RETRIEVAL_DOCUMENT"
	if mode == adapter.EmbedQuery {
		taskType = "RETRIEVAL_QUERY"
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: text}},
	}}

	start := time.Now()
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, &genai.EmbedContentConfig{
		TaskType: taskType,
	})
	metrics.ObserveAICall("gemini", "embed", int(time.Since(start)/time.Millisecond), err == nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w: %v", domain.ErrProviderUnavailable, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini embed: empty response: %w", domain.ErrProviderUnavailable)
	}
	return resp.Embeddings[0].Values, nil
}

// candidateText joins the text parts of the first candidate. The model may
// split one reply across several parts.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
