package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mediview-ai-service/internal/domain"
	"mediview-ai-service/internal/domain/model"
	"mediview-ai-service/internal/domain/ports/adapter"
	"mediview-ai-service/internal/infra/metrics"
)

var _ adapter.VisionAnalysisAdapter = (*OpenAIAdapter)(nil)
var _ adapter.EmbeddingAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements the vision and embedding ports over the OpenAI
// Chat Completions and Embeddings APIs (or any compatible endpoint).
type OpenAIAdapter struct {
	apiKey         string
	base           string // e.g., https://api.openai.com/v1
	visionModel    string
	embeddingModel string
	client         *http.Client
}

func NewOpenAIAdapter(apiKey, visionModel, embeddingModel string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if visionModel == "" {
		visionModel = "gpt-4o-mini"
	}
	return &OpenAIAdapter{
		apiKey:         apiKey,
		base:           "https://api.openai.com/v1",
		visionModel:    visionModel,
		embeddingModel: embeddingModel,
		client:         &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (o *OpenAIAdapter) ModelName() string { return o.visionModel }

type oaContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type oaMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

func (o *OpenAIAdapter) Classify(ctx context.Context, image []byte, extraContext string) ([]model.Finding, error) {
	prompt := classifyPrompt
	if extraContext != "" {
		prompt = "Reference material relevant to this image:\n\n" + extraContext + "\n\n" + classifyPrompt
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s",
		http.DetectContentType(image), base64.StdEncoding.EncodeToString(image))
	imagePart := oaContentPart{Type: "image_url"}
	imagePart.ImageURL = &struct {
		URL string `json:"url"`
	}{URL: dataURI}

	msgs := []oaMessage{{
		Role: "user",
		Content: []oaContentPart{
			{Type: "text", Text: prompt},
			imagePart,
		},
	}}

	start := time.Now()
	reply, err := o.chat(ctx, msgs)
	metrics.ObserveAICall("openai", "classify", int(time.Since(start)/time.Millisecond), err == nil)
	if err != nil {
		return nil, fmt.Errorf("openai classify: %w: %v", domain.ErrProviderUnavailable, err)
	}
	if reply == "" {
		return nil, nil
	}
	return parseFindings(reply, o.visionModel, ""), nil
}

func (o *OpenAIAdapter) Summarize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	if len(text) > summarizeInputLimit {
		text = text[:summarizeInputLimit]
	}

	msgs := []oaMessage{{Role: "user", Content: fmt.Sprintf(summarizePrompt, text)}}

	start := time.Now()
	reply, err := o.chat(ctx, msgs)
	metrics.ObserveAICall("openai", "summarize", int(time.Since(start)/time.Millisecond), err == nil)
	if err != nil {
		return "", fmt.Errorf("openai summarize: %w: %v", domain.ErrProviderUnavailable, err)
	}
	return reply, nil
}

func (o *OpenAIAdapter) chat(ctx context.Context, messages []oaMessage) (string, error) {
	reqBody := struct {
		Model    string      `json:"model"`
		Messages []oaMessage `json:"messages"`
	}{Model: o.visionModel, Messages: messages}

	b, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	for _, c := range payload.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", errors.New("no choice content")
}

func (o *OpenAIAdapter) Enabled() bool { return o.embeddingModel != "" }

// Embed calls the embeddings endpoint. OpenAI embedding models are symmetric,
// so the mode only matters for providers that distinguish task types; it is
// accepted and ignored here.
func (o *OpenAIAdapter) Embed(ctx context.Context, text string, _ adapter.EmbeddingMode) ([]float32, error) {
	if !o.Enabled() {
		return nil, domain.ErrEmbeddingDisabled
	}

	reqBody := struct {
		Model string `json:"model"`
		Input string `json:"input"`
	}{Model: o.embeddingModel, Input: text}

	b, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/embeddings", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	start := time.Now()
	resp, err := o.client.Do(req)
	metrics.ObserveAICall("openai", "embed", int(time.Since(start)/time.Millisecond), err == nil)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai embed http %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}

	var payload struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 || len(payload.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embed: empty response: %w", domain.ErrProviderUnavailable)
	}
	return payload.Data[0].Embedding, nil
}
