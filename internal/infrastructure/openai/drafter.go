package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"mail-chat-bridge/internal/config"
	"mail-chat-bridge/internal/domain/draft"
	"mail-chat-bridge/internal/infrastructure/transport"
)

const (
	// DefaultEndpoint is the Chat Completions URL.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

	// MissingKeyDraft is returned instead of calling the API when no key is configured.
	MissingKeyDraft = "(OPENAI_API_KEY missing) – örnek taslak: Merhaba, e-postanız için teşekkürler. En kısa sürede dönüş yapacağım."
	// EmptyDraft is returned when the API answers without content.
	EmptyDraft = "Taslak üretilemedi."

	temperature    = 0.3
	requestTimeout = 90 * time.Second
)

// Drafter implements draft.Generator using OpenAI Chat Completions.
type Drafter struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

var _ draft.Generator = (*Drafter)(nil)

// NewDrafter creates the generator. An empty API key is allowed and makes
// Generate return MissingKeyDraft.
func NewDrafter(cfg *config.Config) *Drafter {
	return &Drafter{
		apiKey:   cfg.OpenAIAPIKey,
		model:    cfg.OpenAIModel,
		endpoint: DefaultEndpoint,
		client:   transport.Wrap(nil, "openai", cfg.HTTPLogBodies),
	}
}

// WithEndpoint points the drafter at another Chat Completions compatible URL.
func (d *Drafter) WithEndpoint(endpoint string) *Drafter {
	d.endpoint = endpoint
	return d
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate asks the model for a reply draft.
func (d *Drafter) Generate(ctx context.Context, p draft.Prompt) (string, error) {
	if d.apiKey == "" {
		log.Printf("[openai] no api key configured, returning fallback draft")
		return MissingKeyDraft, nil
	}

	body, err := json.Marshal(chatRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}

	// adopt timeout from ctx or fall back to requestTimeout
	reqCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", fmt.Errorf("openai error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return EmptyDraft, nil
	}
	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return EmptyDraft, nil
	}
	log.Printf("[openai] draft generated: model=%s chars=%d elapsed=%.2fs", d.model, len([]rune(text)), time.Since(start).Seconds())
	return text, nil
}
