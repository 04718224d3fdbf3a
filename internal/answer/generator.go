// Package answer builds grounded prompts and synthesizes answers from
// retrieved chunks through a generation model.
package answer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hyperjump/kotae/internal/backoff"
	"github.com/hyperjump/kotae/internal/models"
)

// Generator produces an answer text from a prompt, optionally conditioned on
// an image.
type Generator interface {
	Generate(ctx context.Context, prompt string, image *models.QuestionImage) (string, error)
	Close() error
}

// GeminiConfig configures the Gemini generation client.
type GeminiConfig struct {
	BaseURL         string
	Model           string
	APIKeyEnv       string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
	Policy          backoff.Policy
}

// GeminiGenerator calls the Gemini generateContent REST endpoint.
type GeminiGenerator struct {
	baseURL         string
	model           string
	apiKey          string
	temperature     float64
	maxOutputTokens int
	client          *http.Client
	policy          backoff.Policy
}

// NewGeminiGenerator creates the client. The API key is read from the
// configured environment variable; a missing key fails fast at construction
// rather than on the first question.
func NewGeminiGenerator(cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("generation API key not set: export %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = backoff.DefaultPolicy()
	}
	return &GeminiGenerator{
		baseURL:         cfg.BaseURL,
		model:           cfg.Model,
		apiKey:          apiKey,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		client:          &http.Client{Timeout: cfg.Timeout},
		policy:          cfg.Policy,
	}, nil
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends the prompt (and optional inline image) to the model and
// returns the first candidate's text. Rate limits and server errors are
// retried with backoff; auth and malformed-request errors are not.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, image *models.QuestionImage) (string, error) {
	parts := []geminiPart{{Text: prompt}}
	if image != nil && len(image.Data) > 0 {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MIMEType: image.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(image.Data),
			},
		})
	}

	var req geminiRequest
	req.Contents = make([]struct {
		Parts []geminiPart `json:"parts"`
	}, 1)
	req.Contents[0].Parts = parts
	req.GenerationConfig.Temperature = g.temperature
	req.GenerationConfig.MaxOutputTokens = g.maxOutputTokens

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)

	var answer string
	err = g.policy.Retry(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(httpReq)
		if err != nil {
			return backoff.Transient(fmt.Errorf("generation request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return backoff.ClassifyStatus(resp.StatusCode, fmt.Errorf("generation failed: %s", resp.Status))
		}

		var out geminiResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
			return backoff.Permanent(fmt.Errorf("generation returned no candidates"))
		}
		answer = out.Candidates[0].Content.Parts[0].Text
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// Close is a no-op for GeminiGenerator.
func (g *GeminiGenerator) Close() error { return nil }
