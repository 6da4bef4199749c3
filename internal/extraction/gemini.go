package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-import/internal/logger"
	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// GeminiConfig selects the model and backend. With neither APIKey nor
// Project set, the client reads GOOGLE_API_KEY / GOOGLE_CLOUD_* from the
// environment.
type GeminiConfig struct {
	Model    string
	APIKey   string
	Project  string
	Location string
	Timeout  time.Duration
}

// GeminiService implements Service with the Gemini API.
type GeminiService struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiService creates the GenAI client once for the process.
func NewGeminiService(ctx context.Context, cfg GeminiConfig) (*GeminiService, error) {
	cc := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	switch {
	case cfg.APIKey != "":
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	case cfg.Project != "":
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("NewGeminiService: create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiService{client: client, model: model, timeout: cfg.Timeout}, nil
}

// Extract sends the versioned prompt and the document (text or inline bytes)
// and returns the raw model text.
func (s *GeminiService) Extract(ctx context.Context, req Request) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: buildParts(req),
		},
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}

	start := time.Now()
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("GeminiService.Extract: generate content: %w", err)
	}

	raw := resp.Text()
	log := logger.FromContext(ctx)
	log.Debug().
		Str("model", s.model).
		Str("file", req.FileName).
		Dur("duration", time.Since(start)).
		Int("response_bytes", len(raw)).
		Msg("Model response received")

	if raw == "" {
		return "", fmt.Errorf("GeminiService.Extract: empty response from model")
	}
	return raw, nil
}

func buildParts(req Request) []*genai.Part {
	parts := []*genai.Part{{Text: BuildPrompt(req)}}
	if req.Text != "" {
		return append(parts, &genai.Part{Text: req.Text})
	}
	return append(parts, &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: req.MediaType,
			Data:     req.Data,
		},
	})
}

var _ Service = (*GeminiService)(nil)
