package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// DefaultGenerationTimeout bounds a single model call.
const DefaultGenerationTimeout = 30 * time.Second

// Generator produces an answer from a fully bound prompt.
// Implementations classify failures as ErrGenerationTimeout or
// ErrGenerationUnavailable.
type Generator interface {
	Generate(ctx context.Context, boundPrompt string) (string, error)
}

// ModelGeneratorConfig contains the parameters for ModelGenerator.
type ModelGeneratorConfig struct {
	Genkit    *genkit.Genkit
	ModelName string // e.g. "googleai/gemini-2.0-flash"

	Temperature float64       // 0 means provider default
	MaxTokens   int           // 0 means provider default
	Timeout     time.Duration // per-attempt deadline (default: DefaultGenerationTimeout)
}

// ModelGenerator answers bound prompts through a Genkit model.
type ModelGenerator struct {
	g         *genkit.Genkit
	modelName string
	config    *genai.GenerateContentConfig
	timeout   time.Duration
}

// NewModelGenerator creates a ModelGenerator.
func NewModelGenerator(cfg ModelGeneratorConfig) (*ModelGenerator, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("model name is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}

	var genConfig *genai.GenerateContentConfig
	if cfg.Temperature > 0 || cfg.MaxTokens > 0 {
		genConfig = &genai.GenerateContentConfig{}
		if cfg.Temperature > 0 {
			genConfig.Temperature = genai.Ptr(float32(cfg.Temperature))
		}
		if cfg.MaxTokens > 0 {
			genConfig.MaxOutputTokens = int32(cfg.MaxTokens) // #nosec G115 -- small config value
		}
	}

	return &ModelGenerator{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		config:    genConfig,
		timeout:   timeout,
	}, nil
}

// Generate implements Generator. The bound prompt is sent as-is; the
// instruction framing already lives in the template text.
func (m *ModelGenerator) Generate(ctx context.Context, boundPrompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	opts := []ai.GenerateOption{
		ai.WithModelName(m.modelName),
		ai.WithPrompt(boundPrompt),
	}
	if m.config != nil {
		opts = append(opts, ai.WithConfig(m.config))
	}

	resp, err := genkit.Generate(callCtx, m.g, opts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w: model call exceeded %v: %w", ErrGenerationTimeout, m.timeout, err)
		}
		return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", fmt.Errorf("%w: empty model response", ErrGenerationUnavailable)
	}
	return answer, nil
}
