// Package gemini implements the oracle on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// Config configures the Gemini oracle.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string       // Overrides the API endpoint, used by tests
	HTTPClient *http.Client // Optional
}

// Oracle generates text with temperature zero and the provider's own safety
// filters disabled, since the input is expected to be abusive.
type Oracle struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// New creates a Gemini oracle.
func New(ctx context.Context, cfg Config) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Oracle{
		client: client,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0),
			SafetySettings: []*genai.SafetySetting{
				{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
				{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
				{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
				{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
			},
		},
	}, nil
}

// Generate implements ports.Oracle.
func (o *Oracle) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Models.GenerateContent(ctx, o.model, genai.Text(prompt), o.config)
	if err != nil {
		return "", classify(ctx, err)
	}
	text := resp.Text()
	if text == "" {
		return "", domain.Transient(errors.New("gemini: response has no text"))
	}
	return text, nil
}

// classify maps SDK errors onto domain errors so the retry layer can tell
// transient failures apart.
func classify(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErrorFor(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrorFor(*apiErrPtr)
	}
	if ctx.Err() != nil {
		return err
	}
	return domain.Transient(fmt.Errorf("gemini: %w", err))
}

func apiErrorFor(e genai.APIError) *domain.APIError {
	msg := e.Message
	if msg == "" {
		msg = e.Status
	}
	return domain.NewAPIError(domain.ErrorTypeForStatus(e.Code), "gemini: "+msg).
		WithStatusCode(e.Code)
}
