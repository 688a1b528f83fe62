package imagegen

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"lulu_studio/core"
	"lulu_studio/logging"
)

// contentGenerator is the slice of the genai client the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// generatorFactory builds a contentGenerator for one call using apiKey.
type generatorFactory func(ctx context.Context, apiKey string) (contentGenerator, error)

// GeminiProvider implements Client on the Gemini API.
type GeminiProvider struct {
	keys         *KeyRing
	elevatedKey  string
	models       ModelSet
	newGenerator generatorFactory
	logger       *logging.Logger
}

// GeminiProviderConfig holds provider settings.
type GeminiProviderConfig struct {
	Keys *KeyRing
	// ElevatedKey, when set, is used for upscaling until a key is
	// selected at runtime.
	ElevatedKey string
	Models      ModelSet
	BaseURL     string
	HTTPClient  *http.Client
	Logger      *logging.Logger
}

// DefaultGeminiModels are the models the studio was built against.
func DefaultGeminiModels() ModelSet {
	return ModelSet{
		Enhance:  "gemini-3-flash-preview",
		Generate: "gemini-2.5-flash-image",
		Upscale:  "gemini-3-pro-image-preview",
	}
}

// NewGeminiProvider creates a provider from the application config.
func NewGeminiProvider(cfg *core.Config, keys *KeyRing, logger *logging.Logger) (*GeminiProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	return NewGeminiProviderWithConfig(GeminiProviderConfig{
		Keys:        keys,
		ElevatedKey: cfg.ElevatedAPIKey,
		Models: ModelSet{
			Enhance:  cfg.TextModel,
			Generate: cfg.ImageModel,
			Upscale:  cfg.UpscaleModel,
		},
		BaseURL:    cfg.GeminiBaseURL,
		HTTPClient: core.GetDefaultHTTPClient(cfg),
		Logger:     logger,
	})
}

// NewGeminiProviderWithConfig creates a provider with explicit settings.
func NewGeminiProviderWithConfig(cfg GeminiProviderConfig) (*GeminiProvider, error) {
	if cfg.Keys == nil || cfg.Keys.Key() == "" {
		return nil, core.ErrMissingAuth(core.ProviderGemini)
	}
	models := DefaultGeminiModels()
	if cfg.Models.Enhance != "" {
		models.Enhance = cfg.Models.Enhance
	}
	if cfg.Models.Generate != "" {
		models.Generate = cfg.Models.Generate
	}
	if cfg.Models.Upscale != "" {
		models.Upscale = cfg.Models.Upscale
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	httpClient := cfg.HTTPClient
	baseURL := cfg.BaseURL
	return &GeminiProvider{
		keys:        cfg.Keys,
		elevatedKey: strings.TrimSpace(cfg.ElevatedKey),
		models:      models,
		logger:      logger.Named("gemini"),
		newGenerator: func(ctx context.Context, apiKey string) (contentGenerator, error) {
			clientCfg := &genai.ClientConfig{
				APIKey:     apiKey,
				Backend:    genai.BackendGeminiAPI,
				HTTPClient: httpClient,
			}
			if baseURL != "" {
				clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
			}
			client, err := genai.NewClient(ctx, clientCfg)
			if err != nil {
				return nil, fmt.Errorf("imagegen: create genai client: %w", err)
			}
			return client.Models, nil
		},
	}, nil
}

// Name implements Client.
func (p *GeminiProvider) Name() string { return core.ProviderGemini }

// Models implements Client.
func (p *GeminiProvider) Models() ModelSet { return p.models }

// Enhance implements Client.
func (p *GeminiProvider) Enhance(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	gen, err := p.newGenerator(ctx, p.keys.Key())
	if err != nil {
		return "", err
	}

	p.logger.Debug("enhancing prompt", logging.GenerationFields("enhance", p.models.Enhance, prompt)...)
	resp, err := gen.GenerateContent(ctx, p.models.Enhance, genai.Text(EnhanceInstruction(prompt)), nil)
	if err != nil {
		return "", fmt.Errorf("imagegen: enhance: %w", err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", ErrEmptyEnhancement
	}
	return text, nil
}

// Generate implements Client.
func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (*Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	gen, err := p.newGenerator(ctx, p.keys.Key())
	if err != nil {
		return nil, err
	}

	fullPrompt := ComposePrompt(req.Prompt, req.Style, req.NegativePrompt)
	started := time.Now()
	p.logger.Debug("generating image", logging.GenerationFields("generate", p.models.Generate, fullPrompt)...)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(fullPrompt)}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: string(req.AspectRatio)},
	}

	resp, err := gen.GenerateContent(ctx, p.models.Generate, contents, config)
	if err != nil {
		return nil, fmt.Errorf("imagegen: generate: %w", err)
	}
	img, err := firstInlineImage(resp)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("image generated", logging.ResultFields(img.MimeType, len(img.Data), started)...)
	return img, nil
}

// Upscale implements Client. A "Requested entity was not found" rejection
// becomes ErrElevatedAccessRequired when the key ring can offer a new key.
func (p *GeminiProvider) Upscale(ctx context.Context, req UpscaleRequest) (*Image, error) {
	source, err := upscaleSource(req.ImageRef)
	if err != nil {
		return nil, err
	}
	gen, err := p.newGenerator(ctx, p.upscaleKey())
	if err != nil {
		return nil, err
	}

	instruction := UpscaleInstruction(req.Prompt)
	started := time.Now()
	p.logger.Debug("upscaling image",
		append(logging.GenerationFields("upscale", p.models.Upscale, instruction), zap.Int("source_bytes", len(source)))...)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(source, DefaultMimeType),
			genai.NewPartFromText(instruction),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{
			AspectRatio: string(req.AspectRatio),
			ImageSize:   UpscaleImageSize,
		},
	}

	resp, err := gen.GenerateContent(ctx, p.models.Upscale, contents, config)
	if err != nil {
		return nil, elevatedAccessError(fmt.Errorf("imagegen: upscale: %w", err), p.keys)
	}
	img, err := firstInlineImage(resp)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("image upscaled", logging.ResultFields(img.MimeType, len(img.Data), started)...)
	return img, nil
}

// upscaleKey prefers a key selected at runtime, then the configured
// elevated key, then the regular key.
func (p *GeminiProvider) upscaleKey() string {
	if p.elevatedKey != "" && !p.keys.Elevated() {
		return p.elevatedKey
	}
	return p.keys.Key()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// firstInlineImage returns the first inline image part of the first candidate.
func firstInlineImage(resp *genai.GenerateContentResponse) (*Image, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrNoImageReturned
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mimeType := part.InlineData.MIMEType
		if mimeType == "" {
			mimeType = DefaultMimeType
		}
		return &Image{Data: part.InlineData.Data, MimeType: mimeType}, nil
	}
	return nil, ErrNoImageReturned
}

var _ Client = (*GeminiProvider)(nil)
