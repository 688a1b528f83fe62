package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"lulu_studio/asset"
	"lulu_studio/core"
	"lulu_studio/logging"
)

// OpenAIProvider implements Client on the OpenAI image API. It also serves
// Azure OpenAI deployments, where the deployment name stands in for every model.
//
// Thread Safety: OpenAIProvider is safe for concurrent use.
type OpenAIProvider struct {
	client *openai.Client
	name   string
	models ModelSet
	logger *logging.Logger
}

// OpenAIProviderConfig holds configuration specific to the OpenAI provider.
type OpenAIProviderConfig struct {
	// APIKey is the OpenAI (or Azure OpenAI) API key (required)
	APIKey string

	// BaseURL is the API endpoint (default: https://api.openai.com/v1)
	BaseURL string

	// TextModel is used for prompt enhancement (default: gpt-4o-mini)
	TextModel string

	// ImageModel is used for generation and upscaling (default: gpt-image-1)
	ImageModel string

	// AzureDeployment switches the client to Azure mode when set.
	// BaseURL must then be the Azure resource endpoint.
	AzureDeployment string

	// AzureAPIVersion is the Azure API version (default: 2024-02-01)
	AzureAPIVersion string

	Logger *logging.Logger
}

// NewOpenAIProvider creates an OpenAI provider from the application config.
func NewOpenAIProvider(cfg *core.Config, logger *logging.Logger) (*OpenAIProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	p, err := NewOpenAIProviderWithConfig(OpenAIProviderConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		TextModel:  cfg.OpenAITextModel,
		ImageModel: cfg.OpenAIImageModel,
		Logger:     logger,
	}, cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewAzureProvider creates an Azure OpenAI provider from the application config.
func NewAzureProvider(cfg *core.Config, logger *logging.Logger) (*OpenAIProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	if cfg.AzureOpenAIEndpoint == "" {
		return nil, core.ErrMissingConfig("AZURE_OPENAI_ENDPOINT")
	}
	if !IsAzureEndpoint(cfg.AzureOpenAIEndpoint) {
		return nil, fmt.Errorf("imagegen: endpoint (%s) is not an Azure OpenAI endpoint", cfg.AzureOpenAIEndpoint)
	}
	if cfg.AzureOpenAIDeployment == "" {
		return nil, core.ErrMissingConfig("AZURE_OPENAI_DEPLOYMENT")
	}
	return NewOpenAIProviderWithConfig(OpenAIProviderConfig{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.AzureOpenAIEndpoint,
		AzureDeployment: cfg.AzureOpenAIDeployment,
		AzureAPIVersion: cfg.AzureOpenAIAPIVersion,
		Logger:          logger,
	}, cfg)
}

// NewOpenAIProviderWithConfig creates a provider with explicit settings.
// coreCfg supplies HTTP client settings and may be nil.
func NewOpenAIProviderWithConfig(pc OpenAIProviderConfig, coreCfg *core.Config) (*OpenAIProvider, error) {
	name := core.ProviderOpenAI
	if pc.AzureDeployment != "" {
		name = core.ProviderAzure
	}
	if pc.APIKey == "" {
		return nil, core.ErrMissingAuth(name)
	}

	var clientConfig openai.ClientConfig
	models := ModelSet{}
	if pc.AzureDeployment != "" {
		clientConfig = openai.DefaultAzureConfig(pc.APIKey, pc.BaseURL)
		if pc.AzureAPIVersion != "" {
			clientConfig.APIVersion = pc.AzureAPIVersion
		}
		deployment := pc.AzureDeployment
		clientConfig.AzureModelMapperFunc = func(string) string { return deployment }
		models = ModelSet{Enhance: deployment, Generate: deployment, Upscale: deployment}
	} else {
		clientConfig = openai.DefaultConfig(pc.APIKey)
		if pc.BaseURL != "" {
			clientConfig.BaseURL = pc.BaseURL
		}
		textModel := pc.TextModel
		if textModel == "" {
			textModel = "gpt-4o-mini"
		}
		imageModel := pc.ImageModel
		if imageModel == "" {
			imageModel = "gpt-image-1"
		}
		models = ModelSet{Enhance: textModel, Generate: imageModel, Upscale: imageModel}
	}
	if coreCfg != nil {
		clientConfig.HTTPClient = core.GetDefaultHTTPClient(coreCfg)
	}

	logger := pc.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		name:   name,
		models: models,
		logger: logger.Named(name),
	}, nil
}

// Name implements Client.
func (p *OpenAIProvider) Name() string { return p.name }

// Models implements Client.
func (p *OpenAIProvider) Models() ModelSet { return p.models }

// Enhance implements Client.
func (p *OpenAIProvider) Enhance(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	p.logger.Debug("enhancing prompt", logging.GenerationFields("enhance", p.models.Enhance, prompt)...)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.models.Enhance,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: EnhanceInstruction(prompt)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("imagegen: enhance: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyEnhancement
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyEnhancement
	}
	return text, nil
}

// Generate implements Client.
func (p *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (*Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	fullPrompt := ComposePrompt(req.Prompt, req.Style, req.NegativePrompt)
	started := time.Now()
	p.logger.Debug("generating image", logging.GenerationFields("generate", p.models.Generate, fullPrompt)...)

	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         fullPrompt,
		Model:          p.models.Generate,
		N:              1,
		Size:           p.size(req.AspectRatio),
		ResponseFormat: p.responseFormat(),
	})
	if err != nil {
		return nil, fmt.Errorf("imagegen: generate: %w", err)
	}
	img, err := decodeImageResponse(resp)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("image generated", logging.ResultFields(img.MimeType, len(img.Data), started)...)
	return img, nil
}

// Upscale implements Client. The OpenAI API has no 4K output, so the edit
// endpoint re-renders the source at the largest size for its aspect ratio.
func (p *OpenAIProvider) Upscale(ctx context.Context, req UpscaleRequest) (*Image, error) {
	source, err := upscaleSource(req.ImageRef)
	if err != nil {
		return nil, err
	}

	// The edit endpoint takes a multipart file upload.
	f, err := os.CreateTemp("", "lulu-upscale-*.png")
	if err != nil {
		return nil, fmt.Errorf("imagegen: upscale: create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()
	if _, err := f.Write(source); err != nil {
		return nil, fmt.Errorf("imagegen: upscale: write temp file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("imagegen: upscale: rewind temp file: %w", err)
	}

	instruction := UpscaleInstruction(req.Prompt)
	started := time.Now()
	p.logger.Debug("upscaling image",
		append(logging.GenerationFields("upscale", p.models.Upscale, instruction), zap.Int("source_bytes", len(source)))...)

	resp, err := p.client.CreateEditImage(ctx, openai.ImageEditRequest{
		Image:          f,
		Prompt:         instruction,
		Model:          p.models.Upscale,
		N:              1,
		Size:           p.size(req.AspectRatio),
		ResponseFormat: p.responseFormat(),
	})
	if err != nil {
		// No credential selection exists for OpenAI keys.
		return nil, fmt.Errorf("imagegen: upscale: %w", err)
	}
	img, err := decodeImageResponse(resp)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("image upscaled", logging.ResultFields(img.MimeType, len(img.Data), started)...)
	return img, nil
}

// isDalle reports whether the image model is a DALL-E model. DALL-E needs an
// explicit base64 response format and uses different sizes; gpt-image
// models always answer in base64 and reject the parameter.
func (p *OpenAIProvider) isDalle() bool {
	lower := strings.ToLower(p.models.Generate)
	return strings.Contains(lower, "dall-e") || strings.Contains(lower, "dalle")
}

func (p *OpenAIProvider) responseFormat() string {
	if p.isDalle() {
		return openai.CreateImageResponseFormatB64JSON
	}
	return ""
}

func (p *OpenAIProvider) size(ratio asset.AspectRatio) string {
	size := OpenAISize(ratio)
	if p.isDalle() {
		switch size {
		case "1536x1024":
			return "1792x1024"
		case "1024x1536":
			return "1024x1792"
		}
	}
	return size
}

func decodeImageResponse(resp openai.ImageResponse) (*Image, error) {
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, ErrNoImageReturned
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("imagegen: decode image payload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoImageReturned
	}
	mimeType := DefaultMimeType
	if info, err := ProbeImage(data); err == nil {
		mimeType = info.MimeType
	}
	return &Image{Data: data, MimeType: mimeType}, nil
}

var _ Client = (*OpenAIProvider)(nil)
