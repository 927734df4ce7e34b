// Package gemini Google Gemini 翻译引擎。
package gemini

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers"
)

// Name 注册名
const Name = "gemini"

// DefaultModel 未配置模型时使用
const DefaultModel = "gemini-2.0-flash"

// Provider 基于 genai SDK 的引擎
type Provider struct {
	config providers.Config
	client *genai.Client
}

var _ providers.Engine = (*Provider)(nil)

// New 创建引擎
func New(ctx context.Context, config providers.Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, providers.NewError(Name, providers.CodeInvalidConfig, "api key is required", nil)
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.APIEndpoint != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.APIEndpoint}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, providers.NewError(Name, providers.CodeInvalidConfig, "failed to create client", err)
	}
	return &Provider{config: config, client: client}, nil
}

// Name 获取提供商名称
func (p *Provider) Name() string {
	return Name
}

// Translate 执行翻译
func (p *Provider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.config.Temperature
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](temperature),
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, genai.Text(req.Text), genConfig)
	if err != nil {
		return nil, classify(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, providers.NewError(Name, providers.CodeEmptyResponse, "empty response", nil)
	}

	out := &providers.Response{Text: text, Model: p.config.Model}
	if resp.UsageMetadata != nil {
		out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.NewError(Name, providers.CodeTimeout, "request timed out", err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return providers.NewError(Name, providers.StatusCode(apiErr.Code), "generate content failed", err)
	}
	return providers.NewError(Name, providers.CodeRequestFailed, "generate content failed", err)
}
