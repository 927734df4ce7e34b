// Package openai OpenAI 兼容接口（DeepSeek、OpenAI 及各类代理）的翻译引擎。
package openai

import (
	"context"
	"errors"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers"
)

// Name 注册名
const Name = "openai"

// Provider 基于 go-openai 的引擎
type Provider struct {
	config providers.Config
	client *goopenai.Client
}

var _ providers.Engine = (*Provider)(nil)

// New 创建引擎
func New(config providers.Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, providers.NewError(Name, providers.CodeInvalidConfig, "api key is required", nil)
	}
	if config.Model == "" {
		config.Model = providers.DefaultConfig().Model
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	if config.APIEndpoint != "" {
		clientConfig.BaseURL = strings.TrimRight(config.APIEndpoint, "/")
	}

	return &Provider{
		config: config,
		client: goopenai.NewClientWithConfig(clientConfig),
	}, nil
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

	chatReq := goopenai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: req.Text},
		},
		Temperature: temperature,
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, providers.NewError(Name, providers.CodeEmptyResponse, "no choices returned", nil)
	}

	return &providers.Response{
		Text:      resp.Choices[0].Message.Content,
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		Metadata: map[string]interface{}{
			"finish_reason": string(resp.Choices[0].FinishReason),
			"id":            resp.ID,
		},
	}, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.NewError(Name, providers.CodeTimeout, "request timed out", err)
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return providers.NewError(Name, providers.StatusCode(apiErr.HTTPStatusCode), "chat completion failed", err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return providers.NewError(Name, providers.StatusCode(reqErr.HTTPStatusCode), "chat completion failed", err)
	}
	return providers.NewError(Name, providers.CodeRequestFailed, "chat completion failed", err)
}
