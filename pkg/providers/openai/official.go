package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers"
)

// OfficialName 注册名
const OfficialName = "openai-official"

// OfficialProvider 基于官方 openai-go SDK 的引擎
type OfficialProvider struct {
	config providers.Config
	client openai.Client
}

var _ providers.Engine = (*OfficialProvider)(nil)

// NewOfficial 创建引擎（使用官方SDK）
func NewOfficial(config providers.Config) (*OfficialProvider, error) {
	if config.APIKey == "" {
		return nil, providers.NewError(OfficialName, providers.CodeInvalidConfig, "api key is required", nil)
	}
	if config.Model == "" {
		config.Model = providers.DefaultConfig().Model
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// 重试交给上层的熔断器和降级逻辑
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.APIEndpoint != "" {
		opts = append(opts, option.WithBaseURL(config.APIEndpoint))
	}
	for k, v := range config.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	return &OfficialProvider{
		config: config,
		client: openai.NewClient(opts...),
	}, nil
}

// Name 获取提供商名称
func (p *OfficialProvider) Name() string {
	return OfficialName
}

// Translate 执行翻译
func (p *OfficialProvider) Translate(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.Text),
		},
		Model: openai.ChatModel(p.config.Model),
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.config.Temperature
	}
	if temperature > 0 {
		params.Temperature = openai.Float(float64(temperature))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOfficial(err)
	}
	if len(completion.Choices) == 0 {
		return nil, providers.NewError(OfficialName, providers.CodeEmptyResponse, "no choices returned", nil)
	}

	return &providers.Response{
		Text:      completion.Choices[0].Message.Content,
		Model:     completion.Model,
		TokensIn:  int(completion.Usage.PromptTokens),
		TokensOut: int(completion.Usage.CompletionTokens),
		Metadata: map[string]interface{}{
			"finish_reason": string(completion.Choices[0].FinishReason),
			"id":            completion.ID,
		},
	}, nil
}

func classifyOfficial(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.NewError(OfficialName, providers.CodeTimeout, "request timed out", err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return providers.NewError(OfficialName, providers.StatusCode(apiErr.StatusCode), "chat completion failed", err)
	}
	return providers.NewError(OfficialName, providers.CodeRequestFailed, "chat completion failed", err)
}
