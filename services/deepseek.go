package services

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// DeepseekClient 通过openai兼容接口访问Deepseek
type DeepseekClient struct {
	DsChat llms.Model
}

func NewDeepseekClient(apiKey, apiEndpoint string) (*DeepseekClient, error) {
	chat, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(apiEndpoint),
		openai.WithModel("deepseek-chat"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepseek client: %w", err)
	}

	return &DeepseekClient{
		DsChat: chat,
	}, nil
}
